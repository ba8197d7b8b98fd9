package utils

import (
	"log"
	"math"
	"time"
)

// DefaultTimezone is the reporting timezone of the tracker.
const DefaultTimezone = "Asia/Shanghai"

// MustLoadLocation loads a timezone or stops the process.
func MustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

// TimeNowCST returns the current time in China Standard Time.
func TimeNowCST() time.Time {
	return time.Now().In(MustLoadLocation(DefaultTimezone))
}

// PrettyDate formats t for human-facing messages.
func PrettyDate(t time.Time) string {
	return t.Format("02 Jan 2006 15:04 MST")
}

// DaysBetween returns the whole number of days elapsed from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}
