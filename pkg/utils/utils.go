package utils

import (
	"log"
	"runtime/debug"
)

func ToPointer[T any](v T) *T {
	return &v
}

// GoSafe runs fn in a goroutine and recovers from panics.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
