package service

import (
	"time"
	_ "time/tzdata"

	"golang-stock-valuation/internal/entity"
)

type session struct {
	start, end int // minutes after local midnight, end exclusive
}

type tradingSchedule struct {
	loc      *time.Location
	sessions []session
}

// MarketHours knows the weekday trading sessions of every market.
type MarketHours struct {
	schedules map[entity.Market]tradingSchedule
}

func hm(h, m int) int { return h*60 + m }

// NewMarketHours builds the calendar. Public holidays are not modelled.
func NewMarketHours() (*MarketHours, error) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return nil, err
	}
	hongKong, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		return nil, err
	}
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}

	cn := tradingSchedule{loc: shanghai, sessions: []session{{hm(9, 30), hm(11, 30)}, {hm(13, 0), hm(15, 0)}}}
	return &MarketHours{
		schedules: map[entity.Market]tradingSchedule{
			entity.MarketCNA:  cn,
			entity.MarketFund: cn,
			entity.MarketHK:   {loc: hongKong, sessions: []session{{hm(9, 30), hm(12, 0)}, {hm(13, 0), hm(16, 0)}}},
			entity.MarketUS:   {loc: newYork, sessions: []session{{hm(9, 30), hm(16, 0)}}},
		},
	}, nil
}

// IsOpen reports whether market is inside a trading session at t.
func (h *MarketHours) IsOpen(market entity.Market, t time.Time) bool {
	_, ok := h.SessionStart(market, t)
	return ok
}

// SessionStart returns the start of the session containing t, if any.
func (h *MarketHours) SessionStart(market entity.Market, t time.Time) (time.Time, bool) {
	sched, ok := h.schedules[market]
	if !ok {
		return time.Time{}, false
	}
	local := t.In(sched.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return time.Time{}, false
	}
	minute := local.Hour()*60 + local.Minute()
	for _, s := range sched.sessions {
		if minute >= s.start && minute < s.end {
			start := time.Date(local.Year(), local.Month(), local.Day(), s.start/60, s.start%60, 0, 0, sched.loc)
			return start, true
		}
	}
	return time.Time{}, false
}

// OpenMarkets lists the markets open at t, in entity.Markets order.
func (h *MarketHours) OpenMarkets(t time.Time) []entity.Market {
	var open []entity.Market
	for _, m := range entity.Markets {
		if h.IsOpen(m, t) {
			open = append(open, m)
		}
	}
	return open
}

// Location returns the exchange timezone of market.
func (h *MarketHours) Location(market entity.Market) *time.Location {
	if sched, ok := h.schedules[market]; ok {
		return sched.loc
	}
	return time.UTC
}
