package service

import (
	"math"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
)

// AlertPolicy decides which holdings deserve a notification by comparing the
// current state with the snapshot taken in the previous cycle.
type AlertPolicy struct {
	cfg config.Alert
}

func NewAlertPolicy(cfg config.Alert) *AlertPolicy {
	return &AlertPolicy{cfg: cfg}
}

// Evaluate returns the alert events for states, in the order of states.
// snapshots are keyed by market and symbol, see entity.AlertSnapshot.Key.
// Thresholds fire once per crossing: a value that stays beyond a threshold
// does not alert again.
func (p *AlertPolicy) Evaluate(states []dto.AlertState, snapshots map[string]entity.AlertSnapshot) []dto.AlertEvent {
	events := []dto.AlertEvent{}
	for _, s := range states {
		prev, ok := snapshots[s.Key()]
		if !ok {
			events = append(events, dto.AlertEvent{Symbol: s.Symbol, Market: s.Market, Kind: dto.AlertNewPosition, Magnitude: s.PnLPercent})
			continue
		}

		if change := s.PnLPercent - prev.PnLPercent; math.Abs(change) >= p.cfg.PriceChangePct {
			events = append(events, dto.AlertEvent{Symbol: s.Symbol, Market: s.Market, Kind: dto.AlertPriceChange, Magnitude: change})
		}
		if prev.PnLPercent < p.cfg.ProfitAlertPct && s.PnLPercent >= p.cfg.ProfitAlertPct {
			events = append(events, dto.AlertEvent{Symbol: s.Symbol, Market: s.Market, Kind: dto.AlertProfit, Magnitude: s.PnLPercent})
		}
		if prev.PnLPercent > p.cfg.LossAlertPct && s.PnLPercent <= p.cfg.LossAlertPct {
			events = append(events, dto.AlertEvent{Symbol: s.Symbol, Market: s.Market, Kind: dto.AlertLoss, Magnitude: s.PnLPercent})
		}
	}
	return events
}

// Snapshots converts states into the rows that replace the user's snapshot.
func (p *AlertPolicy) Snapshots(userID string, states []dto.AlertState, at time.Time) []entity.AlertSnapshot {
	rows := make([]entity.AlertSnapshot, 0, len(states))
	for _, s := range states {
		rows = append(rows, entity.AlertSnapshot{
			UserID:         userID,
			Symbol:         s.Symbol,
			Market:         s.Market,
			Price:          s.Price,
			PnLPercent:     s.PnLPercent,
			MarginOfSafety: s.MarginOfSafety,
			UpdatedAt:      at,
		})
	}
	return rows
}
