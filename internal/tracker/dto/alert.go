package dto

import "golang-stock-valuation/internal/entity"

// AlertKind is the reason a holding produced an alert.
type AlertKind string

const (
	AlertNewPosition AlertKind = "new_position"
	AlertPriceChange AlertKind = "price_change"
	AlertProfit      AlertKind = "profit_alert"
	AlertLoss        AlertKind = "loss_alert"
)

// AlertEvent is one alert raised during a cycle.
type AlertEvent struct {
	Symbol    string        `json:"symbol"`
	Market    entity.Market `json:"market"`
	Kind      AlertKind     `json:"kind"`
	Magnitude float64       `json:"magnitude"`
}

// AlertState is the current state of a holding as seen by the alert policy.
type AlertState struct {
	Symbol         string
	Market         entity.Market
	Price          float64
	PnLPercent     float64
	MarginOfSafety *float64
}

// Key identifies the holding across markets, matching Holding.Key.
func (s AlertState) Key() string {
	return string(s.Market) + ":" + s.Symbol
}
