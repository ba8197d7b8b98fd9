package dto

import (
	"time"

	"golang-stock-valuation/internal/entity"

	"github.com/shopspring/decimal"
)

// Holding is a user's open position derived from the ledger.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Market        entity.Market   `json:"market"`
	NetShares     int64           `json:"net_shares"`
	BuyShares     int64           `json:"buy_shares"`
	BuyAmount     decimal.Decimal `json:"buy_amount"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	LastTradeDate time.Time       `json:"last_trade_date"`
}

func (h Holding) AvgCostFloat() float64 {
	return h.AvgCost.InexactFloat64()
}

func (h Holding) TotalCostFloat() float64 {
	return h.TotalCost.InexactFloat64()
}

// CostBasis is the capital still committed to the open shares at average cost.
func (h Holding) CostBasis() float64 {
	return h.AvgCost.Mul(decimal.NewFromInt(h.NetShares)).InexactFloat64()
}

// Key identifies a holding across markets.
func (h Holding) Key() string {
	return string(h.Market) + ":" + h.Symbol
}
