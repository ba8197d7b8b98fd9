package dto

import (
	"time"

	"golang-stock-valuation/internal/entity"

	"github.com/shopspring/decimal"
)

// RecordTransactionRequest is the input for recording a trade.
type RecordTransactionRequest struct {
	UserID    string          `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Market    entity.Market   `json:"market"`
	Action    entity.Action   `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Shares    int64           `json:"shares"`
	TradeDate time.Time       `json:"trade_date"`
}

// GetTransactionsParam filters ledger reads.
type GetTransactionsParam struct {
	UserID string
	Symbol *string
	Market *entity.Market
}

// GetHoldingsParam filters holdings.
type GetHoldingsParam struct {
	UserID  string
	Markets []entity.Market
}

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
