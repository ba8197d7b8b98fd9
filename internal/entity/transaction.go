package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable trade in a user's ledger.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"not null;index:idx_transactions_user_symbol,priority:1" json:"user_id"`
	Symbol    string          `gorm:"not null;index:idx_transactions_user_symbol,priority:2" json:"symbol"`
	Name      string          `json:"name"`
	Market    Market          `gorm:"type:varchar(8);not null" json:"market"`
	Action    Action          `gorm:"type:varchar(4);not null" json:"action"`
	Price     decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"price"`
	Shares    int64           `gorm:"not null" json:"shares"`
	TradeDate time.Time       `gorm:"type:date;not null;index:idx_transactions_trade_date" json:"trade_date"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Amount returns price × shares, negated for sells.
func (t Transaction) Amount() decimal.Decimal {
	amount := t.Price.Mul(decimal.NewFromInt(t.Shares))
	if t.Action == ActionSell {
		return amount.Neg()
	}
	return amount
}
