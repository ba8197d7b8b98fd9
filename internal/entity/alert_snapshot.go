package entity

import "time"

// AlertSnapshot is the last state the alert policy saw for a user's holding.
type AlertSnapshot struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Symbol         string    `gorm:"primaryKey" json:"symbol"`
	Market         Market    `gorm:"primaryKey;type:varchar(8)" json:"market"`
	Price          float64   `gorm:"not null" json:"price"`
	PnLPercent     float64   `gorm:"column:pnl_percent;not null" json:"pnl_percent"`
	MarginOfSafety *float64  `json:"margin_of_safety"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// Key identifies the holding the row belongs to within a user's snapshot.
func (s AlertSnapshot) Key() string {
	return string(s.Market) + ":" + s.Symbol
}

func (AlertSnapshot) TableName() string {
	return "alert_snapshots"
}
