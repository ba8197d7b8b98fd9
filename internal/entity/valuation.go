package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Recommendation is the action derived from a margin of safety.
type Recommendation string

const (
	RecommendationStrongBuy Recommendation = "STRONG_BUY"
	RecommendationBuy       Recommendation = "BUY"
	RecommendationHold      Recommendation = "HOLD"
	RecommendationWatch     Recommendation = "WATCH"
	RecommendationSell      Recommendation = "SELL"

	// Adjusted recommendations produced by the change analyzer.
	RecommendationAccumulate       Recommendation = "ACCUMULATE"
	RecommendationMonitorImproving Recommendation = "MONITOR_IMPROVING"
	RecommendationCautiousHold     Recommendation = "CAUTIOUS_HOLD"
	RecommendationConsiderStopLoss Recommendation = "CONSIDER_STOP_LOSS"
)

// IsBuySide reports whether the recommendation favours buying.
func (r Recommendation) IsBuySide() bool {
	return r == RecommendationStrongBuy || r == RecommendationBuy
}

// Confidence grades how complete the measured inputs were.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// KeyMetrics is the snapshot of inputs stored with each valuation.
// Pointers are nil when the metric was unavailable.
type KeyMetrics struct {
	ROE           *float64 `json:"roe,omitempty"`
	ROA           *float64 `json:"roa,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty"`
	ProfitGrowth  *float64 `json:"profit_growth,omitempty"`
	PE            *float64 `json:"pe,omitempty"`
	PB            *float64 `json:"pb,omitempty"`
	DebtRatio     *float64 `json:"debt_ratio,omitempty"`
	CurrentRatio  *float64 `json:"current_ratio,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	QualityScore  float64  `json:"quality_score"`
	QualityRating string   `json:"quality_rating"`
}

// ValuationRecord is one append-only valuation of a symbol.
type ValuationRecord struct {
	ID               uint                           `gorm:"primaryKey" json:"id"`
	Symbol           string                         `gorm:"not null;uniqueIndex:idx_valuations_symbol_date,priority:1" json:"symbol"`
	Market           Market                         `gorm:"type:varchar(8);not null;uniqueIndex:idx_valuations_symbol_date,priority:2" json:"market"`
	AnalysisDate     time.Time                      `gorm:"not null;uniqueIndex:idx_valuations_symbol_date,priority:3" json:"analysis_date"`
	CurrentPrice     float64                        `gorm:"not null" json:"current_price"`
	IntrinsicValue   float64                        `gorm:"not null" json:"intrinsic_value"`
	MarginOfSafety   float64                        `gorm:"not null" json:"margin_of_safety"`
	Recommendation   Recommendation                 `gorm:"type:varchar(32);not null" json:"recommendation"`
	Confidence       Confidence                     `gorm:"type:varchar(8);not null" json:"confidence"`
	QualityScore     float64                        `gorm:"not null" json:"quality_score"`
	DCFValue         float64                        `gorm:"column:dcf_value" json:"dcf_value"`
	PEValue          float64                        `gorm:"column:pe_value" json:"pe_value"`
	PBValue          float64                        `gorm:"column:pb_value" json:"pb_value"`
	KeyMetrics       datatypes.JSONType[KeyMetrics] `gorm:"type:jsonb" json:"key_metrics"`
	EstimatedMetrics pq.StringArray                 `gorm:"type:text[]" json:"estimated_metrics"`
	LowConfidence    bool                           `gorm:"not null;default:false" json:"low_confidence"`
	CreatedAt        time.Time                      `gorm:"autoCreateTime" json:"created_at"`
}

func (ValuationRecord) TableName() string {
	return "valuations"
}
