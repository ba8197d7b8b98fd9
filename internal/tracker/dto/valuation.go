package dto

import (
	"time"

	"golang-stock-valuation/internal/entity"

	"gorm.io/datatypes"
)

// ValuationInput is everything the valuation engine needs for one symbol.
type ValuationInput struct {
	Symbol     string
	Market     entity.Market
	Price      float64
	Financials *Financials
	StaleQuote bool
}

// ValuationResult is the engine's output before it is stamped with an analysis date.
type ValuationResult struct {
	CurrentPrice     float64               `json:"current_price"`
	DCFValue         float64               `json:"dcf_value"`
	PEValue          float64               `json:"pe_value"`
	PBValue          float64               `json:"pb_value"`
	Weights          [3]float64            `json:"weights"`
	IntrinsicValue   float64               `json:"intrinsic_value"`
	MarginOfSafety   float64               `json:"margin_of_safety"`
	Recommendation   entity.Recommendation `json:"recommendation"`
	QualityScore     float64               `json:"quality_score"`
	QualityRating    string                `json:"quality_rating"`
	ConfidenceScore  float64               `json:"confidence_score"`
	Confidence       entity.Confidence     `json:"confidence"`
	LowConfidence    bool                  `json:"low_confidence"`
	KeyMetrics       entity.KeyMetrics     `json:"key_metrics"`
	EstimatedMetrics []string              `json:"estimated_metrics"`
}

// ToRecord stamps the result into a persistable ValuationRecord.
func (r *ValuationResult) ToRecord(symbol string, market entity.Market, analysisDate time.Time) *entity.ValuationRecord {
	return &entity.ValuationRecord{
		Symbol:           symbol,
		Market:           market,
		AnalysisDate:     analysisDate,
		CurrentPrice:     r.CurrentPrice,
		IntrinsicValue:   r.IntrinsicValue,
		MarginOfSafety:   r.MarginOfSafety,
		Recommendation:   r.Recommendation,
		Confidence:       r.Confidence,
		QualityScore:     r.QualityScore,
		DCFValue:         r.DCFValue,
		PEValue:          r.PEValue,
		PBValue:          r.PBValue,
		KeyMetrics:       datatypes.NewJSONType(r.KeyMetrics),
		EstimatedMetrics: append([]string{}, r.EstimatedMetrics...),
		LowConfidence:    r.LowConfidence,
	}
}
