package dto

import "golang-stock-valuation/internal/entity"

// Direction of a change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

func DirectionOf(delta float64) Direction {
	switch {
	case delta > 0:
		return DirectionUp
	case delta < 0:
		return DirectionDown
	}
	return DirectionFlat
}

// MetricDelta is the change of one key metric between two valuations.
type MetricDelta struct {
	Metric      string    `json:"metric"`
	Previous    *float64  `json:"previous"`
	Current     *float64  `json:"current"`
	Absolute    float64   `json:"absolute"`
	Relative    float64   `json:"relative"`
	Direction   Direction `json:"direction"`
	Significant bool      `json:"significant"`
}

// Attribution names one driver of the valuation change.
type Attribution struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Magnitude float64   `json:"magnitude"`
}

// ChangeAnalysis compares a valuation with the previous one for the same symbol.
type ChangeAnalysis struct {
	Symbol                 string                `json:"symbol"`
	Market                 entity.Market         `json:"market"`
	First                  bool                  `json:"first"`
	PriceChange            float64               `json:"price_change"`
	IntrinsicChange        float64               `json:"intrinsic_change"`
	MOSChange              float64               `json:"mos_change"`
	Days                   int                   `json:"days"`
	MetricDeltas           []MetricDelta         `json:"metric_deltas"`
	PriceDriven            bool                  `json:"price_driven"`
	FundamentalDriven      bool                  `json:"fundamental_driven"`
	Attribution            []Attribution         `json:"attribution"`
	BaseRecommendation     entity.Recommendation `json:"base_recommendation"`
	AdjustedRecommendation entity.Recommendation `json:"adjusted_recommendation"`
}
