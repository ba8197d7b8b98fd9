package service

import (
	"math"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/utils"
)

// trackedMetrics are the key metrics compared between two valuations.
var trackedMetrics = []struct {
	name  string
	value func(entity.KeyMetrics) *float64
}{
	{"roe", func(m entity.KeyMetrics) *float64 { return m.ROE }},
	{"revenue_growth", func(m entity.KeyMetrics) *float64 { return m.RevenueGrowth }},
	{"profit_growth", func(m entity.KeyMetrics) *float64 { return m.ProfitGrowth }},
	{"pe", func(m entity.KeyMetrics) *float64 { return m.PE }},
	{"pb", func(m entity.KeyMetrics) *float64 { return m.PB }},
	{"debt_ratio", func(m entity.KeyMetrics) *float64 { return m.DebtRatio }},
}

// ChangeAnalyzer attributes the difference between two valuations of a symbol
// to price movement and fundamental movement.
type ChangeAnalyzer struct {
	cfg config.Change
}

func NewChangeAnalyzer(cfg config.Change) *ChangeAnalyzer {
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = 0.05
	}
	if cfg.FundamentalThreshold <= 0 {
		cfg.FundamentalThreshold = 0.05
	}
	if cfg.PriceDrivenRatio <= 0 {
		cfg.PriceDrivenRatio = 2
	}
	if cfg.MOSAdjustThreshold <= 0 {
		cfg.MOSAdjustThreshold = 0.15
	}
	if cfg.LargePriceMove <= 0 {
		cfg.LargePriceMove = 0.10
	}
	if cfg.LargeMOSMove <= 0 {
		cfg.LargeMOSMove = 0.10
	}
	return &ChangeAnalyzer{cfg: cfg}
}

// Analyze compares current with previous. previous is nil on the first
// valuation of a symbol, in which case only the base recommendation is set.
func (a *ChangeAnalyzer) Analyze(current, previous *entity.ValuationRecord) *dto.ChangeAnalysis {
	out := &dto.ChangeAnalysis{
		Symbol:                 current.Symbol,
		Market:                 current.Market,
		BaseRecommendation:     current.Recommendation,
		AdjustedRecommendation: current.Recommendation,
		MetricDeltas:           []dto.MetricDelta{},
		Attribution:            []dto.Attribution{},
	}
	if previous == nil {
		out.First = true
		return out
	}

	out.PriceChange = relativeChange(previous.CurrentPrice, current.CurrentPrice)
	out.IntrinsicChange = relativeChange(previous.IntrinsicValue, current.IntrinsicValue)
	out.MOSChange = current.MarginOfSafety - previous.MarginOfSafety
	out.Days = utils.DaysBetween(previous.AnalysisDate, current.AnalysisDate)

	out.PriceDriven = math.Abs(out.PriceChange) > a.cfg.PriceDrivenRatio*math.Abs(out.IntrinsicChange)
	out.FundamentalDriven = math.Abs(out.IntrinsicChange) > a.cfg.FundamentalThreshold

	if math.Abs(out.PriceChange) > a.cfg.LargePriceMove {
		out.Attribution = append(out.Attribution, dto.Attribution{Metric: "price", Direction: dto.DirectionOf(out.PriceChange), Magnitude: out.PriceChange})
	}
	if out.FundamentalDriven {
		out.Attribution = append(out.Attribution, dto.Attribution{Metric: "intrinsic_value", Direction: dto.DirectionOf(out.IntrinsicChange), Magnitude: out.IntrinsicChange})
	}
	if math.Abs(out.MOSChange) > a.cfg.LargeMOSMove {
		out.Attribution = append(out.Attribution, dto.Attribution{Metric: "margin_of_safety", Direction: dto.DirectionOf(out.MOSChange), Magnitude: out.MOSChange})
	}

	prevMetrics := previous.KeyMetrics.Data()
	curMetrics := current.KeyMetrics.Data()
	for _, m := range trackedMetrics {
		delta := a.metricDelta(m.name, m.value(prevMetrics), m.value(curMetrics))
		out.MetricDeltas = append(out.MetricDeltas, delta)
		if delta.Significant {
			out.Attribution = append(out.Attribution, dto.Attribution{Metric: delta.Metric, Direction: delta.Direction, Magnitude: delta.Relative})
		}
	}

	out.AdjustedRecommendation = a.adjust(current.Recommendation, out.MOSChange)
	return out
}

func (a *ChangeAnalyzer) metricDelta(name string, prev, cur *float64) dto.MetricDelta {
	delta := dto.MetricDelta{Metric: name, Previous: prev, Current: cur, Direction: dto.DirectionFlat}
	if prev == nil || cur == nil {
		return delta
	}
	delta.Absolute = *cur - *prev
	delta.Relative = relativeChange(*prev, *cur)
	delta.Direction = dto.DirectionOf(delta.Absolute)
	delta.Significant = math.Abs(delta.Relative) > a.cfg.SignificanceThreshold
	return delta
}

// adjust strengthens or weakens the base recommendation on a large move of
// the margin of safety.
func (a *ChangeAnalyzer) adjust(base entity.Recommendation, mosChange float64) entity.Recommendation {
	switch {
	case mosChange > a.cfg.MOSAdjustThreshold:
		if base.IsBuySide() {
			return entity.RecommendationAccumulate
		}
		return entity.RecommendationMonitorImproving
	case mosChange < -a.cfg.MOSAdjustThreshold:
		if base == entity.RecommendationSell {
			return entity.RecommendationConsiderStopLoss
		}
		return entity.RecommendationCautiousHold
	}
	return base
}

// relativeChange is (cur - prev) / |prev|. A move away from zero counts as 100%.
func relativeChange(prev, cur float64) float64 {
	if prev == 0 {
		switch {
		case cur > 0:
			return 1
		case cur < 0:
			return -1
		}
		return 0
	}
	return (cur - prev) / math.Abs(prev)
}
