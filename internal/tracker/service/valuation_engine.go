package service

import (
	"math"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
)

type tier struct {
	threshold float64
	points    float64
}

// scoreRule awards the points of the first tier the metric passes.
type scoreRule struct {
	metric        func(*dto.Financials) dto.Metric
	tiers         []tier
	lowerIsBetter bool
}

var qualityRules = []scoreRule{
	{metric: func(f *dto.Financials) dto.Metric { return f.ROE }, tiers: []tier{{15, 20}, {10, 10}}},
	{metric: func(f *dto.Financials) dto.Metric { return f.ROA }, tiers: []tier{{8, 15}, {5, 8}}},
	{metric: func(f *dto.Financials) dto.Metric { return f.DebtRatio }, tiers: []tier{{40, 15}, {60, 8}}, lowerIsBetter: true},
	{metric: func(f *dto.Financials) dto.Metric { return f.RevenueGrowth }, tiers: []tier{{15, 15}, {8, 8}}},
	{metric: func(f *dto.Financials) dto.Metric { return f.ProfitGrowth }, tiers: []tier{{15, 15}, {8, 8}}},
	{metric: func(f *dto.Financials) dto.Metric { return f.CurrentRatio }, tiers: []tier{{1.5, 10}, {1.0, 5}}},
	{metric: func(f *dto.Financials) dto.Metric { return f.DividendYield }, tiers: []tier{{3, 10}, {1, 5}}},
}

// Fair PE by profit growth (percent), highest threshold first.
var fairPETiers = []tier{{20, 25}, {15, 20}, {10, 15}}

const baseFairPE = 12.0

// Fair PB by ROE (percent), highest threshold first.
var fairPBTiers = []tier{{15, 2.5}, {12, 2.0}, {8, 1.5}}

const baseFairPB = 1.0

var recommendationBands = []struct {
	above          float64
	recommendation entity.Recommendation
}{
	{0.5, entity.RecommendationStrongBuy},
	{0.3, entity.RecommendationBuy},
	{0.1, entity.RecommendationHold},
	{-0.1, entity.RecommendationWatch},
}

// Composite weights (dcf, pe, pb) by minimum quality score.
var compositeWeights = []struct {
	minQuality float64
	weights    [3]float64
}{
	{80, [3]float64{0.50, 0.30, 0.20}},
	{60, [3]float64{0.40, 0.35, 0.25}},
	{0, [3]float64{0.25, 0.40, 0.35}},
}

// Points per measured input towards the confidence score.
var confidenceInputs = []struct {
	metric   func(*dto.Financials) dto.Metric
	points   float64
	positive bool
}{
	{func(f *dto.Financials) dto.Metric { return f.EPS }, 20, true},
	{func(f *dto.Financials) dto.Metric { return fcfProxy(f) }, 20, true},
	{func(f *dto.Financials) dto.Metric { return f.ROE }, 15, false},
	{func(f *dto.Financials) dto.Metric { return f.PE }, 15, false},
	{func(f *dto.Financials) dto.Metric { return f.PB }, 15, false},
	{func(f *dto.Financials) dto.Metric { return f.DebtRatio }, 15, false},
}

// ValuationEngine computes composite intrinsic values. It is pure: the same
// input always produces the same result.
type ValuationEngine struct {
	params config.Valuation
}

// NewValuationEngine creates an engine, filling unset parameters with the standard model.
func NewValuationEngine(params config.Valuation) *ValuationEngine {
	if params.DiscountRate <= 0 {
		params.DiscountRate = 0.10
	}
	if params.TerminalGrowth <= 0 || params.TerminalGrowth >= params.DiscountRate {
		params.TerminalGrowth = 0.03
	}
	if params.GrowthCap <= 0 {
		params.GrowthCap = 0.25
	}
	if params.ProjectionYears <= 0 {
		params.ProjectionYears = 5
	}
	if params.DegenerateMultiplier <= 0 {
		params.DegenerateMultiplier = 1.2
	}
	if params.FloorRatio <= 0 {
		params.FloorRatio = 0.5
	}
	return &ValuationEngine{params: params}
}

// Evaluate values one holding. Missing financials lower the quality and
// confidence scores instead of failing.
func (e *ValuationEngine) Evaluate(in dto.ValuationInput) *dto.ValuationResult {
	fin := in.Financials
	if fin == nil {
		fin = &dto.Financials{Symbol: in.Symbol, Market: in.Market}
	}
	price := in.Price

	quality := QualityScore(fin)
	dcf := e.DCFValue(fin, price)
	pe := PEValue(fin, price)
	pb := PBValue(fin, price)

	weights := WeightsFor(quality)
	intrinsic := weights[0]*dcf + weights[1]*pe + weights[2]*pb
	if floor := e.params.FloorRatio * price; intrinsic < floor {
		intrinsic = floor
	}

	mos := MarginOfSafety(intrinsic, price)
	confidenceScore := ConfidenceScore(fin)
	confidence := ConfidenceFor(confidenceScore)

	return &dto.ValuationResult{
		CurrentPrice:    price,
		DCFValue:        dcf,
		PEValue:         pe,
		PBValue:         pb,
		Weights:         weights,
		IntrinsicValue:  intrinsic,
		MarginOfSafety:  mos,
		Recommendation:  RecommendationFor(mos),
		QualityScore:    quality,
		QualityRating:   QualityRating(quality),
		ConfidenceScore: confidenceScore,
		Confidence:      confidence,
		LowConfidence:   confidence == entity.ConfidenceLow || in.StaleQuote || in.Financials == nil,
		KeyMetrics: entity.KeyMetrics{
			ROE:           fin.ROE.Ptr(),
			ROA:           fin.ROA.Ptr(),
			RevenueGrowth: fin.RevenueGrowth.Ptr(),
			ProfitGrowth:  fin.ProfitGrowth.Ptr(),
			PE:            fin.PE.Ptr(),
			PB:            fin.PB.Ptr(),
			DebtRatio:     fin.DebtRatio.Ptr(),
			CurrentRatio:  fin.CurrentRatio.Ptr(),
			DividendYield: fin.DividendYield.Ptr(),
			QualityScore:  quality,
			QualityRating: QualityRating(quality),
		},
		EstimatedMetrics: fin.EstimatedNames(),
	}
}

// DCFValue projects free cash flow per share with a capped growth rate and adds
// a Gordon-growth terminal value.
func (e *ValuationEngine) DCFValue(fin *dto.Financials, price float64) float64 {
	fcf := fcfProxy(fin)
	growth := 0.0
	if fin.ProfitGrowth.Present() {
		growth = math.Min(fin.ProfitGrowth.Value/100, e.params.GrowthCap)
	}
	if !fcf.Present() || fcf.Value <= 0 || growth <= 0 {
		return e.params.DegenerateMultiplier * price
	}

	r := e.params.DiscountRate
	n := e.params.ProjectionYears
	total := 0.0
	cash := fcf.Value
	for year := 1; year <= n; year++ {
		cash *= 1 + growth
		total += cash / math.Pow(1+r, float64(year))
	}
	terminal := cash * (1 + e.params.TerminalGrowth) / (r - e.params.TerminalGrowth)
	total += terminal / math.Pow(1+r, float64(n))

	return math.Max(total, e.params.FloorRatio*price)
}

// PEValue is eps × a fair PE chosen by profit growth and adjusted by ROE.
func PEValue(fin *dto.Financials, price float64) float64 {
	if !fin.EPS.Present() || fin.EPS.Value <= 0 {
		return price
	}
	fairPE := lookup(fairPETiers, fin.ProfitGrowth, baseFairPE)
	if fin.ROE.Present() {
		switch {
		case fin.ROE.Value > 15:
			fairPE += 3
		case fin.ROE.Value < 8:
			fairPE -= 2
		}
	}
	return fin.EPS.Value * fairPE
}

// PBValue is book value per share × a fair PB chosen by ROE.
func PBValue(fin *dto.Financials, price float64) float64 {
	if !fin.BookValuePerShare.Present() || fin.BookValuePerShare.Value <= 0 {
		return price
	}
	return fin.BookValuePerShare.Value * lookup(fairPBTiers, fin.ROE, baseFairPB)
}

func lookup(tiers []tier, m dto.Metric, fallback float64) float64 {
	if !m.Present() {
		return fallback
	}
	for _, t := range tiers {
		if m.Value > t.threshold {
			return t.points
		}
	}
	return fallback
}

// QualityScore rates financial health 0-100. Estimated metrics earn half points.
func QualityScore(fin *dto.Financials) float64 {
	score := 0.0
	for _, rule := range qualityRules {
		m := rule.metric(fin)
		if !m.Present() {
			continue
		}
		for _, t := range rule.tiers {
			passed := m.Value > t.threshold
			if rule.lowerIsBetter {
				passed = m.Value < t.threshold
			}
			if passed {
				points := t.points
				if m.IsEstimated() {
					points /= 2
				}
				score += points
				break
			}
		}
	}
	return math.Min(score, 100)
}

func QualityRating(score float64) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	}
	return "poor"
}

// WeightsFor returns the dcf, pe and pb weights for a quality score.
func WeightsFor(quality float64) [3]float64 {
	for _, w := range compositeWeights {
		if quality >= w.minQuality {
			return w.weights
		}
	}
	return compositeWeights[len(compositeWeights)-1].weights
}

// MarginOfSafety is (intrinsic - price) / intrinsic, zero for a non-positive intrinsic value.
func MarginOfSafety(intrinsic, price float64) float64 {
	if intrinsic <= 0 {
		return 0
	}
	return (intrinsic - price) / intrinsic
}

// RecommendationFor maps a margin of safety onto the fixed band table.
func RecommendationFor(mos float64) entity.Recommendation {
	for _, band := range recommendationBands {
		if mos > band.above {
			return band.recommendation
		}
	}
	return entity.RecommendationSell
}

// ConfidenceScore grades data completeness 0-100. Estimated inputs earn half points.
func ConfidenceScore(fin *dto.Financials) float64 {
	score := 0.0
	for _, in := range confidenceInputs {
		m := in.metric(fin)
		if !m.Present() || (in.positive && m.Value <= 0) {
			continue
		}
		if m.IsEstimated() {
			score += in.points / 2
		} else {
			score += in.points
		}
	}
	return score
}

func ConfidenceFor(score float64) entity.Confidence {
	switch {
	case score >= 80:
		return entity.ConfidenceHigh
	case score >= 50:
		return entity.ConfidenceMedium
	}
	return entity.ConfidenceLow
}

// fcfProxy is free cash flow per share, or operating cash flow per share when
// only that is known.
func fcfProxy(fin *dto.Financials) dto.Metric {
	if fin.FCFPerShare.Present() {
		return fin.FCFPerShare
	}
	if fin.OperatingCashFlow.Present() && fin.SharesOutstanding.Present() && fin.SharesOutstanding.Value > 0 {
		basis := dto.BasisMeasured
		if fin.OperatingCashFlow.IsEstimated() || fin.SharesOutstanding.IsEstimated() {
			basis = dto.BasisEstimated
		}
		return dto.Metric{Value: fin.OperatingCashFlow.Value / fin.SharesOutstanding.Value, Basis: basis}
	}
	return dto.Metric{}
}
