package service

import (
	"encoding/json"
	"testing"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEngine() *ValuationEngine {
	return NewValuationEngine(config.Valuation{})
}

func TestValuationEngine_DCF(t *testing.T) {
	e := defaultEngine()

	t.Run("growth equal to discount rate", func(t *testing.T) {
		// Each projected year discounts back to exactly 1; the terminal value
		// discounts back to 1.03 / 0.07.
		fin := &dto.Financials{FCFPerShare: dto.Measured(1), ProfitGrowth: dto.Measured(10)}
		assert.InDelta(t, 5+1.03/0.07, e.DCFValue(fin, 10), 1e-9)
	})

	t.Run("growth capped at 25 percent", func(t *testing.T) {
		capped := &dto.Financials{FCFPerShare: dto.Measured(1), ProfitGrowth: dto.Measured(25)}
		high := &dto.Financials{FCFPerShare: dto.Measured(1), ProfitGrowth: dto.Measured(80)}
		assert.InDelta(t, e.DCFValue(capped, 10), e.DCFValue(high, 10), 1e-9)
	})

	t.Run("operating cash flow proxy", func(t *testing.T) {
		direct := &dto.Financials{FCFPerShare: dto.Measured(2), ProfitGrowth: dto.Measured(10)}
		proxy := &dto.Financials{OperatingCashFlow: dto.Measured(200), SharesOutstanding: dto.Measured(100), ProfitGrowth: dto.Measured(10)}
		assert.InDelta(t, e.DCFValue(direct, 10), e.DCFValue(proxy, 10), 1e-9)
	})

	degenerate := []struct {
		name string
		fin  *dto.Financials
	}{
		{"no cash flow", &dto.Financials{ProfitGrowth: dto.Measured(10)}},
		{"zero cash flow", &dto.Financials{FCFPerShare: dto.Measured(0), ProfitGrowth: dto.Measured(10)}},
		{"negative cash flow", &dto.Financials{FCFPerShare: dto.Measured(-1), ProfitGrowth: dto.Measured(10)}},
		{"zero growth", &dto.Financials{FCFPerShare: dto.Measured(1), ProfitGrowth: dto.Measured(0)}},
		{"negative growth", &dto.Financials{FCFPerShare: dto.Measured(1), ProfitGrowth: dto.Measured(-30)}},
		{"missing growth", &dto.Financials{FCFPerShare: dto.Measured(1)}},
	}
	for _, tt := range degenerate {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, 12.0, e.DCFValue(tt.fin, 10), 1e-9)
		})
	}
}

func TestPEValue(t *testing.T) {
	tests := []struct {
		name string
		fin  *dto.Financials
		want float64
	}{
		{"high growth high roe", &dto.Financials{EPS: dto.Measured(1), ProfitGrowth: dto.Measured(25), ROE: dto.Measured(20)}, 28},
		{"growth above 15", &dto.Financials{EPS: dto.Measured(1), ProfitGrowth: dto.Measured(16), ROE: dto.Measured(10)}, 20},
		{"growth above 10 weak roe", &dto.Financials{EPS: dto.Measured(2), ProfitGrowth: dto.Measured(12), ROE: dto.Measured(5)}, 26},
		{"growth exactly 10", &dto.Financials{EPS: dto.Measured(1), ProfitGrowth: dto.Measured(10)}, 12},
		{"missing roe has no adjustment", &dto.Financials{EPS: dto.Measured(1)}, 12},
		{"non-positive eps falls back to price", &dto.Financials{EPS: dto.Measured(-1), ProfitGrowth: dto.Measured(30)}, 50},
		{"missing eps falls back to price", &dto.Financials{}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PEValue(tt.fin, 50), 1e-9)
		})
	}
}

func TestPBValue(t *testing.T) {
	tests := []struct {
		name string
		fin  *dto.Financials
		want float64
	}{
		{"roe above 15", &dto.Financials{BookValuePerShare: dto.Measured(10), ROE: dto.Measured(16)}, 25},
		{"roe above 12", &dto.Financials{BookValuePerShare: dto.Measured(10), ROE: dto.Measured(13)}, 20},
		{"roe above 8", &dto.Financials{BookValuePerShare: dto.Measured(10), ROE: dto.Measured(9)}, 15},
		{"low roe", &dto.Financials{BookValuePerShare: dto.Measured(10), ROE: dto.Measured(3)}, 10},
		{"missing roe", &dto.Financials{BookValuePerShare: dto.Measured(10)}, 10},
		{"no book value", &dto.Financials{ROE: dto.Measured(20)}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PBValue(tt.fin, 7), 1e-9)
		})
	}
}

func TestQualityScore(t *testing.T) {
	strong := &dto.Financials{
		ROE:           dto.Measured(20),
		ROA:           dto.Measured(10),
		DebtRatio:     dto.Measured(30),
		RevenueGrowth: dto.Measured(20),
		ProfitGrowth:  dto.Measured(20),
		CurrentRatio:  dto.Measured(2),
		DividendYield: dto.Measured(4),
	}
	assert.Equal(t, 100.0, QualityScore(strong))
	assert.Equal(t, "excellent", QualityRating(QualityScore(strong)))

	middling := &dto.Financials{
		ROE:           dto.Measured(12),
		ROA:           dto.Measured(6),
		DebtRatio:     dto.Measured(50),
		RevenueGrowth: dto.Measured(10),
		ProfitGrowth:  dto.Measured(10),
		CurrentRatio:  dto.Measured(1.2),
		DividendYield: dto.Measured(2),
	}
	assert.Equal(t, 52.0, QualityScore(middling))
	assert.Equal(t, "fair", QualityRating(52))

	heavyDebt := &dto.Financials{DebtRatio: dto.Measured(75)}
	assert.Equal(t, 0.0, QualityScore(heavyDebt))

	estimated := &dto.Financials{ROE: dto.Estimated(20), DebtRatio: dto.Measured(30)}
	assert.Equal(t, 25.0, QualityScore(estimated))

	assert.Equal(t, 0.0, QualityScore(&dto.Financials{}))
	assert.Equal(t, "poor", QualityRating(0))
	assert.Equal(t, "good", QualityRating(60))
}

func TestWeightsFor(t *testing.T) {
	assert.Equal(t, [3]float64{0.50, 0.30, 0.20}, WeightsFor(85))
	assert.Equal(t, [3]float64{0.40, 0.35, 0.25}, WeightsFor(60))
	assert.Equal(t, [3]float64{0.25, 0.40, 0.35}, WeightsFor(59.5))
	for _, q := range []float64{0, 40, 60, 80, 100} {
		w := WeightsFor(q)
		assert.InDelta(t, 1.0, w[0]+w[1]+w[2], 1e-9)
	}
}

func TestRecommendationFor(t *testing.T) {
	tests := []struct {
		mos  float64
		want entity.Recommendation
	}{
		{0.9, entity.RecommendationStrongBuy},
		{0.51, entity.RecommendationStrongBuy},
		{0.5, entity.RecommendationBuy},
		{0.31, entity.RecommendationBuy},
		{0.3, entity.RecommendationHold},
		{0.11, entity.RecommendationHold},
		{0.1, entity.RecommendationWatch},
		{0, entity.RecommendationWatch},
		{-0.09, entity.RecommendationWatch},
		{-0.1, entity.RecommendationSell},
		{-3, entity.RecommendationSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendationFor(tt.mos), "mos=%v", tt.mos)
	}
}

func TestConfidence(t *testing.T) {
	full := &dto.Financials{
		EPS:         dto.Measured(1),
		FCFPerShare: dto.Measured(1),
		ROE:         dto.Measured(10),
		PE:          dto.Measured(10),
		PB:          dto.Measured(1),
		DebtRatio:   dto.Measured(40),
	}
	assert.Equal(t, 100.0, ConfidenceScore(full))
	assert.Equal(t, entity.ConfidenceHigh, ConfidenceFor(100))

	partial := &dto.Financials{EPS: dto.Measured(1), PE: dto.Measured(10), PB: dto.Measured(1)}
	assert.Equal(t, 50.0, ConfidenceScore(partial))
	assert.Equal(t, entity.ConfidenceMedium, ConfidenceFor(50))

	lossMaking := &dto.Financials{EPS: dto.Measured(-1), FCFPerShare: dto.Estimated(2)}
	assert.Equal(t, 10.0, ConfidenceScore(lossMaking))
	assert.Equal(t, entity.ConfidenceLow, ConfidenceFor(10))
}

func TestValuationEngine_ClampInvariant(t *testing.T) {
	e := defaultEngine()
	inputs := []*dto.Financials{
		nil,
		{},
		{EPS: dto.Measured(-5), BookValuePerShare: dto.Measured(-2), FCFPerShare: dto.Measured(-1), ProfitGrowth: dto.Measured(-50)},
		{EPS: dto.Measured(0.0001), BookValuePerShare: dto.Measured(0.0001), ROE: dto.Measured(1), ProfitGrowth: dto.Measured(0)},
		{FCFPerShare: dto.Measured(0.01), ProfitGrowth: dto.Measured(1), ROE: dto.Measured(20), ROA: dto.Measured(20), DebtRatio: dto.Measured(10), RevenueGrowth: dto.Measured(30), CurrentRatio: dto.Measured(3), DividendYield: dto.Measured(5)},
	}
	for _, price := range []float64{0.5, 12, 1700} {
		for i, fin := range inputs {
			res := e.Evaluate(dto.ValuationInput{Symbol: "X", Market: entity.MarketCNA, Price: price, Financials: fin})
			assert.GreaterOrEqual(t, res.IntrinsicValue, 0.5*price, "input %d price %v", i, price)
			assert.LessOrEqual(t, res.MarginOfSafety, 1.0)
			assert.Contains(t, []entity.Recommendation{
				entity.RecommendationStrongBuy, entity.RecommendationBuy, entity.RecommendationHold,
				entity.RecommendationWatch, entity.RecommendationSell,
			}, res.Recommendation)
		}
	}
}

func TestValuationEngine_Idempotent(t *testing.T) {
	e := defaultEngine()
	in := dto.ValuationInput{
		Symbol: "600519",
		Market: entity.MarketCNA,
		Price:  1700,
		Financials: &dto.Financials{
			EPS:               dto.Measured(60),
			BookValuePerShare: dto.Measured(200),
			FCFPerShare:       dto.Estimated(55),
			ROE:               dto.Measured(30),
			ProfitGrowth:      dto.Measured(15),
			DebtRatio:         dto.Measured(20),
		},
	}
	first, err := json.Marshal(e.Evaluate(in))
	require.NoError(t, err)
	second, err := json.Marshal(e.Evaluate(in))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValuationEngine_Evaluate(t *testing.T) {
	e := defaultEngine()
	res := e.Evaluate(dto.ValuationInput{
		Symbol:     "600000",
		Market:     entity.MarketCNA,
		Price:      12,
		Financials: &dto.Financials{EPS: dto.Measured(1), ProfitGrowth: dto.Measured(10)},
	})

	// Quality 8 selects the low-quality weights: 0.25*14.4 + 0.4*12 + 0.35*12.
	assert.Equal(t, 8.0, res.QualityScore)
	assert.InDelta(t, 14.4, res.DCFValue, 1e-9)
	assert.InDelta(t, 12.6, res.IntrinsicValue, 1e-9)
	assert.InDelta(t, 0.6/12.6, res.MarginOfSafety, 1e-9)
	assert.Equal(t, entity.RecommendationWatch, res.Recommendation)
	assert.Equal(t, entity.ConfidenceLow, res.Confidence)
	assert.True(t, res.LowConfidence)
	require.NotNil(t, res.KeyMetrics.ProfitGrowth)
	assert.Nil(t, res.KeyMetrics.ROE)
	assert.Empty(t, res.EstimatedMetrics)

	withEstimate := e.Evaluate(dto.ValuationInput{
		Price:      12,
		Financials: &dto.Financials{EPS: dto.Measured(1), ROE: dto.Estimated(9)},
	})
	assert.Equal(t, []string{"roe"}, withEstimate.EstimatedMetrics)
}
