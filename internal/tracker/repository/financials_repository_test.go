package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

type fakeFinancials struct {
	fin *dto.Financials
	err error
}

func (f *fakeFinancials) GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.fin
	return &cp, nil
}

func TestParseEstimatedFinancials(t *testing.T) {
	t.Run("fenced and trailing comma", func(t *testing.T) {
		fin, err := ParseEstimatedFinancials("```json\n{\"eps\": 1.5, \"roe\": 12, \"fcf_per_share\": null, \"fiscal_year\": 2024,}\n```")
		require.NoError(t, err)
		assert.True(t, fin.EPS.IsEstimated())
		assert.InDelta(t, 1.5, fin.EPS.Value, 1e-9)
		assert.InDelta(t, 12.0, fin.ROE.Value, 1e-9)
		assert.False(t, fin.FCFPerShare.Present())
		assert.Equal(t, 2024, fin.FiscalYear)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseEstimatedFinancials("[1, 2, 3]")
		assert.Error(t, err)
	})
}

func TestGeminiEstimator_Estimate(t *testing.T) {
	gen := &fakeGenerator{response: `{"eps": 2, "profit_growth": 18}`}
	est := NewGeminiEstimatorRepository(&config.Config{Gemini: config.Gemini{MaxRequestPerMinute: 6000}}, logger.NewNop(), gen)

	known := &dto.Financials{PE: dto.Measured(15)}
	fin, err := est.Estimate(context.Background(), "600519", entity.MarketCNA, known)
	require.NoError(t, err)
	assert.Equal(t, "600519", fin.Symbol)
	assert.InDelta(t, 18.0, fin.ProfitGrowth.Value, 1e-9)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.Contains(gen.prompts[0], "- pe: 15.0000"))
}

func TestCompositeFinancials(t *testing.T) {
	ctx := context.Background()

	t.Run("measured wins over estimate", func(t *testing.T) {
		measured := &fakeFinancials{fin: &dto.Financials{EPS: dto.Measured(3), PE: dto.Measured(10)}}
		gen := &fakeGenerator{response: `{"eps": 99, "roe": 20, "profit_growth": 12}`}
		est := NewGeminiEstimatorRepository(&config.Config{Gemini: config.Gemini{MaxRequestPerMinute: 6000}}, logger.NewNop(), gen)

		fin, err := NewCompositeFinancialsRepository(measured, est, logger.NewNop()).GetFinancials(ctx, "X", entity.MarketUS)
		require.NoError(t, err)
		assert.True(t, fin.EPS.IsMeasured())
		assert.InDelta(t, 3.0, fin.EPS.Value, 1e-9)
		assert.True(t, fin.ROE.IsEstimated())
		assert.Equal(t, []string{"profit_growth", "roe"}, fin.EstimatedNames())
	})

	t.Run("estimator failure keeps measured", func(t *testing.T) {
		measured := &fakeFinancials{fin: &dto.Financials{PE: dto.Measured(10)}}
		gen := &fakeGenerator{err: errors.New("quota")}
		est := NewGeminiEstimatorRepository(&config.Config{Gemini: config.Gemini{MaxRequestPerMinute: 6000}}, logger.NewNop(), gen)

		fin, err := NewCompositeFinancialsRepository(measured, est, logger.NewNop()).GetFinancials(ctx, "X", entity.MarketUS)
		require.NoError(t, err)
		assert.True(t, fin.PE.IsMeasured())
		assert.False(t, fin.EPS.Present())
	})

	t.Run("measured failure without estimator", func(t *testing.T) {
		measured := &fakeFinancials{err: errors.New("down")}
		_, err := NewCompositeFinancialsRepository(measured, nil, logger.NewNop()).GetFinancials(ctx, "X", entity.MarketUS)
		assert.Error(t, err)
	})
}
