package service

import (
	"testing"
	"time"

	"golang-stock-valuation/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHours(t *testing.T) *MarketHours {
	t.Helper()
	h, err := NewMarketHours()
	require.NoError(t, err)
	return h
}

func TestMarketHours_IsOpen(t *testing.T) {
	h := mustHours(t)
	sh := h.Location(entity.MarketCNA)
	hk := h.Location(entity.MarketHK)
	ny := h.Location(entity.MarketUS)

	// 2024-06-03 is a Monday.
	tests := []struct {
		name   string
		market entity.Market
		at     time.Time
		want   bool
	}{
		{"cn before open", entity.MarketCNA, time.Date(2024, 6, 3, 9, 29, 0, 0, sh), false},
		{"cn morning", entity.MarketCNA, time.Date(2024, 6, 3, 9, 30, 0, 0, sh), true},
		{"cn lunch", entity.MarketCNA, time.Date(2024, 6, 3, 12, 0, 0, 0, sh), false},
		{"cn afternoon", entity.MarketCNA, time.Date(2024, 6, 3, 14, 59, 0, 0, sh), true},
		{"cn close", entity.MarketCNA, time.Date(2024, 6, 3, 15, 0, 0, 0, sh), false},
		{"cn saturday", entity.MarketCNA, time.Date(2024, 6, 8, 10, 0, 0, 0, sh), false},
		{"fund follows cn", entity.MarketFund, time.Date(2024, 6, 3, 10, 0, 0, 0, sh), true},
		{"hk late morning", entity.MarketHK, time.Date(2024, 6, 3, 11, 45, 0, 0, hk), true},
		{"hk afternoon", entity.MarketHK, time.Date(2024, 6, 3, 15, 30, 0, 0, hk), true},
		{"hk after close", entity.MarketHK, time.Date(2024, 6, 3, 16, 0, 0, 0, hk), false},
		{"us open", entity.MarketUS, time.Date(2024, 6, 3, 9, 30, 0, 0, ny), true},
		{"us close", entity.MarketUS, time.Date(2024, 6, 3, 16, 0, 0, 0, ny), false},
		{"unknown market", entity.Market("XX"), time.Date(2024, 6, 3, 10, 0, 0, 0, sh), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsOpen(tt.market, tt.at))
		})
	}
}

func TestMarketHours_SessionStartAndOpenMarkets(t *testing.T) {
	h := mustHours(t)
	sh := h.Location(entity.MarketCNA)

	start, ok := h.SessionStart(entity.MarketCNA, time.Date(2024, 6, 3, 14, 0, 0, 0, sh))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 3, 13, 0, 0, 0, sh), start)

	// 10:00 Shanghai is 10:00 Hong Kong and 22:00 New York the previous day.
	open := h.OpenMarkets(time.Date(2024, 6, 3, 10, 0, 0, 0, sh))
	assert.Equal(t, []entity.Market{entity.MarketCNA, entity.MarketHK, entity.MarketFund}, open)
}
