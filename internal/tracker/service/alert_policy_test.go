package service

import (
	"path/filepath"
	"testing"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultAlertConfig loads the alert thresholds the way the binary does when
// no config file sets them.
func defaultAlertConfig(t *testing.T) config.Alert {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg.Alert
}

func kinds(events []dto.AlertEvent) []dto.AlertKind {
	out := []dto.AlertKind{}
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

// runCycles feeds a pnl sequence through the policy the way the tracking
// cycle does, overwriting the snapshot after every evaluation.
func runCycles(p *AlertPolicy, pnls ...float64) [][]dto.AlertKind {
	snapshots := map[string]entity.AlertSnapshot{}
	var out [][]dto.AlertKind
	for _, pnl := range pnls {
		states := []dto.AlertState{{Symbol: "600519", Market: entity.MarketCNA, Price: 10, PnLPercent: pnl}}
		out = append(out, kinds(p.Evaluate(states, snapshots)))
		for _, row := range p.Snapshots("alice", states, time.Now()) {
			snapshots[row.Key()] = row
		}
	}
	return out
}

func TestAlertPolicy_ProfitCrossing(t *testing.T) {
	p := NewAlertPolicy(config.Alert{PriceChangePct: 3, ProfitAlertPct: 10, LossAlertPct: -7})

	got := runCycles(p, 8, 11, 12)
	require.Len(t, got, 3)
	assert.Equal(t, []dto.AlertKind{dto.AlertNewPosition}, got[0])
	assert.Equal(t, []dto.AlertKind{dto.AlertPriceChange, dto.AlertProfit}, got[1])
	assert.Empty(t, got[2])
}

func TestAlertPolicy_LossCrossing(t *testing.T) {
	p := NewAlertPolicy(defaultAlertConfig(t))

	got := runCycles(p, -5, -7, -8, -6.5, -7.5)
	assert.Equal(t, []dto.AlertKind{dto.AlertNewPosition}, got[0])
	assert.Equal(t, []dto.AlertKind{dto.AlertLoss}, got[1])
	assert.Empty(t, got[2])
	assert.Empty(t, got[3])
	// Back above the threshold and down through it again fires once more.
	assert.Equal(t, []dto.AlertKind{dto.AlertLoss}, got[4])
}

func TestAlertPolicy_PriceChange(t *testing.T) {
	p := NewAlertPolicy(defaultAlertConfig(t))
	snapshots := map[string]entity.AlertSnapshot{
		"US:AAPL": {Symbol: "AAPL", Market: entity.MarketUS, PnLPercent: 2},
		"US:MSFT": {Symbol: "MSFT", Market: entity.MarketUS, PnLPercent: 2},
	}
	states := []dto.AlertState{
		{Symbol: "AAPL", Market: entity.MarketUS, PnLPercent: -1.5},
		{Symbol: "MSFT", Market: entity.MarketUS, PnLPercent: 4.9},
	}

	events := p.Evaluate(states, snapshots)
	require.Len(t, events, 1)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.Equal(t, dto.AlertPriceChange, events[0].Kind)
	assert.InDelta(t, -3.5, events[0].Magnitude, 1e-9)
}

func TestAlertPolicy_Snapshots(t *testing.T) {
	p := NewAlertPolicy(defaultAlertConfig(t))
	at := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	mos := 0.2

	rows := p.Snapshots("alice", []dto.AlertState{{Symbol: "00700", Market: entity.MarketHK, Price: 320, PnLPercent: 4, MarginOfSafety: &mos}}, at)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.AlertSnapshot{
		UserID:         "alice",
		Symbol:         "00700",
		Market:         entity.MarketHK,
		Price:          320,
		PnLPercent:     4,
		MarginOfSafety: &mos,
		UpdatedAt:      at,
	}, rows[0])
}

func TestAlertPolicy_BreakEvenThresholds(t *testing.T) {
	p := NewAlertPolicy(config.Alert{PriceChangePct: 50, ProfitAlertPct: 0, LossAlertPct: 0})

	got := runCycles(p, -2, 1, -1)
	assert.Equal(t, []dto.AlertKind{dto.AlertNewPosition}, got[0])
	assert.Equal(t, []dto.AlertKind{dto.AlertProfit}, got[1])
	assert.Equal(t, []dto.AlertKind{dto.AlertLoss}, got[2])
}

func TestAlertPolicy_SameSymbolOnTwoMarkets(t *testing.T) {
	p := NewAlertPolicy(defaultAlertConfig(t))
	snapshots := map[string]entity.AlertSnapshot{
		"CN_A:510300": {Symbol: "510300", Market: entity.MarketCNA, PnLPercent: 9},
	}
	states := []dto.AlertState{
		{Symbol: "510300", Market: entity.MarketCNA, PnLPercent: 10.5},
		{Symbol: "510300", Market: entity.MarketFund, PnLPercent: 10.5},
	}

	events := p.Evaluate(states, snapshots)
	require.Len(t, events, 2)
	assert.Equal(t, entity.MarketCNA, events[0].Market)
	assert.Equal(t, dto.AlertProfit, events[0].Kind)
	assert.Equal(t, entity.MarketFund, events[1].Market)
	assert.Equal(t, dto.AlertNewPosition, events[1].Kind)

	rows := p.Snapshots("alice", states, time.Now())
	require.Len(t, rows, 2)
	assert.NotEqual(t, rows[0].Key(), rows[1].Key())
}
