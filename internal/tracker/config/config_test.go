package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Alert{PriceChangePct: 3, ProfitAlertPct: 10, LossAlertPct: -7}, cfg.Alert)
	assert.Equal(t, 0.10, cfg.Valuation.DiscountRate)
	assert.Equal(t, 5*time.Minute, cfg.Tracker.QuoteTTL)
	assert.Equal(t, "*/30 * * * 1-5", cfg.Tracker.Cron)
}

func TestLoad_ZeroThresholdsAreKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "alert:\n  price_change_pct: 5\n  profit_alert_pct: 0\n  loss_alert_pct: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Alert{PriceChangePct: 5, ProfitAlertPct: 0, LossAlertPct: 0}, cfg.Alert)
}
