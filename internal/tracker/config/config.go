package config

import (
	"time"

	"golang-stock-valuation/pkg/config"
)

// Tracker holds the tracking cycle configuration.
type Tracker struct {
	Users                []string      `mapstructure:"users"`
	Cron                 string        `mapstructure:"cron"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	QuoteTTL             time.Duration `mapstructure:"quote_ttl"`
	FinancialsTTL        time.Duration `mapstructure:"financials_ttl"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
	CycleTimeout         time.Duration `mapstructure:"cycle_timeout"`

	RedisStreamCycleTimeout         time.Duration `mapstructure:"redis_stream_cycle_timeout"`
	RedisStreamCycleRetryInterval   time.Duration `mapstructure:"redis_stream_cycle_retry_interval"`
	RedisStreamCycleMaxIdleDuration time.Duration `mapstructure:"redis_stream_cycle_max_idle_duration"`
	RedisStreamCycleMaxRetry        int           `mapstructure:"redis_stream_cycle_max_retry"`
}

// Valuation holds the composite valuation model parameters.
type Valuation struct {
	DiscountRate         float64 `mapstructure:"discount_rate"`
	TerminalGrowth       float64 `mapstructure:"terminal_growth"`
	GrowthCap            float64 `mapstructure:"growth_cap"`
	ProjectionYears      int     `mapstructure:"projection_years"`
	DegenerateMultiplier float64 `mapstructure:"degenerate_multiplier"`
	FloorRatio           float64 `mapstructure:"floor_ratio"`
}

// Change holds the change analyzer thresholds.
type Change struct {
	SignificanceThreshold float64 `mapstructure:"significance_threshold"`
	FundamentalThreshold  float64 `mapstructure:"fundamental_threshold"`
	PriceDrivenRatio      float64 `mapstructure:"price_driven_ratio"`
	MOSAdjustThreshold    float64 `mapstructure:"mos_adjust_threshold"`
	LargePriceMove        float64 `mapstructure:"large_price_move"`
	LargeMOSMove          float64 `mapstructure:"large_mos_move"`
}

// Alert holds the alert policy thresholds, in percent.
type Alert struct {
	PriceChangePct float64 `mapstructure:"price_change_pct"`
	ProfitAlertPct float64 `mapstructure:"profit_alert_pct"`
	LossAlertPct   float64 `mapstructure:"loss_alert_pct"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool             `mapstructure:"enabled"`
	BotToken string           `mapstructure:"bot_token"`
	ChatID   int64            `mapstructure:"chat_id"`
	Users    map[string]int64 `mapstructure:"users"`
}

// Tencent holds the configuration for the Tencent quote API.
type Tencent struct {
	BaseURL             string        `mapstructure:"base_url"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	Enabled             bool   `mapstructure:"enabled"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Config holds the full configuration for the tracker service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Tracker   Tracker         `mapstructure:"tracker"`
	Valuation Valuation       `mapstructure:"valuation"`
	Change    Change          `mapstructure:"change"`
	Alert     Alert           `mapstructure:"alert"`
	Telegram  Telegram        `mapstructure:"telegram"`
	Tencent   Tencent         `mapstructure:"tencent"`
	Gemini    Gemini          `mapstructure:"gemini"`
}

// Defaults returns the values used when neither the file nor the environment sets a key.
// The thresholds come from the legacy tracker and have not been calibrated.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"app.name":     "stock-valuation-tracker",
		"app.timezone": "Asia/Shanghai",

		"logger.level":    "info",
		"logger.encoding": "json",

		"database.port":     5432,
		"database.ssl_mode": "disable",

		"redis.port":           6379,
		"redis.pool_size":      10,
		"redis.stream_max_len": 1000,

		"api.port": 8080,

		"tracker.cron":                                 "*/30 * * * 1-5",
		"tracker.fetch_timeout":                        "10s",
		"tracker.quote_ttl":                            "5m",
		"tracker.financials_ttl":                       "24h",
		"tracker.max_concurrent_fetches":               5,
		"tracker.lock_ttl":                             "5m",
		"tracker.cycle_timeout":                        "3m",
		"tracker.redis_stream_cycle_timeout":           "5m",
		"tracker.redis_stream_cycle_retry_interval":    "1m",
		"tracker.redis_stream_cycle_max_idle_duration": "10m",
		"tracker.redis_stream_cycle_max_retry":         3,

		"valuation.discount_rate":         0.10,
		"valuation.terminal_growth":       0.03,
		"valuation.growth_cap":            0.25,
		"valuation.projection_years":      5,
		"valuation.degenerate_multiplier": 1.2,
		"valuation.floor_ratio":           0.5,

		"change.significance_threshold": 0.05,
		"change.fundamental_threshold":  0.05,
		"change.price_driven_ratio":     2.0,
		"change.mos_adjust_threshold":   0.15,
		"change.large_price_move":       0.10,
		"change.large_mos_move":         0.10,

		"alert.price_change_pct": 3.0,
		"alert.profit_alert_pct": 10.0,
		"alert.loss_alert_pct":   -7.0,

		"tencent.base_url":               "http://qt.gtimg.cn",
		"tencent.max_request_per_minute": 120,
		"tencent.timeout":                "10s",

		"gemini.model":                  "gemini-2.0-flash",
		"gemini.max_request_per_minute": 10,
	}
}

// Load loads the tracker configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg, Defaults()); err != nil {
		return nil, err
	}
	return &cfg, nil
}
