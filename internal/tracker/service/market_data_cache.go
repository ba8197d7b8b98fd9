package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// redisEntryTTL bounds how long a shared entry survives; long enough to cover a
// holiday weekend of closed markets.
const redisEntryTTL = 7 * 24 * time.Hour

// MarketDataCache shields the valuation from provider latency and failures.
// Lookups never return an error: a missing or failed fetch is reported as absent.
type MarketDataCache interface {
	GetQuote(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, bool)
	// GetQuoteForced behaves like GetQuote but fetches once when the market is
	// closed and nothing is cached.
	GetQuoteForced(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, bool)
	GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, bool)
}

// MarketDataCacheConfig holds TTLs and the clock used by the cache.
type MarketDataCacheConfig struct {
	QuoteTTL      time.Duration
	FinancialsTTL time.Duration
	FetchTimeout  time.Duration
	Now           func() time.Time
}

type marketDataCache struct {
	cfg           MarketDataCacheConfig
	quotes        repository.QuoteRepository
	financials    repository.FinancialsRepository
	hours         *MarketHours
	inmemoryCache *cache.Cache
	redisClient   *redis.Client
	logger        *logger.Logger
}

// NewMarketDataCache creates the cache. redisClient may be nil to run with the
// in-process tier only.
func NewMarketDataCache(
	cfg MarketDataCacheConfig,
	quotes repository.QuoteRepository,
	financials repository.FinancialsRepository,
	hours *MarketHours,
	redisClient *redis.Client,
	log *logger.Logger,
) MarketDataCache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 5 * time.Minute
	}
	if cfg.FinancialsTTL <= 0 {
		cfg.FinancialsTTL = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &marketDataCache{
		cfg:           cfg,
		quotes:        quotes,
		financials:    financials,
		hours:         hours,
		inmemoryCache: cache.New(cache.NoExpiration, 30*time.Minute),
		redisClient:   redisClient,
		logger:        log,
	}
}

func (c *marketDataCache) GetQuote(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, bool) {
	return c.getQuote(ctx, symbol, market, false)
}

func (c *marketDataCache) GetQuoteForced(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, bool) {
	return c.getQuote(ctx, symbol, market, true)
}

func (c *marketDataCache) getQuote(ctx context.Context, symbol string, market entity.Market, force bool) (*dto.Quote, bool) {
	key := fmt.Sprintf(common.RedisKeyQuote, market, symbol)
	now := c.cfg.Now()

	var cached *dto.Quote
	var quote dto.Quote
	if c.load(ctx, key, &quote) {
		cached = &quote
	}

	sessionStart, open := c.hours.SessionStart(market, now)
	if !open {
		if cached != nil {
			return cached, true
		}
		if !force {
			c.logger.DebugContext(ctx, "Market closed and no cached quote", logger.StringField("symbol", symbol), logger.StringField("market", string(market)))
			return nil, false
		}
	} else if cached != nil && !cached.FetchedAt.Before(sessionStart) && now.Sub(cached.FetchedAt) < c.cfg.QuoteTTL {
		return cached, true
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	fresh, err := c.quotes.GetQuote(fetchCtx, symbol, market)
	if err != nil || fresh == nil {
		c.logger.WarnContext(ctx, "Failed to fetch quote", logger.ErrorField(err), logger.StringField("symbol", symbol), logger.StringField("market", string(market)))
		if cached != nil {
			stale := *cached
			stale.Stale = true
			return &stale, true
		}
		return nil, false
	}
	if fresh.FetchedAt.IsZero() {
		fresh.FetchedAt = now
	}
	c.store(ctx, key, fresh)
	return fresh, true
}

func (c *marketDataCache) GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, bool) {
	key := fmt.Sprintf(common.RedisKeyFinancials, market, symbol)
	now := c.cfg.Now()

	var cached *dto.Financials
	var fin dto.Financials
	if c.load(ctx, key, &fin) {
		cached = &fin
		if now.Sub(cached.FetchedAt) < c.cfg.FinancialsTTL {
			return cached, true
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	fresh, err := c.financials.GetFinancials(fetchCtx, symbol, market)
	if err != nil || fresh == nil {
		c.logger.WarnContext(ctx, "Failed to fetch financials", logger.ErrorField(err), logger.StringField("symbol", symbol), logger.StringField("market", string(market)))
		if cached != nil {
			return cached, true
		}
		return nil, false
	}
	if fresh.FetchedAt.IsZero() {
		fresh.FetchedAt = now
	}
	c.store(ctx, key, fresh)
	return fresh, true
}

// load reads key from the in-process tier, then from redis.
func (c *marketDataCache) load(ctx context.Context, key string, dst interface{}) bool {
	if raw, ok := c.inmemoryCache.Get(key); ok {
		if err := json.Unmarshal(raw.([]byte), dst); err == nil {
			return true
		}
	}
	if c.redisClient == nil {
		return false
	}

	raw, err := c.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Failed to read market data from redis", logger.ErrorField(err), logger.StringField("key", key))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "Failed to decode cached market data", logger.ErrorField(err), logger.StringField("key", key))
		return false
	}
	c.inmemoryCache.Set(key, raw, cache.NoExpiration)
	return true
}

func (c *marketDataCache) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to encode market data", logger.ErrorField(err), logger.StringField("key", key))
		return
	}
	c.inmemoryCache.Set(key, raw, cache.NoExpiration)
	if c.redisClient == nil {
		return
	}
	if err := c.redisClient.Set(ctx, key, raw, redisEntryTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "Failed to write market data to redis", logger.ErrorField(err), logger.StringField("key", key))
	}
}
