package main

import (
	"context"
	"fmt"
	"time"

	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"
	"golang-stock-valuation/pkg/postgres"
	"golang-stock-valuation/pkg/redis"
	"golang-stock-valuation/pkg/telegram"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *postgres.DB
	redis    *redis.Client
	location *time.Location
	notifier telegram.Notifier

	transactionRepo repository.TransactionRepository
	valuationRepo   repository.ValuationRepository
	snapshotRepo    repository.AlertSnapshotRepository

	ledger   service.LedgerService
	tracking service.TrackingService
}

// newApp loads the configuration and opens the database. Redis is optional
// unless requireRedis is set.
func newApp(ctx context.Context, configPath string, requireRedis bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.App.Timezone, err)
	}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		cfg:             cfg,
		logger:          appLogger,
		db:              db,
		location:        location,
		transactionRepo: repository.NewTransactionRepository(db.DB),
		valuationRepo:   repository.NewValuationRepository(db.DB),
		snapshotRepo:    repository.NewAlertSnapshotRepository(db.DB),
	}
	a.ledger = service.NewLedgerService(a.transactionRepo, appLogger)

	if cfg.Redis.Enabled || requireRedis {
		redisClient, err := redis.NewClient(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			if requireRedis {
				a.Close()
				return nil, fmt.Errorf("failed to initialize redis: %w", err)
			}
			appLogger.Warn("Redis unavailable, running with in-process cache and locks", logger.ErrorField(err))
		} else {
			a.redis = redisClient
		}
	}

	if cfg.Telegram.Enabled {
		notifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Error("Failed to initialize Telegram notifier, reports will only be logged", logger.ErrorField(err))
		} else {
			a.notifier = notifier
		}
	}

	if err := a.buildTracking(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildTracking(ctx context.Context) error {
	tencentRepo := repository.NewTencentRepository(a.cfg, a.logger)

	var estimator repository.FinancialsEstimator
	if a.cfg.Gemini.Enabled {
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  a.cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.logger.Error("Failed to initialize Gemini client, financial estimates disabled", logger.ErrorField(err))
		} else {
			estimator = repository.NewGeminiEstimatorRepository(a.cfg, a.logger, repository.NewGeminiGenerator(genAiClient, a.cfg.Gemini.Model))
		}
	}
	financialsRepo := repository.NewCompositeFinancialsRepository(tencentRepo, estimator, a.logger)

	hours, err := service.NewMarketHours()
	if err != nil {
		return fmt.Errorf("failed to load market calendar: %w", err)
	}

	var (
		userLocker   service.Locker
		symbolLocker service.Locker
	)
	if a.redis != nil {
		userLocker = service.NewRedisLocker(a.redis.Client, common.RedisKeyUserLock, a.cfg.Tracker.LockTTL)
		symbolLocker = service.NewRedisLocker(a.redis.Client, common.RedisKeySymbolLock, a.cfg.Tracker.LockTTL)
	}

	marketData := service.NewMarketDataCache(service.MarketDataCacheConfig{
		QuoteTTL:      a.cfg.Tracker.QuoteTTL,
		FinancialsTTL: a.cfg.Tracker.FinancialsTTL,
		FetchTimeout:  a.cfg.Tracker.FetchTimeout,
	}, tencentRepo, financialsRepo, hours, a.redisClient(), a.logger)

	a.tracking = service.NewTrackingService(service.TrackingServiceConfig{
		MaxConcurrentFetches: a.cfg.Tracker.MaxConcurrentFetches,
	}, service.TrackingDeps{
		Ledger:        a.ledger,
		MarketData:    marketData,
		Hours:         hours,
		Engine:        service.NewValuationEngine(a.cfg.Valuation),
		Analyzer:      service.NewChangeAnalyzer(a.cfg.Change),
		Policy:        service.NewAlertPolicy(a.cfg.Alert),
		ValuationRepo: a.valuationRepo,
		SnapshotRepo:  a.snapshotRepo,
		UserLocker:    userLocker,
		SymbolLocker:  symbolLocker,
		Sink:          telegram.NewSink(a.notifier, a.cfg.Telegram.Users, a.logger),
	}, a.logger)
	return nil
}

func (a *app) redisClient() *goredis.Client {
	if a.redis == nil {
		return nil
	}
	return a.redis.Client
}

// Close releases the database and redis connections and flushes the logger.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
