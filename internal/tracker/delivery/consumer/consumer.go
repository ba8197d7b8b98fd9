package consumer

import (
	"context"
	"sync"
	"time"

	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"
	"golang-stock-valuation/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer manages the consumption of cycle requests from a Redis stream.
type RedisConsumer struct {
	cfg           *config.Config
	redisClient   *redis.Client
	cycleExecutor CycleExecutor
	logger        *logger.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(cfg *config.Config, redisClient *redis.Client, cycleExecutor CycleExecutor, log *logger.Logger) *RedisConsumer {
	return &RedisConsumer{
		cfg:           cfg,
		redisClient:   redisClient,
		cycleExecutor: cycleExecutor,
		logger:        log,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the consumer's task processing loop.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.cycleExecutor.ProcessTask, common.RedisStreamTrackingCycle, c.cfg.Tracker.RedisStreamCycleTimeout)
	c.RegisterTickerHandler(ctx, c.cycleExecutor.ProcessRetries, c.cfg.Tracker.RedisStreamCycleRetryInterval, c.cfg.Tracker.RedisStreamCycleTimeout, common.RedisStreamTrackingCycle+"-retry")
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
