package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/common"

	"github.com/redis/go-redis/v9"
)

// CycleStreamRepository enqueues tracking cycle requests on the redis stream
// read by the cycle consumer.
type CycleStreamRepository interface {
	Publish(ctx context.Context, payload dto.CycleStreamPayload) (string, error)
}

type cycleStreamRepository struct {
	redisClient *redis.Client
	maxLen      int64
}

func NewCycleStreamRepository(redisClient *redis.Client, maxLen int64) CycleStreamRepository {
	return &cycleStreamRepository{
		redisClient: redisClient,
		maxLen:      maxLen,
	}
}

// Publish adds the payload to the stream and returns the message id.
func (r *cycleStreamRepository) Publish(ctx context.Context, payload dto.CycleStreamPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cycle payload: %w", err)
	}

	id, err := r.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamTrackingCycle,
		Values: map[string]interface{}{"payload": body},
		MaxLen: r.maxLen,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue cycle request: %w", err)
	}
	return id, nil
}
