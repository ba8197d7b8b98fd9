package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/strategy"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"
	"golang-stock-valuation/pkg/telegram"
	"golang-stock-valuation/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CycleExecutor reads cycle requests from the stream and runs them with the
// strategy matching their trigger.
type CycleExecutor interface {
	ProcessTask(ctx context.Context)
	ProcessRetries(ctx context.Context)
}

// CycleExecutorConfig configures stream retries.
type CycleExecutorConfig struct {
	MaxIdleDuration time.Duration
	MaxRetry        int
}

type cycleExecutor struct {
	cfg         CycleExecutorConfig
	redisClient *redis.Client
	strategies  map[dto.Trigger]strategy.CycleStrategy
	telegramBot telegram.Notifier
	log         *logger.Logger
}

// NewCycleExecutor creates a new CycleExecutor. telegramBot may be nil.
func NewCycleExecutor(
	cfg CycleExecutorConfig,
	redisClient *redis.Client,
	strategies []strategy.CycleStrategy,
	telegramBot telegram.Notifier,
	log *logger.Logger,
) CycleExecutor {
	strategyMap := make(map[dto.Trigger]strategy.CycleStrategy)
	for _, s := range strategies {
		strategyMap[s.GetTrigger()] = s
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	return &cycleExecutor{
		cfg:         cfg,
		redisClient: redisClient,
		strategies:  strategyMap,
		telegramBot: telegramBot,
		log:         log,
	}
}

// ProcessTask dequeues and executes a single cycle request.
func (s *cycleExecutor) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamTrackingCycle, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return
		}
		s.log.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		s.log.Debug("No messages found", logger.StringField("stream", common.RedisStreamTrackingCycle))
		return
	}

	message := streams[0].Messages[0]
	payload, err := decodePayload(message)
	if err != nil {
		s.log.Error("Dropping malformed cycle request", logger.ErrorField(err), logger.StringField("message_id", message.ID))
		_ = s.AckNDel(ctx, common.RedisStreamTrackingCycle, message.ID)
		return
	}

	loggerFields := []zap.Field{
		logger.StringField("cycle_id", payload.CycleID),
		logger.StringField("user_id", payload.UserID),
		logger.StringField("trigger", string(payload.Trigger)),
		logger.StringField("message_id", message.ID),
	}
	s.log.Debug("Processing cycle request", loggerFields...)

	if err := s.Execute(ctx, payload); err != nil {
		loggerFields = append(loggerFields, logger.ErrorField(err))
		s.log.Error("Failed to execute cycle request", loggerFields...)
		return
	}

	if err := s.AckNDel(ctx, common.RedisStreamTrackingCycle, message.ID); err != nil {
		return
	}
	s.log.Debug("Cycle request processed successfully", loggerFields...)
}

// Execute runs the strategy registered for the payload's trigger.
func (s *cycleExecutor) Execute(ctx context.Context, payload dto.CycleStreamPayload) error {
	trigger := payload.Trigger
	if trigger == "" {
		trigger = dto.TriggerScheduled
	}
	strategy, ok := s.strategies[trigger]
	if !ok {
		return fmt.Errorf("no cycle strategy found for trigger: %s", trigger)
	}

	report, err := strategy.Execute(ctx, payload)
	if err != nil {
		return err
	}
	s.log.Info("Cycle request completed",
		logger.StringField("cycle_id", report.CycleID.String()),
		logger.StringField("user_id", report.UserID),
		logger.BoolField("skipped", report.Skipped),
		logger.IntField("holdings", len(report.Holdings)),
		logger.IntField("events", len(report.Events)),
	)
	return nil
}

// ProcessRetries claims one request left pending by a failed run and runs it
// again. After the maximum number of attempts the request is dropped and an
// error alert is sent.
func (s *cycleExecutor) ProcessRetries(ctx context.Context) {
	msgs, _, err := s.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamTrackingCycle,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.cfg.MaxIdleDuration,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to claim cycle request on retry", logger.ErrorField(err))
		return
	}

	if len(msgs) == 0 {
		s.log.Debug("Retry No pending messages found", logger.StringField("stream", common.RedisStreamTrackingCycle))
		return
	}

	pendingInfo, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamTrackingCycle,
		Group:  common.RedisStreamGroup,
		Start:  msgs[0].ID,
		End:    msgs[0].ID,
		Count:  1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to get pending info", logger.ErrorField(err))
		return
	}
	if len(pendingInfo) == 0 {
		s.log.Warn("pending msg not found, but exist on xautoclaim", logger.StringField("message_id", msgs[0].ID))
		return
	}

	msg := msgs[0]
	payload, err := decodePayload(msg)
	if err != nil {
		s.log.Error("Dropping malformed cycle request", logger.ErrorField(err), logger.StringField("message_id", msg.ID))
		_ = s.AckNDel(ctx, common.RedisStreamTrackingCycle, msg.ID)
		return
	}

	if err := s.Execute(ctx, payload); err != nil {
		s.log.Error("Failed to retry cycle request", logger.ErrorField(err), logger.StringField("message_id", msg.ID), logger.StringField("user_id", payload.UserID))

		if pendingInfo[0].RetryCount+1 >= int64(s.cfg.MaxRetry) {
			s.log.Error("pending msg retry count exceeded",
				logger.StringField("message_id", msg.ID),
				logger.StringField("user_id", payload.UserID),
				logger.IntField("retry_count", int(pendingInfo[0].RetryCount+1)),
				logger.IntField("max_retry", s.cfg.MaxRetry),
			)
			s.alert(payload, err)
			_ = s.AckNDel(ctx, common.RedisStreamTrackingCycle, msg.ID)
		}
		return
	}

	if err := s.AckNDel(ctx, common.RedisStreamTrackingCycle, msg.ID); err != nil {
		return
	}
	s.log.Info("Retry cycle request processed successfully", logger.StringField("user_id", payload.UserID), logger.StringField("cycle_id", payload.CycleID))
}

func (s *cycleExecutor) alert(payload dto.CycleStreamPayload, cause error) {
	if s.telegramBot == nil {
		return
	}
	errType := fmt.Sprintf("Retry count exceeded for event %s", common.RedisStreamTrackingCycle)
	data := fmt.Sprintf("%s | %s | %s", payload.UserID, payload.Trigger, payload.CycleID)
	if err := s.telegramBot.SendMessage(telegram.FormatErrorAlertMessage(utils.TimeNowCST(), errType, cause.Error(), data)); err != nil {
		s.log.Error("Failed to send telegram message retry exceeded", logger.ErrorField(err), logger.StringField("user_id", payload.UserID))
	}
}

// AckNDel acknowledges and deletes a processed message.
func (s *cycleExecutor) AckNDel(ctx context.Context, streamName string, messageID string) error {
	if err := s.redisClient.XAck(ctx, streamName, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.log.Error("Failed to acknowledge cycle request", logger.StringField("stream_name", streamName), logger.StringField("message_id", messageID), logger.ErrorField(err))
		return err
	}
	if err := s.redisClient.XDel(ctx, streamName, messageID).Err(); err != nil {
		s.log.Error("Failed to delete cycle request", logger.StringField("stream_name", streamName), logger.StringField("message_id", messageID), logger.ErrorField(err))
		return err
	}
	return nil
}

func decodePayload(message redis.XMessage) (dto.CycleStreamPayload, error) {
	var payload dto.CycleStreamPayload
	raw, ok := message.Values["payload"].(string)
	if !ok {
		return payload, fmt.Errorf("field 'payload' not found or not a string in stream message")
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal cycle payload: %w", err)
	}
	return payload, nil
}
