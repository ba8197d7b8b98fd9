package strategy

import (
	"context"
	"time"

	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/pkg/logger"
)

// ScheduledCycleStrategy runs cron-triggered cycles. They never bypass the
// trading-hours gate.
type ScheduledCycleStrategy struct {
	logger   *logger.Logger
	tracking service.TrackingService
	timeout  time.Duration
}

func NewScheduledCycleStrategy(log *logger.Logger, tracking service.TrackingService, timeout time.Duration) CycleStrategy {
	return &ScheduledCycleStrategy{logger: log, tracking: tracking, timeout: timeout}
}

func (s *ScheduledCycleStrategy) GetTrigger() dto.Trigger {
	return dto.TriggerScheduled
}

func (s *ScheduledCycleStrategy) Execute(ctx context.Context, payload dto.CycleStreamPayload) (*dto.CycleReport, error) {
	req, err := toRequest(payload, dto.TriggerScheduled, false)
	if err != nil {
		s.logger.Error("Invalid scheduled cycle payload", logger.ErrorField(err), logger.StringField("user_id", payload.UserID))
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.tracking.RunCycle(ctx, req)
}
