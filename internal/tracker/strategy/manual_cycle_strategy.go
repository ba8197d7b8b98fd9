package strategy

import (
	"context"
	"time"

	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/pkg/logger"
)

// ManualCycleStrategy runs user-requested cycles. The force flag of the
// request decides whether closed markets are valued too.
type ManualCycleStrategy struct {
	logger   *logger.Logger
	tracking service.TrackingService
	timeout  time.Duration
}

func NewManualCycleStrategy(log *logger.Logger, tracking service.TrackingService, timeout time.Duration) CycleStrategy {
	return &ManualCycleStrategy{logger: log, tracking: tracking, timeout: timeout}
}

func (s *ManualCycleStrategy) GetTrigger() dto.Trigger {
	return dto.TriggerManual
}

func (s *ManualCycleStrategy) Execute(ctx context.Context, payload dto.CycleStreamPayload) (*dto.CycleReport, error) {
	req, err := toRequest(payload, dto.TriggerManual, payload.Force)
	if err != nil {
		s.logger.Error("Invalid manual cycle payload", logger.ErrorField(err), logger.StringField("user_id", payload.UserID))
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.tracking.RunCycle(ctx, req)
}
