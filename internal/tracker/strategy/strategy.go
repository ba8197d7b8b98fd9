package strategy

import (
	"context"
	"fmt"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"

	"github.com/google/uuid"
)

// CycleStrategy runs one kind of tracking cycle from a stream payload.
type CycleStrategy interface {
	Execute(ctx context.Context, payload dto.CycleStreamPayload) (*dto.CycleReport, error)
	GetTrigger() dto.Trigger
}

// toRequest converts a stream payload into a cycle request.
func toRequest(payload dto.CycleStreamPayload, trigger dto.Trigger, force bool) (dto.RunCycleRequest, error) {
	req := dto.RunCycleRequest{
		UserID:  payload.UserID,
		Force:   force,
		Trigger: trigger,
	}
	if req.UserID == "" {
		return req, fmt.Errorf("user_id is required")
	}
	if payload.CycleID != "" {
		id, err := uuid.Parse(payload.CycleID)
		if err != nil {
			return req, fmt.Errorf("invalid cycle_id %q: %w", payload.CycleID, err)
		}
		req.CycleID = id
	}
	for _, m := range payload.Markets {
		market := entity.Market(m)
		if !market.IsValid() {
			return req, fmt.Errorf("unknown market %q", m)
		}
		req.Markets = append(req.Markets, market)
	}
	return req, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
