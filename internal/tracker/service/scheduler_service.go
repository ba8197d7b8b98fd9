package service

import (
	"context"
	"fmt"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SchedulerService publishes scheduled tracking cycles for the configured users.
type SchedulerService interface {
	Start(ctx context.Context)
	ProcessDue(ctx context.Context, now time.Time) int
	Enqueue(ctx context.Context, userID string, force bool, markets []entity.Market, trigger dto.Trigger) (*dto.CycleStreamPayload, error)
}

// SchedulerConfig configures the cycle scheduler.
type SchedulerConfig struct {
	Cron            string
	Users           []string
	Location        *time.Location
	PollingInterval time.Duration
	Now             func() time.Time
}

type schedulerService struct {
	cfg      SchedulerConfig
	stream   repository.CycleStreamRepository
	schedule cron.Schedule
	next     time.Time
	logger   *logger.Logger
}

// NewSchedulerService creates a new scheduler service.
func NewSchedulerService(cfg SchedulerConfig, stream repository.CycleStreamRepository, log *logger.Logger) (SchedulerService, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", cfg.Cron, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &schedulerService{
		cfg:      cfg,
		stream:   stream,
		schedule: schedule,
		next:     schedule.Next(cfg.Now().In(cfg.Location)),
		logger:   log,
	}, nil
}

// Start begins the periodic scheduling loop.
func (s *schedulerService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollingInterval)
	defer ticker.Stop()

	s.logger.Info("Scheduler service started", logger.StringField("cron", s.cfg.Cron), logger.StringField("next_run", s.next.String()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler service stopping")
			return
		case <-ticker.C:
			s.ProcessDue(ctx, s.cfg.Now())
		}
	}
}

// ProcessDue publishes one scheduled cycle per user when the next cron time
// has passed and returns the number of requests published. Missed ticks are
// collapsed into a single run.
func (s *schedulerService) ProcessDue(ctx context.Context, now time.Time) int {
	now = now.In(s.cfg.Location)
	if now.Before(s.next) {
		return 0
	}
	s.next = s.schedule.Next(now)

	published := 0
	for _, userID := range s.cfg.Users {
		if _, err := s.Enqueue(ctx, userID, false, nil, dto.TriggerScheduled); err != nil {
			continue
		}
		published++
	}
	s.logger.Info("Scheduled cycles published", logger.IntField("published", published), logger.StringField("next_run", s.next.String()))
	return published
}

// Enqueue publishes a cycle request for one user.
func (s *schedulerService) Enqueue(ctx context.Context, userID string, force bool, markets []entity.Market, trigger dto.Trigger) (*dto.CycleStreamPayload, error) {
	payload := &dto.CycleStreamPayload{
		CycleID:     uuid.NewString(),
		UserID:      userID,
		Force:       force,
		Trigger:     trigger,
		RequestedAt: s.cfg.Now().Unix(),
	}
	for _, m := range markets {
		payload.Markets = append(payload.Markets, string(m))
	}

	if _, err := s.stream.Publish(ctx, *payload); err != nil {
		s.logger.Error("Failed to enqueue cycle", logger.ErrorField(err), logger.StringField("user_id", userID))
		return nil, err
	}
	s.logger.Info("Cycle enqueued", logger.StringField("user_id", userID), logger.StringField("cycle_id", payload.CycleID), logger.StringField("trigger", string(trigger)))
	return payload, nil
}
