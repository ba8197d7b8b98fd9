package strategy

import (
	"context"
	"testing"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTracker struct {
	got         []dto.RunCycleRequest
	hadDeadline bool
}

func (r *recordingTracker) RunCycle(ctx context.Context, req dto.RunCycleRequest) (*dto.CycleReport, error) {
	r.got = append(r.got, req)
	_, r.hadDeadline = ctx.Deadline()
	return &dto.CycleReport{CycleID: req.CycleID, UserID: req.UserID, Trigger: req.Trigger, Force: req.Force}, nil
}

func TestScheduledCycleStrategy_NeverForces(t *testing.T) {
	tracker := &recordingTracker{}
	s := NewScheduledCycleStrategy(logger.NewNop(), tracker, time.Minute)
	id := uuid.New()

	report, err := s.Execute(context.Background(), dto.CycleStreamPayload{CycleID: id.String(), UserID: "alice", Force: true, Markets: []string{"HK"}})
	require.NoError(t, err)
	assert.Equal(t, id, report.CycleID)
	require.Len(t, tracker.got, 1)
	assert.False(t, tracker.got[0].Force)
	assert.Equal(t, dto.TriggerScheduled, tracker.got[0].Trigger)
	assert.Equal(t, []entity.Market{entity.MarketHK}, tracker.got[0].Markets)
	assert.True(t, tracker.hadDeadline)
	assert.Equal(t, dto.TriggerScheduled, s.GetTrigger())
}

func TestManualCycleStrategy(t *testing.T) {
	tracker := &recordingTracker{}
	s := NewManualCycleStrategy(logger.NewNop(), tracker, 0)

	_, err := s.Execute(context.Background(), dto.CycleStreamPayload{UserID: "alice", Force: true})
	require.NoError(t, err)
	assert.True(t, tracker.got[0].Force)
	assert.Equal(t, dto.TriggerManual, tracker.got[0].Trigger)
	assert.False(t, tracker.hadDeadline)

	tests := []struct {
		name    string
		payload dto.CycleStreamPayload
	}{
		{"missing user", dto.CycleStreamPayload{}},
		{"bad cycle id", dto.CycleStreamPayload{UserID: "alice", CycleID: "nope"}},
		{"unknown market", dto.CycleStreamPayload{UserID: "alice", Markets: []string{"LSE"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Execute(context.Background(), tt.payload)
			assert.Error(t, err)
		})
	}
	assert.Len(t, tracker.got, 1)
}
