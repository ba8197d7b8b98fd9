package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/strategy"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	trigger dto.Trigger
	err     error
	calls   []dto.CycleStreamPayload
}

func (f *fakeStrategy) Execute(ctx context.Context, payload dto.CycleStreamPayload) (*dto.CycleReport, error) {
	f.calls = append(f.calls, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CycleReport{CycleID: uuid.MustParse(payload.CycleID), UserID: payload.UserID}, nil
}

func (f *fakeStrategy) GetTrigger() dto.Trigger {
	return f.trigger
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) SendMessage(text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) SendMessageTo(chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func setupStream(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.XGroupCreateMkStream(context.Background(), common.RedisStreamTrackingCycle, common.RedisStreamGroup, "0").Err())
	return rdb
}

func publish(t *testing.T, rdb *redis.Client, payload dto.CycleStreamPayload) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: common.RedisStreamTrackingCycle,
		Values: map[string]interface{}{"payload": body},
	}).Err())
}

func pending(t *testing.T, rdb *redis.Client) int64 {
	t.Helper()
	info, err := rdb.XPending(context.Background(), common.RedisStreamTrackingCycle, common.RedisStreamGroup).Result()
	require.NoError(t, err)
	return info.Count
}

func TestCycleExecutor_ProcessTask(t *testing.T) {
	rdb := setupStream(t)
	scheduled := &fakeStrategy{trigger: dto.TriggerScheduled}
	manual := &fakeStrategy{trigger: dto.TriggerManual}
	exec := NewCycleExecutor(CycleExecutorConfig{}, rdb, []strategy.CycleStrategy{scheduled, manual}, nil, logger.NewNop())
	ctx := context.Background()

	publish(t, rdb, dto.CycleStreamPayload{CycleID: uuid.NewString(), UserID: "alice", Trigger: dto.TriggerManual, Force: true})
	exec.ProcessTask(ctx)

	require.Len(t, manual.calls, 1)
	assert.Empty(t, scheduled.calls)
	assert.True(t, manual.calls[0].Force)
	assert.Equal(t, int64(0), pending(t, rdb))

	n, err := rdb.XLen(ctx, common.RedisStreamTrackingCycle).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCycleExecutor_MalformedPayloadIsDropped(t *testing.T) {
	rdb := setupStream(t)
	scheduled := &fakeStrategy{trigger: dto.TriggerScheduled}
	exec := NewCycleExecutor(CycleExecutorConfig{}, rdb, []strategy.CycleStrategy{scheduled}, nil, logger.NewNop())

	require.NoError(t, rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: common.RedisStreamTrackingCycle,
		Values: map[string]interface{}{"payload": "{not json"},
	}).Err())
	exec.ProcessTask(context.Background())

	assert.Empty(t, scheduled.calls)
	assert.Equal(t, int64(0), pending(t, rdb))
}

func TestCycleExecutor_FailureIsRetriedThenDropped(t *testing.T) {
	rdb := setupStream(t)
	scheduled := &fakeStrategy{trigger: dto.TriggerScheduled, err: errors.New("ledger unreachable")}
	bot := &fakeNotifier{}
	exec := NewCycleExecutor(CycleExecutorConfig{MaxRetry: 1}, rdb, []strategy.CycleStrategy{scheduled}, bot, logger.NewNop())
	ctx := context.Background()

	publish(t, rdb, dto.CycleStreamPayload{CycleID: uuid.NewString(), UserID: "alice", Trigger: dto.TriggerScheduled})
	exec.ProcessTask(ctx)
	require.Len(t, scheduled.calls, 1)
	assert.Equal(t, int64(1), pending(t, rdb))

	exec.ProcessRetries(ctx)
	assert.Len(t, scheduled.calls, 2)
	assert.Equal(t, int64(0), pending(t, rdb))
	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0], "ledger unreachable")
}

func TestCycleExecutor_RetrySucceeds(t *testing.T) {
	rdb := setupStream(t)
	scheduled := &fakeStrategy{trigger: dto.TriggerScheduled, err: errors.New("temporary")}
	exec := NewCycleExecutor(CycleExecutorConfig{MaxRetry: 5}, rdb, []strategy.CycleStrategy{scheduled}, nil, logger.NewNop())
	ctx := context.Background()

	publish(t, rdb, dto.CycleStreamPayload{CycleID: uuid.NewString(), UserID: "alice"})
	exec.ProcessTask(ctx)
	assert.Equal(t, int64(1), pending(t, rdb))

	scheduled.err = nil
	exec.ProcessRetries(ctx)
	assert.Equal(t, int64(0), pending(t, rdb))
}
