package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

type mockSweeps struct {
	mock.Mock
	subscription.Service
}

func (m *mockSweeps) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSweeps) SweepStaleAttempts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSweeps) RemindExpiring(ctx context.Context, within time.Duration) (int, error) {
	args := m.Called(ctx, within)
	return args.Int(0), args.Error(1)
}

type stubCleaner struct {
	calls int
}

func (s *stubCleaner) CleanExpired(context.Context) (int64, error) {
	s.calls++
	return 4, nil
}

func TestRunOnce_RunsEveryJob(t *testing.T) {
	subs := &mockSweeps{}
	subs.On("SweepStaleAttempts", mock.Anything).Return(2, nil).Once()
	subs.On("SweepExpired", mock.Anything).Return(1, nil).Once()
	subs.On("RemindExpiring", mock.Anything, 5*24*time.Hour).Return(3, nil).Once()
	cleaner := &stubCleaner{}

	w := NewSubscriptionWorker(subs, cleaner, Schedules{}, 5)
	require.NoError(t, w.RunOnce(context.Background()))

	subs.AssertExpectations(t)
	assert.Equal(t, 1, cleaner.calls)
}

func TestRunOnce_StopsOnError(t *testing.T) {
	subs := &mockSweeps{}
	subs.On("SweepStaleAttempts", mock.Anything).Return(0, errors.New("db down"))

	w := NewSubscriptionWorker(subs, nil, Schedules{}, 0)
	err := w.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep_stale_attempts")
	subs.AssertNotCalled(t, "SweepExpired", mock.Anything)
}

func TestRunOnce_DefaultReminderWindow(t *testing.T) {
	subs := &mockSweeps{}
	subs.On("SweepStaleAttempts", mock.Anything).Return(0, nil)
	subs.On("SweepExpired", mock.Anything).Return(0, nil)
	subs.On("RemindExpiring", mock.Anything, subscription.DefaultReminderWindow).Return(0, nil)

	w := NewSubscriptionWorker(subs, nil, Schedules{}, 0)
	require.NoError(t, w.RunOnce(context.Background()))
	subs.AssertExpectations(t)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	subs := &mockSweeps{}
	w := NewSubscriptionWorker(subs, nil, Schedules{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.RunOnce(ctx), context.Canceled)
	subs.AssertNotCalled(t, "SweepStaleAttempts", mock.Anything)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	w := NewSubscriptionWorker(&mockSweeps{}, nil, Schedules{Expiry: "every now and then"}, 0)
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep_expired")
}

func TestStart_SchedulesAndStops(t *testing.T) {
	w := NewSubscriptionWorker(&mockSweeps{}, &stubCleaner{}, Schedules{
		Expiry:        "@every 1h",
		StaleAttempts: "@every 5m",
		Reminders:     "0 9 * * *",
	}, 3)
	require.NoError(t, w.Start(context.Background()))
	assert.Len(t, w.cron.Entries(), 4)
	w.Stop()
}
