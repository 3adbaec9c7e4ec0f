package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ccjoness/StellarIQ-API/services/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingMonitor struct {
	release chan struct{}
	sweeps  atomic.Int32
}

func newBlockingMonitor() *blockingMonitor {
	return &blockingMonitor{release: make(chan struct{})}
}

func (m *blockingMonitor) Sweep(ctx context.Context) monitor.SweepResult {
	m.sweeps.Add(1)
	select {
	case <-m.release:
	case <-ctx.Done():
	}
	return monitor.SweepResult{}
}

func (m *blockingMonitor) Stats(context.Context) (monitor.Stats, error) {
	return monitor.Stats{TotalItems: 3}, nil
}

type retentionCall struct {
	notificationsCutoff time.Time
	tokensCutoff        time.Time
}

type fakeRetention struct {
	mu    sync.Mutex
	calls []retentionCall
	err   error
}

func (r *fakeRetention) DeleteNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, retentionCall{notificationsCutoff: cutoff})
	return 4, r.err
}

func (r *fakeRetention) DeactivateTokensUnusedSince(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[len(r.calls)-1].tokensCutoff = cutoff
	return 1, r.err
}

func TestTriggerManualSweep_SkipsWhileRunning(t *testing.T) {
	m := newBlockingMonitor()
	s := NewScheduler(m, &fakeRetention{}, Options{})
	defer s.Stop()

	require.True(t, s.TriggerManualSweep(context.Background()))
	require.Eventually(t, func() bool { return m.sweeps.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, s.TriggerManualSweep(context.Background()), "overlapping trigger is skipped, not queued")
	assert.False(t, s.runGuarded(JobMonitoringSweep, &s.sweeping, s.sweep), "scheduled trigger is skipped too")

	close(m.release)
	require.Eventually(t, func() bool { return !s.sweeping.Load() }, time.Second, 5*time.Millisecond)

	assert.True(t, s.TriggerManualSweep(context.Background()))
	require.Eventually(t, func() bool { return !s.sweeping.Load() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), m.sweeps.Load())
}

func TestTriggerManualSweep_OutlivesRequestContext(t *testing.T) {
	m := newBlockingMonitor()
	s := NewScheduler(m, &fakeRetention{}, Options{})
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.TriggerManualSweep(ctx))
	require.Eventually(t, func() bool { return m.sweeps.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.sweeping.Load(), "cancelling the request does not cancel the sweep")
	close(m.release)
}

func TestCleanup_UsesRetentionWindows(t *testing.T) {
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	retention := &fakeRetention{}
	s := NewScheduler(newBlockingMonitor(), retention, Options{})
	s.now = func() time.Time { return now }

	assert.True(t, s.runGuarded(JobNotificationCleanup, &s.cleaning, s.cleanup))

	require.Len(t, retention.calls, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), retention.calls[0].notificationsCutoff)
	assert.Equal(t, now.Add(-60*24*time.Hour), retention.calls[0].tokensCutoff)
}

func TestCleanup_ErrorsAreContained(t *testing.T) {
	retention := &fakeRetention{err: errors.New("db down")}
	s := NewScheduler(newBlockingMonitor(), retention, Options{})

	assert.True(t, s.runGuarded(JobNotificationCleanup, &s.cleaning, s.cleanup))
	assert.False(t, s.cleaning.Load())
}

func TestRunGuarded_RecoversPanics(t *testing.T) {
	s := NewScheduler(newBlockingMonitor(), &fakeRetention{}, Options{})

	ran := s.runGuarded(JobHealthCheck, &s.checking, func(context.Context) { panic("boom") })
	assert.True(t, ran, "a panicking job still counts as started")
	assert.False(t, s.checking.Load(), "guard is released after a panic")

	calls := 0
	assert.True(t, s.runGuarded(JobHealthCheck, &s.checking, func(context.Context) { calls++ }))
	assert.Equal(t, 1, calls, "job runs again after a panic")
}

func TestStartAndStatus(t *testing.T) {
	s := NewScheduler(newBlockingMonitor(), &fakeRetention{}, Options{SweepInterval: time.Minute, CleanupAt: "02:00"})
	require.NoError(t, s.Start())

	status := s.Status()
	assert.True(t, status.Running)
	require.Len(t, status.Jobs, 3)

	ids := map[string]time.Time{}
	for _, job := range status.Jobs {
		ids[job.ID] = job.NextRun
		assert.False(t, job.Running)
	}
	assert.Contains(t, ids, JobMonitoringSweep)
	assert.Contains(t, ids, JobNotificationCleanup)
	assert.Contains(t, ids, JobHealthCheck)

	cleanupAt := ids[JobNotificationCleanup].UTC()
	assert.Equal(t, 2, cleanupAt.Hour())
	assert.Equal(t, 0, cleanupAt.Minute())

	s.Stop()
	assert.False(t, s.Status().Running)
}
