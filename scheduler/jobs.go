package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/ccjoness/StellarIQ-API/services/monitor"
	"github.com/go-co-op/gocron"
)

// Job tags
const (
	JobMonitoringSweep     = "monitoring_sweep"
	JobNotificationCleanup = "notification_cleanup"
	JobHealthCheck         = "health_check"
)

// Monitor is the part of the watchlist monitor the scheduler drives
type Monitor interface {
	Sweep(ctx context.Context) monitor.SweepResult
	Stats(ctx context.Context) (monitor.Stats, error)
}

// RetentionStore prunes notification history and stale device tokens
type RetentionStore interface {
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeactivateTokensUnusedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options configures job timing and retention windows
type Options struct {
	SweepInterval         time.Duration
	CleanupAt             string // HH:MM UTC
	NotificationRetention time.Duration
	TokenRetention        time.Duration
}

// JobStatus describes one registered job
type JobStatus struct {
	ID      string    `json:"id"`
	NextRun time.Time `json:"next_run"`
	Running bool      `json:"running"`
}

// Status is a snapshot of the scheduler
type Status struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	monitor   Monitor
	retention RetentionStore
	opts      Options
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	sweeping atomic.Bool
	cleaning atomic.Bool
	checking atomic.Bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(m Monitor, retention RetentionStore, opts Options) *Scheduler {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.CleanupAt == "" {
		opts.CleanupAt = "02:00"
	}
	if opts.NotificationRetention <= 0 {
		opts.NotificationRetention = 30 * 24 * time.Hour
	}
	if opts.TokenRetention <= 0 {
		opts.TokenRetention = 60 * 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	cron := gocron.NewScheduler(time.UTC)
	cron.WaitForScheduleAll()

	return &Scheduler{
		cron:      cron,
		monitor:   m,
		retention: retention,
		opts:      opts,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers all jobs and starts the scheduler
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	// Monitoring sweep on a fixed interval
	if _, err := s.cron.Every(s.opts.SweepInterval).Tag(JobMonitoringSweep).Do(func() {
		s.runGuarded(JobMonitoringSweep, &s.sweeping, s.sweep)
	}); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", JobMonitoringSweep, err)
	}

	// Retention cleanup daily
	if _, err := s.cron.Every(1).Day().At(s.opts.CleanupAt).Tag(JobNotificationCleanup).Do(func() {
		s.runGuarded(JobNotificationCleanup, &s.cleaning, s.cleanup)
	}); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", JobNotificationCleanup, err)
	}

	// Health check hourly
	if _, err := s.cron.Every(time.Hour).Tag(JobHealthCheck).Do(func() {
		s.runGuarded(JobHealthCheck, &s.checking, s.healthCheck)
	}); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", JobHealthCheck, err)
	}

	s.cron.StartAsync()
	log.Printf("✓ Scheduler started: sweep every %s, cleanup daily at %s UTC", s.opts.SweepInterval, s.opts.CleanupAt)
	return nil
}

// Stop stops the scheduler and cancels in-flight jobs
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// Status reports whether the scheduler runs and when each job fires next
func (s *Scheduler) Status() Status {
	status := Status{Running: s.cron.IsRunning(), Jobs: []JobStatus{}}
	for _, job := range s.cron.Jobs() {
		tags := job.Tags()
		if len(tags) == 0 {
			continue
		}
		status.Jobs = append(status.Jobs, JobStatus{
			ID:      tags[0],
			NextRun: job.NextRun(),
			Running: s.flagFor(tags[0]).Load(),
		})
	}
	return status
}

// TriggerManualSweep starts a sweep outside the schedule. It returns false
// without starting anything when a sweep is already running.
func (s *Scheduler) TriggerManualSweep(ctx context.Context) bool {
	if !s.sweeping.CompareAndSwap(false, true) {
		log.Printf("⚠️  Manual sweep requested while %s is running, skipping", JobMonitoringSweep)
		return false
	}

	// The sweep outlives the request that triggered it
	sweepCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.sweeping.Store(false)
		log.Println("Manual monitoring sweep triggered")
		s.sweep(sweepCtx)
	}()
	return true
}

func (s *Scheduler) flagFor(tag string) *atomic.Bool {
	switch tag {
	case JobMonitoringSweep:
		return &s.sweeping
	case JobNotificationCleanup:
		return &s.cleaning
	default:
		return &s.checking
	}
}

// runGuarded runs fn unless the previous run of the same job is still going.
// It reports whether fn was started, even if fn panicked.
func (s *Scheduler) runGuarded(name string, running *atomic.Bool, fn func(ctx context.Context)) (ran bool) {
	if !running.CompareAndSwap(false, true) {
		log.Printf("⚠️  Job %s still running, skipping this trigger", name)
		return false
	}
	ran = true
	defer running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Job %s panicked: %v", name, r)
		}
	}()
	fn(s.ctx)
	return true
}

// sweep runs the monitoring sweep
func (s *Scheduler) sweep(ctx context.Context) {
	s.monitor.Sweep(ctx)
}

// cleanup removes old notification records and deactivates stale tokens
func (s *Scheduler) cleanup(ctx context.Context) {
	log.Println("Cleaning up old notifications...")
	now := s.now().UTC()

	deleted, err := s.retention.DeleteNotificationsBefore(ctx, now.Add(-s.opts.NotificationRetention))
	if err != nil {
		log.Printf("Error cleaning up old notifications: %v", err)
	} else {
		log.Printf("Deleted %d old notification records", deleted)
	}

	deactivated, err := s.retention.DeactivateTokensUnusedSince(ctx, now.Add(-s.opts.TokenRetention))
	if err != nil {
		log.Printf("Error deactivating stale device tokens: %v", err)
	} else {
		log.Printf("Deactivated %d stale device tokens", deactivated)
	}
}

// healthCheck logs monitoring counters
func (s *Scheduler) healthCheck(ctx context.Context) {
	stats, err := s.monitor.Stats(ctx)
	if err != nil {
		log.Printf("Health check failed: %v", err)
		return
	}
	log.Printf("Monitoring stats: total=%d enabled=%d alerts_24h=%d",
		stats.TotalItems, stats.EnabledAlerts, stats.RecentAlerts24h)
}
