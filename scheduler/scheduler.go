// Package scheduler provides scheduled job management for the monitoring engine.
// It handles:
// - The periodic watchlist monitoring sweep
// - Daily notification history and device token cleanup
// - Hourly health logging
//
// Each job is guarded against overlapping with itself: a trigger that
// arrives while the previous run is still in progress is skipped.
// Only one scheduler instance may run against a database.
//
// The main scheduler is implemented in jobs.go
package scheduler
