// Package monitor runs the per-item alert state machine over the watchlist.
//
// Every watch item carries two independent tracks, each cooled down on its
// own timestamp:
//
//   - condition: alerts when the analyzed condition changes into one the
//     owner asked to hear about
//   - price: alerts when the current price crosses a configured threshold
//
// Alert state is persisted only after a successful dispatch, so a failed
// delivery is retried naturally on the next sweep.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/repository"
	"github.com/ccjoness/StellarIQ-API/services/analysis"
	"github.com/ccjoness/StellarIQ-API/services/notification"
	"github.com/shopspring/decimal"
)

// DefaultCooldown is the minimum gap between two alerts on the same track
const DefaultCooldown = time.Hour

// WatchItemStore reads watch items and persists their alert state
type WatchItemStore interface {
	ListEnabledWatchItems(ctx context.Context) ([]models.WatchItem, error)
	FindAlertItem(ctx context.Context, ownerID uint, symbol string) (*models.WatchItem, error)
	UpdateAlertState(ctx context.Context, id uint, cond models.Condition, at time.Time) error
	UpdateLastCondition(ctx context.Context, id uint, cond models.Condition) error
	UpdatePriceAlertTimestamp(ctx context.Context, id uint, at time.Time) error
	CountStats(ctx context.Context, since time.Time) (repository.ItemCounts, error)
}

// Analyzer classifies a symbol's current condition
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, class models.AssetClass) (*analysis.Result, error)
}

// PriceSource quotes the current price of a symbol
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string, class models.AssetClass) (decimal.Decimal, error)
}

// Dispatcher delivers an alert to the item's owner
type Dispatcher interface {
	Send(ctx context.Context, alert notification.Alert) (notification.Delivery, error)
}

// SweepResult summarizes one pass over the watchlist
type SweepResult struct {
	StartedAt       time.Time `json:"started_at"`
	DurationMS      int64     `json:"duration_ms"`
	ItemsChecked    int       `json:"items_checked"`
	ConditionAlerts int       `json:"condition_alerts"`
	PriceAlerts     int       `json:"price_alerts"`
	FailedItems     int       `json:"failed_items"`
	Cancelled       bool      `json:"cancelled,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Stats are the monitoring counters exposed to administrators
type Stats struct {
	TotalItems      int64        `json:"total_items"`
	EnabledAlerts   int64        `json:"enabled_alerts"`
	RecentAlerts24h int64        `json:"recent_alerts_24h"`
	LastSweep       *SweepResult `json:"last_sweep,omitempty"`
	LastCheck       time.Time    `json:"last_check"`
}

// Monitor evaluates watch items and fires alerts
type Monitor struct {
	items      WatchItemStore
	analyzer   Analyzer
	prices     PriceSource
	dispatcher Dispatcher
	cooldown   time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	lastSweep *SweepResult
}

// NewMonitor creates a monitor. A non-positive cooldown uses DefaultCooldown.
func NewMonitor(items WatchItemStore, analyzer Analyzer, prices PriceSource, dispatcher Dispatcher, cooldown time.Duration) *Monitor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Monitor{
		items:      items,
		analyzer:   analyzer,
		prices:     prices,
		dispatcher: dispatcher,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// WithClock replaces the monitor's time source
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Sweep checks every alert-enabled item once, sequentially. A failing item
// is logged and counted; it never stops the sweep.
func (m *Monitor) Sweep(ctx context.Context) SweepResult {
	result := SweepResult{StartedAt: m.now().UTC()}
	defer func() {
		result.DurationMS = m.now().Sub(result.StartedAt).Milliseconds()
		m.mu.Lock()
		last := result
		m.lastSweep = &last
		m.mu.Unlock()
	}()

	log.Println("Starting watchlist monitoring sweep")

	items, err := m.items.ListEnabledWatchItems(ctx)
	if err != nil {
		log.Printf("Error loading watch items: %v", err)
		result.Error = err.Error()
		return result
	}
	log.Printf("Found %d watch items with alerts enabled", len(items))

	for i := range items {
		if ctx.Err() != nil {
			log.Printf("⚠️  Sweep cancelled after %d of %d items", result.ItemsChecked, len(items))
			result.Cancelled = true
			break
		}

		item := &items[i]
		now := m.now().UTC()
		result.ItemsChecked++

		conditionFired, conditionErr := m.checkCondition(ctx, item, now)
		priceFired, priceErr := m.checkPrice(ctx, item, now)

		if conditionFired {
			result.ConditionAlerts++
		}
		if priceFired {
			result.PriceAlerts++
		}
		if err := errors.Join(conditionErr, priceErr); err != nil {
			log.Printf("Error checking alerts for %s (item %d): %v", item.Symbol, item.ID, err)
			result.FailedItems++
		}
	}

	log.Printf("✓ Sweep completed: %d checked, %d condition alerts, %d price alerts, %d failed",
		result.ItemsChecked, result.ConditionAlerts, result.PriceAlerts, result.FailedItems)
	return result
}

// ForceCheck evaluates the condition track of the owner's item for symbol
// once, ignoring its cooldown. The stored cooldown timestamp only changes if
// an alert fires. It returns false when no alert-enabled item matches.
func (m *Monitor) ForceCheck(ctx context.Context, ownerID uint, symbol string) (bool, error) {
	item, err := m.items.FindAlertItem(ctx, ownerID, symbol)
	if apperrors.IsNotFound(err) {
		log.Printf("⚠️  No alert-enabled watch item for owner %d, symbol %s", ownerID, symbol)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	probe := *item
	probe.LastAlertSentAt = nil

	fired, err := m.checkCondition(ctx, &probe, m.now().UTC())
	if err != nil {
		return false, err
	}
	if fired {
		log.Printf("Force check fired an alert for %s (owner %d)", item.Symbol, ownerID)
	}
	return true, nil
}

// Stats returns monitoring counters, counting alerts fired in the last 24 hours
func (m *Monitor) Stats(ctx context.Context) (Stats, error) {
	now := m.now().UTC()
	counts, err := m.items.CountStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Stats{}, err
	}

	m.mu.RLock()
	last := m.lastSweep
	m.mu.RUnlock()

	return Stats{
		TotalItems:      counts.Total,
		EnabledAlerts:   counts.Enabled,
		RecentAlerts24h: counts.RecentAlert,
		LastSweep:       last,
		LastCheck:       now,
	}, nil
}

func (m *Monitor) coolingDown(last *time.Time, now time.Time) bool {
	return last != nil && now.Sub(*last) < m.cooldown
}

// checkCondition runs the condition track and reports whether an alert fired.
func (m *Monitor) checkCondition(ctx context.Context, item *models.WatchItem, now time.Time) (bool, error) {
	if !item.ConditionAlert.Enabled {
		return false, nil
	}
	if m.coolingDown(item.LastAlertSentAt, now) {
		log.Printf("Skipping %s - alert sent recently", item.Symbol)
		return false, nil
	}

	result, err := m.analyzer.Analyze(ctx, item.Symbol, item.AssetClass)
	if err != nil {
		return false, fmt.Errorf("analysis of %s failed: %w", item.Symbol, err)
	}

	current, previous := result.Condition, item.LastAlertState
	if current == previous {
		return false, nil
	}

	if !item.ConditionAlert.AlertsOn(current) {
		if err := m.items.UpdateLastCondition(ctx, item.ID, current); err != nil {
			return false, err
		}
		item.LastAlertState = current
		log.Printf("Updated state for %s: %q -> %q (no alert)", item.Symbol, previous, current)
		return false, nil
	}

	log.Printf("Sending alert for %s: %q -> %q", item.Symbol, previous, current)

	price := decimal.Zero
	if result.CurrentPrice != nil {
		price = *result.CurrentPrice
	}
	alert := notification.NewConditionAlert(*item, current, result.Confidence, price)
	if _, err := m.dispatcher.Send(ctx, alert); err != nil {
		return false, fmt.Errorf("condition alert for %s not delivered: %w", item.Symbol, err)
	}

	if err := m.items.UpdateAlertState(ctx, item.ID, current, now); err != nil {
		return true, err
	}
	item.LastAlertState = current
	item.LastAlertSentAt = &now
	log.Printf("✓ Alert sent for %s", item.Symbol)
	return true, nil
}

// checkPrice runs the price track and reports whether an alert fired.
// The above threshold is checked before the below threshold.
func (m *Monitor) checkPrice(ctx context.Context, item *models.WatchItem, now time.Time) (bool, error) {
	cfg := item.PriceAlert
	if !cfg.Enabled || !cfg.HasThreshold() {
		return false, nil
	}
	if m.coolingDown(item.LastPriceAlertSentAt, now) {
		return false, nil
	}

	price, err := m.prices.CurrentPrice(ctx, item.Symbol, item.AssetClass)
	if err != nil {
		return false, fmt.Errorf("price of %s unavailable: %w", item.Symbol, err)
	}

	var threshold decimal.Decimal
	var direction string
	switch {
	case cfg.Above.Valid && price.GreaterThanOrEqual(cfg.Above.Decimal):
		threshold, direction = cfg.Above.Decimal, "above"
	case cfg.Below.Valid && price.LessThanOrEqual(cfg.Below.Decimal):
		threshold, direction = cfg.Below.Decimal, "below"
	default:
		return false, nil
	}

	log.Printf("Sending price alert for %s: $%s %s $%s", item.Symbol, price.StringFixed(2), direction, threshold.StringFixed(2))

	alert := notification.NewPriceAlert(*item, price, threshold, direction)
	if _, err := m.dispatcher.Send(ctx, alert); err != nil {
		return false, fmt.Errorf("price alert for %s not delivered: %w", item.Symbol, err)
	}

	if err := m.items.UpdatePriceAlertTimestamp(ctx, item.ID, now); err != nil {
		return true, err
	}
	item.LastPriceAlertSentAt = &now
	return true, nil
}
