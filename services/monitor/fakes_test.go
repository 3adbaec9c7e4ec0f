package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/repository"
	"github.com/ccjoness/StellarIQ-API/services/analysis"
	"github.com/ccjoness/StellarIQ-API/services/notification"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu          sync.Mutex
	items       map[uint]*models.WatchItem
	stateWrites int
}

func newMemStore(items ...models.WatchItem) *memStore {
	s := &memStore{items: map[uint]*models.WatchItem{}}
	for i := range items {
		item := items[i]
		s.items[item.ID] = &item
	}
	return s
}

func (s *memStore) get(id uint) models.WatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

func (s *memStore) ListEnabledWatchItems(context.Context) ([]models.WatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WatchItem
	for _, item := range s.items {
		if item.ConditionAlert.Enabled || item.PriceAlert.Enabled {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) FindAlertItem(_ context.Context, ownerID uint, symbol string) (*models.WatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.OwnerID == ownerID && item.Symbol == symbol && item.ConditionAlert.Enabled {
			copied := *item
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("memStore.FindAlertItem", "no item")
}

func (s *memStore) UpdateAlertState(_ context.Context, id uint, cond models.Condition, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWrites++
	s.items[id].LastAlertState = cond
	s.items[id].LastAlertSentAt = &at
	return nil
}

func (s *memStore) UpdateLastCondition(_ context.Context, id uint, cond models.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWrites++
	s.items[id].LastAlertState = cond
	return nil
}

func (s *memStore) UpdatePriceAlertTimestamp(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWrites++
	s.items[id].LastPriceAlertSentAt = &at
	return nil
}

func (s *memStore) CountStats(_ context.Context, since time.Time) (repository.ItemCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts repository.ItemCounts
	for _, item := range s.items {
		counts.Total++
		if item.ConditionAlert.Enabled || item.PriceAlert.Enabled {
			counts.Enabled++
		}
		if (item.LastAlertSentAt != nil && !item.LastAlertSentAt.Before(since)) ||
			(item.LastPriceAlertSentAt != nil && !item.LastPriceAlertSentAt.Before(since)) {
			counts.RecentAlert++
		}
	}
	return counts, nil
}

type fakeAnalyzer struct {
	results map[string]*analysis.Result
	calls   int
}

func (a *fakeAnalyzer) Analyze(_ context.Context, symbol string, class models.AssetClass) (*analysis.Result, error) {
	a.calls++
	result, ok := a.results[symbol]
	if !ok {
		return nil, apperrors.Upstream("fakeAnalyzer", fmt.Errorf("no data for %s", symbol))
	}
	return result, nil
}

func verdict(cond models.Condition, confidence float64, price string) *analysis.Result {
	p := decimal.RequireFromString(price)
	return &analysis.Result{
		CurrentPrice: &p,
		Verdict:      analysis.Verdict{Condition: cond, Confidence: confidence},
	}
}

type fakePrices map[string]decimal.Decimal

func (f fakePrices) CurrentPrice(_ context.Context, symbol string, _ models.AssetClass) (decimal.Decimal, error) {
	price, ok := f[symbol]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return price, nil
}

type fakeDispatcher struct {
	alerts []notification.Alert
	err    error
}

func (d *fakeDispatcher) Send(_ context.Context, alert notification.Alert) (notification.Delivery, error) {
	d.alerts = append(d.alerts, alert)
	if d.err != nil {
		return notification.Delivery{}, apperrors.Dispatch("fakeDispatcher", d.err)
	}
	return notification.Delivery{Push: notification.ChannelResult{Attempted: true, Success: true}}, nil
}

func conditionItem(id uint, symbol string, last models.Condition, sentAt *time.Time) models.WatchItem {
	item := models.NewWatchItem(1, symbol, models.AssetEquity)
	item.ID = id
	item.LastAlertState = last
	item.LastAlertSentAt = sentAt
	return item
}

func priceItem(id uint, symbol string, above, below string) models.WatchItem {
	item := models.NewWatchItem(1, symbol, models.AssetEquity)
	item.ID = id
	item.ConditionAlert.Enabled = false
	item.PriceAlert.Enabled = true
	if above != "" {
		item.PriceAlert.Above = decimal.NewNullDecimal(decimal.RequireFromString(above))
	}
	if below != "" {
		item.PriceAlert.Below = decimal.NewNullDecimal(decimal.RequireFromString(below))
	}
	return item
}

func timePtr(t time.Time) *time.Time { return &t }
