// Package repository implements the monitoring engine's persistence
// interfaces on top of gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
	"gorm.io/gorm"
)

// Repository is the gorm-backed store for watch items, owners, device
// tokens and notification records.
type Repository struct {
	db *gorm.DB
}

// New creates a repository over db
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for migrations and health checks
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// ==================== Watch items ====================

// ListEnabledWatchItems returns every item with condition or price alerts enabled
func (r *Repository) ListEnabledWatchItems(ctx context.Context) ([]models.WatchItem, error) {
	var items []models.WatchItem
	err := r.db.WithContext(ctx).
		Where("condition_alert_enabled = ? OR price_alert_enabled = ?", true, true).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled watch items: %w", err)
	}
	return items, nil
}

// FindAlertItem returns the owner's alert-enabled item for symbol.
// A missing item is reported as a NotFound error.
func (r *Repository) FindAlertItem(ctx context.Context, ownerID uint, symbol string) (*models.WatchItem, error) {
	var item models.WatchItem
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND symbol = ? AND condition_alert_enabled = ?", ownerID, strings.ToUpper(symbol), true).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("repository.FindAlertItem",
			fmt.Sprintf("no alert-enabled watch item %s for owner %d", symbol, ownerID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find watch item: %w", err)
	}
	return &item, nil
}

// UpdateAlertState records a fired condition alert: state and timestamp together
func (r *Repository) UpdateAlertState(ctx context.Context, id uint, cond models.Condition, at time.Time) error {
	return r.updateItem(ctx, id, map[string]interface{}{
		"last_alert_state":   cond,
		"last_alert_sent_at": at.UTC(),
	})
}

// UpdateLastCondition tracks a condition change without touching the cooldown timestamp
func (r *Repository) UpdateLastCondition(ctx context.Context, id uint, cond models.Condition) error {
	return r.updateItem(ctx, id, map[string]interface{}{
		"last_alert_state": cond,
	})
}

// UpdatePriceAlertTimestamp records a fired price alert
func (r *Repository) UpdatePriceAlertTimestamp(ctx context.Context, id uint, at time.Time) error {
	return r.updateItem(ctx, id, map[string]interface{}{
		"last_price_alert_sent_at": at.UTC(),
	})
}

func (r *Repository) updateItem(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.WatchItem{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update watch item %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("repository.updateItem", fmt.Sprintf("watch item %d not found", id))
	}
	return nil
}

// ItemCounts is the raw material for monitoring stats
type ItemCounts struct {
	Total       int64
	Enabled     int64
	RecentAlert int64
}

// CountStats counts all items, alert-enabled items and items that fired
// a condition or price alert at or after since.
func (r *Repository) CountStats(ctx context.Context, since time.Time) (ItemCounts, error) {
	var counts ItemCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.WatchItem{}).Count(&counts.Total).Error; err != nil {
		return counts, fmt.Errorf("failed to count watch items: %w", err)
	}
	if err := db.Model(&models.WatchItem{}).
		Where("condition_alert_enabled = ? OR price_alert_enabled = ?", true, true).
		Count(&counts.Enabled).Error; err != nil {
		return counts, fmt.Errorf("failed to count enabled watch items: %w", err)
	}
	if err := db.Model(&models.WatchItem{}).
		Where("last_alert_sent_at >= ? OR last_price_alert_sent_at >= ?", since.UTC(), since.UTC()).
		Count(&counts.RecentAlert).Error; err != nil {
		return counts, fmt.Errorf("failed to count recent alerts: %w", err)
	}
	return counts, nil
}

// ==================== Owners and device tokens ====================

// GetOwner loads an owner's notification preferences
func (r *Repository) GetOwner(ctx context.Context, ownerID uint) (*models.Owner, error) {
	var owner models.Owner
	err := r.db.WithContext(ctx).First(&owner, ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("repository.GetOwner", fmt.Sprintf("owner %d not found", ownerID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load owner %d: %w", ownerID, err)
	}
	return &owner, nil
}

// ListActiveDeviceTokens returns the owner's active push targets
func (r *Repository) ListActiveDeviceTokens(ctx context.Context, ownerID uint) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("id").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	return tokens, nil
}

// DeactivateTokensUnusedSince deactivates active tokens last used before cutoff.
// Tokens that were never used are left alone.
func (r *Repository) DeactivateTokensUnusedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.DeviceToken{}).
		Where("is_active = ? AND last_used_at IS NOT NULL AND last_used_at < ?", true, cutoff.UTC()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate device tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ==================== Notification records ====================

// CreateNotification inserts a delivery attempt record
func (r *Repository) CreateNotification(ctx context.Context, record *models.NotificationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}
	return nil
}

// FinalizeNotification writes the outcome of a delivery attempt
func (r *Repository) FinalizeNotification(ctx context.Context, record *models.NotificationRecord) error {
	err := r.db.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":        record.Status,
			"error_message": record.ErrorMessage,
			"sent_at":       record.SentAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize notification %d: %w", record.ID, err)
	}
	return nil
}

// ListRecentNotifications returns the newest records first
func (r *Repository) ListRecentNotifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []models.NotificationRecord
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return records, nil
}

// DeleteNotificationsBefore removes records created before cutoff
func (r *Repository) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&models.NotificationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
