package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetClass distinguishes how prices are looked up for a symbol
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetCrypto AssetClass = "crypto"
)

// String returns the string representation of AssetClass
func (a AssetClass) String() string {
	return string(a)
}

// IsValidAssetClass checks if an asset class is supported
func IsValidAssetClass(class string) bool {
	return class == string(AssetEquity) || class == string(AssetCrypto)
}

// Condition is the coarse technical state of an instrument
type Condition string

const (
	ConditionNone       Condition = ""
	ConditionNeutral    Condition = "neutral"
	ConditionOverbought Condition = "overbought"
	ConditionOversold   Condition = "oversold"
)

// String returns the string representation of Condition
func (c Condition) String() string {
	return string(c)
}

// ConditionAlertConfig selects which condition changes are alert-worthy
type ConditionAlertConfig struct {
	Enabled      bool `json:"enabled"`
	OnOverbought bool `json:"on_overbought"`
	OnOversold   bool `json:"on_oversold"`
	OnNeutral    bool `json:"on_neutral"`
}

// AlertsOn reports whether a change into cond should notify the owner.
func (c ConditionAlertConfig) AlertsOn(cond Condition) bool {
	switch cond {
	case ConditionOverbought:
		return c.OnOverbought
	case ConditionOversold:
		return c.OnOversold
	case ConditionNeutral:
		return c.OnNeutral
	}
	return false
}

// PriceAlertConfig holds optional absolute price thresholds
type PriceAlertConfig struct {
	Enabled bool                `json:"enabled"`
	Above   decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"above"`
	Below   decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"below"`
}

// HasThreshold reports whether at least one threshold is configured
func (p PriceAlertConfig) HasThreshold() bool {
	return p.Above.Valid || p.Below.Valid
}

// WatchItem is a tracked instrument with its alert configuration and alert state.
// Alert-state fields are written only by the monitor.
type WatchItem struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OwnerID    uint       `gorm:"index;not null" json:"owner_id"`
	Symbol     string     `gorm:"index;not null;size:20" json:"symbol"`
	AssetClass AssetClass `gorm:"type:varchar(16);not null" json:"asset_class"`
	Name       string     `json:"name"`

	ConditionAlert ConditionAlertConfig `gorm:"embedded;embeddedPrefix:condition_alert_" json:"condition_alert"`
	PriceAlert     PriceAlertConfig     `gorm:"embedded;embeddedPrefix:price_alert_" json:"price_alert"`

	LastAlertState       Condition  `gorm:"type:varchar(16)" json:"last_alert_state"`
	LastAlertSentAt      *time.Time `json:"last_alert_sent_at"`
	LastPriceAlertSentAt *time.Time `json:"last_price_alert_sent_at"`

	Notifications []NotificationRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for WatchItem
func (WatchItem) TableName() string {
	return "watch_items"
}

// NewWatchItem returns an item with condition alerts on for overbought and oversold.
func NewWatchItem(ownerID uint, symbol string, class AssetClass) WatchItem {
	return WatchItem{
		OwnerID:    ownerID,
		Symbol:     symbol,
		AssetClass: class,
		ConditionAlert: ConditionAlertConfig{
			Enabled:      true,
			OnOverbought: true,
			OnOversold:   true,
		},
	}
}

// Owner is the read-only view of a user's notification preferences
type Owner struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Email              string    `gorm:"index" json:"email"`
	PushNotifications  bool      `json:"push_notifications"`
	EmailNotifications bool      `json:"email_notifications"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for Owner
func (Owner) TableName() string {
	return "owners"
}

// MigrateMonitoringModels runs database migrations for the monitoring engine
func MigrateMonitoringModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Owner{},
		&WatchItem{},
		&NotificationRecord{},
		&DeviceToken{},
	)
}
