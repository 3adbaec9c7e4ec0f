package models

import (
	"time"
)

// NotificationKind identifies which alert track produced a notification
type NotificationKind string

const (
	KindConditionAlert NotificationKind = "condition_alert"
	KindPriceAlert     NotificationKind = "price_alert"
)

// Channel is a delivery transport
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// NotificationStatus tracks a single delivery attempt
type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// NotificationRecord is written as pending before a delivery attempt and
// finalized to sent or failed afterwards.
type NotificationRecord struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	OwnerID      uint               `gorm:"index;not null" json:"owner_id"`
	WatchItemID  uint               `gorm:"index;not null" json:"watch_item_id"`
	Kind         NotificationKind   `gorm:"type:varchar(32);not null" json:"kind"`
	Channel      Channel            `gorm:"type:varchar(16);not null" json:"channel"`
	Symbol       string             `gorm:"size:20" json:"symbol"`
	Condition    Condition          `gorm:"type:varchar(16)" json:"condition,omitempty"`
	Title        string             `json:"title"`
	Body         string             `json:"body"`
	Status       NotificationStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	CreatedAt    time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// TableName specifies the table name for NotificationRecord
func (NotificationRecord) TableName() string {
	return "notification_records"
}

// DeviceToken is a push target registered by an owner's device
type DeviceToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OwnerID    uint       `gorm:"index;not null" json:"owner_id"`
	Token      string     `gorm:"uniqueIndex;not null" json:"token"`
	DeviceType string     `gorm:"size:16" json:"device_type"` // ios, android, web
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for DeviceToken
func (DeviceToken) TableName() string {
	return "device_tokens"
}
