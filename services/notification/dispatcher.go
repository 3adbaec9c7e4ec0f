// Package notification fans alerts out to push and email, keeps an audit
// record per delivery attempt, and streams finalized records to websocket
// clients.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/models"
)

// OwnerStore resolves an owner's channel preferences
type OwnerStore interface {
	GetOwner(ctx context.Context, ownerID uint) (*models.Owner, error)
}

// TokenStore lists push targets
type TokenStore interface {
	ListActiveDeviceTokens(ctx context.Context, ownerID uint) ([]models.DeviceToken, error)
}

// RecordStore persists delivery attempts
type RecordStore interface {
	CreateNotification(ctx context.Context, record *models.NotificationRecord) error
	FinalizeNotification(ctx context.Context, record *models.NotificationRecord) error
}

// PushSender submits one push batch
type PushSender interface {
	SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}

// EmailSender delivers one plaintext email
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Publisher receives finalized records
type Publisher interface {
	Publish(record *models.NotificationRecord)
}

// ChannelResult is the outcome on one channel
type ChannelResult struct {
	Attempted bool  `json:"attempted"`
	Success   bool  `json:"success"`
	RecordID  uint  `json:"record_id,omitempty"`
	Err       error `json:"-"`
}

// Delivery holds per-channel outcomes of a Send
type Delivery struct {
	Push  ChannelResult `json:"push"`
	Email ChannelResult `json:"email"`
}

// Delivered reports whether every attempted channel succeeded.
// Nothing attempted counts as delivered.
func (d Delivery) Delivered() bool {
	return (!d.Push.Attempted || d.Push.Success) && (!d.Email.Attempted || d.Email.Success)
}

// Options toggles channels globally
type Options struct {
	PushEnabled  bool
	EmailEnabled bool
}

// Dispatcher delivers alerts on every channel the owner has enabled
type Dispatcher struct {
	owners  OwnerStore
	tokens  TokenStore
	records RecordStore
	push    PushSender
	email   EmailSender
	feed    Publisher
	opts    Options
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. feed may be nil.
func NewDispatcher(owners OwnerStore, tokens TokenStore, records RecordStore, push PushSender, email EmailSender, feed Publisher, opts Options) *Dispatcher {
	return &Dispatcher{
		owners:  owners,
		tokens:  tokens,
		records: records,
		push:    push,
		email:   email,
		feed:    feed,
		opts:    opts,
		now:     time.Now,
	}
}

// Send delivers alert and returns the per-channel outcome. A DispatchError
// is returned alongside the outcome when any attempted channel failed.
func (d *Dispatcher) Send(ctx context.Context, alert Alert) (Delivery, error) {
	const op = "notification.Send"
	var delivery Delivery

	owner, err := d.owners.GetOwner(ctx, alert.Item.OwnerID)
	if err != nil {
		return delivery, apperrors.Dispatch(op, fmt.Errorf("failed to load owner %d: %w", alert.Item.OwnerID, err))
	}

	if d.opts.PushEnabled && owner.PushNotifications {
		delivery.Push = d.sendPush(ctx, alert)
	}
	if d.opts.EmailEnabled && owner.EmailNotifications && owner.Email != "" {
		delivery.Email = d.sendEmail(ctx, owner.Email, alert)
	}

	if !delivery.Delivered() {
		return delivery, apperrors.Dispatch(op, errors.Join(delivery.Push.Err, delivery.Email.Err))
	}
	return delivery, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, alert Alert) ChannelResult {
	tokens, err := d.tokens.ListActiveDeviceTokens(ctx, alert.Item.OwnerID)
	if err != nil {
		return ChannelResult{Attempted: true, Err: fmt.Errorf("failed to load device tokens: %w", err)}
	}
	if len(tokens) == 0 {
		log.Printf("No active device tokens for owner %d, skipping push", alert.Item.OwnerID)
		return ChannelResult{}
	}

	messages := make([]PushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, PushMessage{
			To:       token.Token,
			Title:    alert.Title(),
			Body:     alert.Body(),
			Data:     alert.Data(),
			Sound:    "default",
			Priority: "high",
		})
	}

	return d.attempt(ctx, models.ChannelPush, alert, func() error {
		_, err := d.push.SendBatch(ctx, messages)
		return err
	})
}

func (d *Dispatcher) sendEmail(ctx context.Context, to string, alert Alert) ChannelResult {
	body, err := alert.EmailBody()
	if err != nil {
		return ChannelResult{Attempted: true, Err: fmt.Errorf("failed to render email: %w", err)}
	}
	return d.attempt(ctx, models.ChannelEmail, alert, func() error {
		return d.email.Send(ctx, to, alert.Title(), body)
	})
}

// attempt brackets one channel call with a pending record that is finalized
// to sent or failed afterwards.
func (d *Dispatcher) attempt(ctx context.Context, channel models.Channel, alert Alert, call func() error) ChannelResult {
	record := &models.NotificationRecord{
		OwnerID:     alert.Item.OwnerID,
		WatchItemID: alert.Item.ID,
		Kind:        alert.Kind,
		Channel:     channel,
		Symbol:      alert.Item.Symbol,
		Condition:   alert.Condition,
		Title:       alert.Title(),
		Body:        alert.Body(),
		Status:      models.StatusPending,
	}
	if err := d.records.CreateNotification(ctx, record); err != nil {
		return ChannelResult{Attempted: true, Err: fmt.Errorf("failed to record %s attempt: %w", channel, err)}
	}

	result := ChannelResult{Attempted: true, RecordID: record.ID}
	if err := call(); err != nil {
		log.Printf("Error sending %s notification for %s: %v", channel, alert.Item.Symbol, err)
		record.Status = models.StatusFailed
		record.ErrorMessage = err.Error()
		result.Err = fmt.Errorf("%s: %w", channel, err)
	} else {
		sentAt := d.now().UTC()
		record.Status = models.StatusSent
		record.SentAt = &sentAt
		result.Success = true
	}

	if err := d.records.FinalizeNotification(ctx, record); err != nil {
		log.Printf("Error finalizing notification %d: %v", record.ID, err)
	}
	if d.feed != nil {
		d.feed.Publish(record)
	}
	return result
}
