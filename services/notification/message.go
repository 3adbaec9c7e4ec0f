package notification

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/shopspring/decimal"
)

// Alert is what the monitor asks the dispatcher to deliver
type Alert struct {
	Kind       models.NotificationKind
	Item       models.WatchItem
	Condition  models.Condition
	Confidence float64
	Price      decimal.Decimal
	Threshold  decimal.Decimal
	Direction  string // above, below
}

// NewConditionAlert builds an alert for a change of technical condition
func NewConditionAlert(item models.WatchItem, cond models.Condition, confidence float64, price decimal.Decimal) Alert {
	return Alert{
		Kind:       models.KindConditionAlert,
		Item:       item,
		Condition:  cond,
		Confidence: confidence,
		Price:      price,
	}
}

// NewPriceAlert builds an alert for a crossed price threshold
func NewPriceAlert(item models.WatchItem, price, threshold decimal.Decimal, direction string) Alert {
	return Alert{
		Kind:      models.KindPriceAlert,
		Item:      item,
		Price:     price,
		Threshold: threshold,
		Direction: direction,
	}
}

// Title is the short headline used for push and as the email subject
func (a Alert) Title() string {
	if a.Kind == models.KindPriceAlert {
		return a.Item.Symbol + " Price Alert"
	}
	return a.Item.Symbol + " Market Alert"
}

// Body is the one-line message text
func (a Alert) Body() string {
	if a.Kind == models.KindPriceAlert {
		return fmt.Sprintf("%s is now $%s, %s your alert price of $%s",
			a.Item.Symbol, a.Price.StringFixed(2), a.Direction, a.Threshold.StringFixed(2))
	}
	body := fmt.Sprintf("%s is showing %s signals (Confidence: %.0f%%)", a.Item.Symbol, a.Condition, a.Confidence*100)
	if !a.Price.IsZero() {
		body += " at $" + a.Price.StringFixed(2)
	}
	return body
}

// Data is the structured payload attached to push messages
func (a Alert) Data() map[string]any {
	data := map[string]any{
		"type":          string(a.Kind),
		"symbol":        a.Item.Symbol,
		"watch_item_id": strconv.FormatUint(uint64(a.Item.ID), 10),
	}
	if a.Kind == models.KindConditionAlert {
		data["condition"] = string(a.Condition)
	} else {
		data["direction"] = a.Direction
	}
	return data
}

var emailTemplate = template.Must(template.New("alert").Parse(`Hello,

{{.Body}}.

{{if .IsCondition}}Technical indicators for {{.Symbol}} moved into {{.Condition}} territory.{{else}}Your {{.Direction}} price alert for {{.Symbol}} was triggered.{{end}}
You are receiving this email because alerts are enabled for {{.Symbol}} on your watchlist.
To stop these emails, turn off email notifications in your account settings.
`))

// EmailBody renders the plaintext email for the alert
func (a Alert) EmailBody() (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, map[string]any{
		"Body":        a.Body(),
		"IsCondition": a.Kind == models.KindConditionAlert,
		"Symbol":      a.Item.Symbol,
		"Condition":   strings.ToLower(string(a.Condition)),
		"Direction":   a.Direction,
	})
	return buf.String(), err
}
