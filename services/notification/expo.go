package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultExpoPushURL is the Expo push gateway endpoint
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// PushMessage is one entry of an Expo push batch
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound"`
	Priority string         `json:"priority"`
}

// PushTicket is the gateway's per-message answer, parallel to the batch
type PushTicket struct {
	Status  string         `json:"status"` // ok, error
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ExpoClient submits push batches to the Expo push service
type ExpoClient struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

// NewExpoClient creates a push client. accessToken may be empty.
func NewExpoClient(pushURL, accessToken string) *ExpoClient {
	if pushURL == "" {
		pushURL = DefaultExpoPushURL
	}
	return &ExpoClient{
		url:         pushURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendBatch posts all messages in one request. Any ticket with an error
// status fails the whole batch.
func (c *ExpoClient) SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("failed to send push batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push gateway error (status %d)", resp.StatusCode)
	}

	var result struct {
		Data   []PushTicket `json:"data"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("malformed push response: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("push gateway rejected batch: %s", result.Errors[0].Message)
	}

	var failed []string
	for i, ticket := range result.Data {
		if ticket.Status == "error" {
			failed = append(failed, fmt.Sprintf("#%d %s", i, ticket.Message))
		}
	}
	if len(failed) > 0 {
		return result.Data, fmt.Errorf("push gateway reported %d failed message(s): %s",
			len(failed), strings.Join(failed, "; "))
	}
	return result.Data, nil
}
