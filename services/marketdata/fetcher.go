// Package marketdata talks to the Alpha Vantage API: a rate-limited fetcher,
// a cache-aside gateway with one accessor per data kind, and parsers that
// turn provider envelopes into numeric series.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
)

// DefaultBaseURL is the Alpha Vantage query endpoint
const DefaultBaseURL = "https://www.alphavantage.co/query"

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 256

// Provider fields that signal a failed or throttled request despite HTTP 200.
var providerErrorFields = []string{"Error Message", "Note", "Information"}

// Fetcher is the single upstream HTTP client
type Fetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewFetcher creates a fetcher that allows ratePerMinute calls per rolling minute
func NewFetcher(baseURL, apiKey string, ratePerMinute int, timeout time.Duration) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: NewRateLimiter(ratePerMinute, time.Minute),
	}
}

// Fetch performs one GET with params plus the API key and returns the JSON body.
// Every failure is an UpstreamError. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, params url.Values) (json.RawMessage, error) {
	op := "fetch " + params.Get("function")

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Upstream(op, fmt.Errorf("rate limit wait aborted: %w", err))
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("apikey", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, apperrors.Upstream(op, fmt.Errorf("failed to create request: %w", redact(err)))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Upstream(op, fmt.Errorf("failed to fetch data: %w", redact(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Upstream(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, apperrors.Upstream(op, fmt.Errorf("API error (status %d): %s", resp.StatusCode, snippet))
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.Upstream(op, fmt.Errorf("malformed response: %w", err))
	}
	for _, field := range providerErrorFields {
		raw, ok := envelope[field]
		if !ok {
			continue
		}
		var msg string
		if json.Unmarshal(raw, &msg) != nil {
			msg = string(raw)
		}
		return nil, apperrors.Upstream(op, fmt.Errorf("provider %s: %s", field, msg))
	}

	return json.RawMessage(body), nil
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
