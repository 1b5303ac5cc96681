package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"reptlab/internal/rept"
)

// WebhookNotifier POSTs stats events to an external URL, e.g. a
// collector that archives relaxation curves across runs.
type WebhookNotifier struct {
	id      string
	url     string
	client  *http.Client
	headers map[string]string
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(id, url string) *WebhookNotifier {
	return &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(map[string]string),
	}
}

// SetHeader sets a custom header to include in webhook requests.
func (wn *WebhookNotifier) SetHeader(key, value string) {
	if wn.headers == nil {
		wn.headers = make(map[string]string)
	}
	wn.headers[key] = value
}

// ID returns the notifier ID.
func (wn *WebhookNotifier) ID() string {
	return wn.id
}

// Type returns the notifier type.
func (wn *WebhookNotifier) Type() string {
	return "webhook"
}

// Notify sends the stats event to the webhook URL.
func (wn *WebhookNotifier) Notify(ctx context.Context, event rept.StatsEvent) error {
	jsonData, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wn.headers {
		req.Header.Set(k, v)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases the notifier's resources.
func (wn *WebhookNotifier) Close() error {
	wn.client.CloseIdleConnections()
	return nil
}
