// Package notify forwards created ledger entries to an automation webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"invoice-desk/internal/models"
)

// Payload is the webhook body: the validated entry plus the id of the page
// it became.
type Payload struct {
	EntryType  models.EntryType `json:"entryType"`
	PageID     string           `json:"pageId"`
	Properties models.Entry     `json:"properties"`
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded %d", e.StatusCode)
}

// Webhook posts payloads as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a Webhook. An empty url yields a webhook that logs and
// drops every payload.
func NewWebhook(url string, client *http.Client, logger *slog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{url: url, client: client, logger: logger}
}

// Enabled reports whether a URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Notify sends p. It makes a single attempt.
func (w *Webhook) Notify(ctx context.Context, p Payload) error {
	if !w.Enabled() {
		w.logger.Warn("webhook URL not configured, skipping notification", "page_id", p.PageID)
		return nil
	}

	bs, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
