package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// Webhook posts events as JSON to a URL
type Webhook struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// NewWebhook creates a webhook notifier
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
		delay:    time.Second,
	}
}

type webhookPayload struct {
	Type       string    `json:"type"`
	DownloadID string    `json:"download_id"`
	Target     string    `json:"target"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notify posts one event, retrying transport errors and 5xx replies
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(webhookPayload{
		Type:       event.Event,
		DownloadID: event.DownloadID,
		Target:     event.TargetKey,
		Message:    event.Message,
		Timestamp:  event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := w.client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()

			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("webhook returned %d", resp.StatusCode)
			case resp.StatusCode >= 300:
				return retry.Unrecoverable(fmt.Errorf("webhook returned %d", resp.StatusCode))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(w.attempts),
		retry.Delay(w.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
