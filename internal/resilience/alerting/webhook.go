package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/classify"
	"github.com/vietddude/vinspect/internal/resilience/retry"
)

// WebhookChannel posts alerts to a chat webhook (Slack-compatible payload).
// Delivery is retried with the same executor the rest of the subsystem uses.
type WebhookChannel struct {
	name       string
	url        string
	httpClient *http.Client
	exec       *retry.Executor
}

// NewWebhookChannel creates a chat webhook channel.
func NewWebhookChannel(name, url string) *WebhookChannel {
	opts := retry.Options{
		MaxRetries:        2,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
	return &WebhookChannel{
		name: name,
		url:  url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		exec: retry.New(classify.Origin{Component: "alert-webhook"}, opts, nil),
	}
}

func (c *WebhookChannel) Name() string      { return c.name }
func (c *WebhookChannel) Kind() ChannelKind { return KindChat }

// Send posts the alert as a JSON message.
func (c *WebhookChannel) Send(ctx context.Context, alert domain.Alert) error {
	payload := map[string]any{
		"text": fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Type, alert.Message),
		"attachments": []map[string]any{
			{
				"fingerprint": alert.Fingerprint,
				"metadata":    alert.Metadata,
				"created_at":  alert.CreatedAt.Format(time.RFC3339),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	_, err = c.exec.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, c.post(ctx, body)
	})
	return err
}

func (c *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &domain.HTTPError{Provider: c.name, Status: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
