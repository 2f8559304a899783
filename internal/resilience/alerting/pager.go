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
)

// PagerChannel triggers incidents through an Events-API style paging
// endpoint. Only critical alerts are routed here by the dispatcher.
type PagerChannel struct {
	name       string
	url        string
	routingKey string
	httpClient *http.Client
}

// NewPagerChannel creates a paging channel.
func NewPagerChannel(name, url, routingKey string) *PagerChannel {
	return &PagerChannel{
		name:       name,
		url:        url,
		routingKey: routingKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *PagerChannel) Name() string      { return c.name }
func (c *PagerChannel) Kind() ChannelKind { return KindPager }

// Send triggers an incident for the alert.
func (c *PagerChannel) Send(ctx context.Context, alert domain.Alert) error {
	payload := map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    alert.Fingerprint,
		"payload": map[string]any{
			"summary":        alert.Message,
			"severity":       string(alert.Severity),
			"source":         "vinspect",
			"custom_details": alert.Metadata,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &domain.HTTPError{Provider: c.name, Status: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
