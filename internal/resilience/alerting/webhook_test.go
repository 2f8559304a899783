package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
)

func testAlert() domain.Alert {
	return domain.Alert{
		Type:        domain.AlertErrorSpike,
		Severity:    domain.SeverityHigh,
		Message:     "error spike detected",
		Fingerprint: "abc123",
		Metadata:    map[string]string{"category": "network"},
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookChannel_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("slack", srv.URL)
	if err := ch.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	text, _ := got["text"].(string)
	if !strings.Contains(text, "error spike detected") {
		t.Errorf("payload text %q missing alert message", text)
	}
	if !strings.Contains(text, "high") {
		t.Errorf("payload text %q missing severity", text)
	}
}

func TestWebhookChannel_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("slack", srv.URL)
	if err := ch.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestWebhookChannel_GivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("slack", srv.URL)
	err := ch.Send(context.Background(), testAlert())
	if err == nil {
		t.Fatal("expected error")
	}
	// 4xx classifies as validation, which is not retryable.
	if n := calls.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestPagerChannel_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewPagerChannel("pagerduty", srv.URL, "rk-123")
	if err := ch.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got["routing_key"] != "rk-123" {
		t.Errorf("routing_key = %v, want rk-123", got["routing_key"])
	}
	if got["event_action"] != "trigger" {
		t.Errorf("event_action = %v, want trigger", got["event_action"])
	}
	if got["dedup_key"] != "abc123" {
		t.Errorf("dedup_key = %v, want alert fingerprint", got["dedup_key"])
	}
}

func TestPagerChannel_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewPagerChannel("pagerduty", srv.URL, "rk-bad")
	err := ch.Send(context.Background(), testAlert())
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error is %T, want *domain.HTTPError", err)
	}
	if httpErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", httpErr.Status)
	}
}
