package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
)

// fakeChannel records sends and can be told to fail.
type fakeChannel struct {
	name string
	kind ChannelKind
	fail bool

	mu    sync.Mutex
	sends []domain.Alert
}

func (f *fakeChannel) Name() string      { return f.name }
func (f *fakeChannel) Kind() ChannelKind { return f.kind }

func (f *fakeChannel) Send(ctx context.Context, alert domain.Alert) error {
	f.mu.Lock()
	f.sends = append(f.sends, alert)
	f.mu.Unlock()
	if f.fail {
		return errors.New("channel unavailable")
	}
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func alertWith(severity domain.Severity) domain.Alert {
	return domain.Alert{
		Type:      domain.AlertCriticalError,
		Severity:  severity,
		Message:   "something broke",
		CreatedAt: time.Now(),
	}
}

func TestDispatcher_SeverityRouting(t *testing.T) {
	tests := []struct {
		severity  domain.Severity
		wantChat  int
		wantPager int
		wantEmail int
	}{
		{domain.SeverityCritical, 1, 1, 1},
		{domain.SeverityHigh, 1, 0, 1},
		{domain.SeverityMedium, 1, 0, 0},
		{domain.SeverityLow, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			chat := &fakeChannel{name: "chat", kind: KindChat}
			pager := &fakeChannel{name: "pager", kind: KindPager}
			email := &fakeChannel{name: "email", kind: KindEmail}

			d := NewDispatcher([]Channel{chat, pager, email}, nil)
			d.Dispatch(alertWith(tt.severity))
			d.Stop()

			if chat.count() != tt.wantChat {
				t.Errorf("chat sends = %d, want %d", chat.count(), tt.wantChat)
			}
			if pager.count() != tt.wantPager {
				t.Errorf("pager sends = %d, want %d", pager.count(), tt.wantPager)
			}
			if email.count() != tt.wantEmail {
				t.Errorf("email sends = %d, want %d", email.count(), tt.wantEmail)
			}
		})
	}
}

func TestDispatcher_ChannelFailureIsolated(t *testing.T) {
	sink := metrics.NewMemory()
	broken := &fakeChannel{name: "broken", kind: KindChat, fail: true}
	healthy := &fakeChannel{name: "healthy", kind: KindChat}

	d := NewDispatcher([]Channel{broken, healthy}, sink)
	d.Dispatch(alertWith(domain.SeverityMedium))
	d.Stop()

	if healthy.count() != 1 {
		t.Errorf("healthy channel sends = %d, want 1", healthy.count())
	}
	if n := sink.Count("resilience_alert_deliveries_total", map[string]string{
		"channel": "broken", "result": "failure",
	}); n != 1 {
		t.Errorf("failure deliveries = %v, want 1", n)
	}
	if n := sink.Count("resilience_alert_deliveries_total", map[string]string{
		"channel": "healthy", "result": "success",
	}); n != 1 {
		t.Errorf("success deliveries = %v, want 1", n)
	}
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	chat := &fakeChannel{name: "chat", kind: KindChat}
	d := NewDispatcher([]Channel{chat}, nil)

	for i := 0; i < 10; i++ {
		d.Dispatch(alertWith(domain.SeverityMedium))
	}
	d.Stop()

	if chat.count() != 10 {
		t.Errorf("delivered %d alerts, want 10", chat.count())
	}
}

func TestDispatcher_DispatchAfterStopIsNoop(t *testing.T) {
	chat := &fakeChannel{name: "chat", kind: KindChat}
	d := NewDispatcher([]Channel{chat}, nil)
	d.Stop()

	d.Dispatch(alertWith(domain.SeverityMedium))
	if chat.count() != 0 {
		t.Errorf("delivered %d alerts after Stop, want 0", chat.count())
	}
}

func TestDispatcher_StopIdempotent(t *testing.T) {
	d := NewDispatcher(nil, nil)
	d.Stop()
	d.Stop()
}
