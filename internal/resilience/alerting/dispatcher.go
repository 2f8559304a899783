package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
)

// ChannelKind selects which alerts a channel receives.
type ChannelKind string

const (
	KindChat  ChannelKind = "chat"
	KindPager ChannelKind = "pager"
	KindEmail ChannelKind = "email"
)

// Channel delivers an alert to one destination.
type Channel interface {
	Name() string
	Kind() ChannelKind
	Send(ctx context.Context, alert domain.Alert) error
}

// Dispatcher fans alerts out to channels without blocking the caller.
// Alerts go onto a bounded queue drained by a single worker; each channel
// delivery runs in its own goroutine with its error logged and swallowed.
type Dispatcher struct {
	channels    []Channel
	sink        metrics.Sink
	queue       chan domain.Alert
	sendTimeout time.Duration

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(channels []Channel, sink metrics.Sink) *Dispatcher {
	if sink == nil {
		sink = metrics.Noop{}
	}
	d := &Dispatcher{
		channels:    channels,
		sink:        sink,
		queue:       make(chan domain.Alert, 256),
		sendTimeout: 10 * time.Second,
		done:        make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues an alert. It never blocks; when the queue is full the
// alert is dropped and the drop is logged.
func (d *Dispatcher) Dispatch(alert domain.Alert) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}

	select {
	case d.queue <- alert:
	default:
		d.sink.IncrementCounter("resilience_alerts_dropped_total", map[string]string{
			"type": string(alert.Type),
		})
		slog.Warn("alert queue full, dropping alert", "type", alert.Type)
	}
}

// Stop drains the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case alert := <-d.queue:
			d.deliver(alert)
		case <-d.done:
			// Drain whatever is already queued.
			for {
				select {
				case alert := <-d.queue:
					d.deliver(alert)
				default:
					return
				}
			}
		}
	}
}

// deliver fans one alert out to all matching channels in parallel and waits
// for them; a channel failure never affects its siblings.
func (d *Dispatcher) deliver(alert domain.Alert) {
	kinds := kindsFor(alert.Severity)

	var wg sync.WaitGroup
	for _, ch := range d.channels {
		if !kinds[ch.Kind()] {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
			defer cancel()

			if err := ch.Send(ctx, alert); err != nil {
				d.sink.IncrementCounter("resilience_alert_deliveries_total", map[string]string{
					"channel": ch.Name(), "result": "failure",
				})
				slog.Error("alert delivery failed",
					"channel", ch.Name(), "type", alert.Type, "error", err)
				return
			}
			d.sink.IncrementCounter("resilience_alert_deliveries_total", map[string]string{
				"channel": ch.Name(), "result": "success",
			})
		}(ch)
	}
	wg.Wait()
}

// kindsFor implements the severity routing table: critical pages, high mails,
// everything reaches chat.
func kindsFor(sev domain.Severity) map[ChannelKind]bool {
	switch sev {
	case domain.SeverityCritical:
		return map[ChannelKind]bool{KindChat: true, KindPager: true, KindEmail: true}
	case domain.SeverityHigh:
		return map[ChannelKind]bool{KindChat: true, KindEmail: true}
	default:
		return map[ChannelKind]bool{KindChat: true}
	}
}
