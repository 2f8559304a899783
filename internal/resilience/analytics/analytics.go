package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
)

// AlertSink receives triggered alerts. Dispatch must not block; failures on
// the sink side are its own problem and never re-enter the pipeline.
type AlertSink interface {
	Dispatch(alert domain.Alert)
}

// Config defines alert rule thresholds.
type Config struct {
	SpikeThreshold   int
	SpikeWindow      time.Duration
	RateThreshold    float64
	RateWindow       time.Duration
	RateMinAttempts  int
	RateCooldown     time.Duration
	PatternRetention time.Duration
}

// DefaultConfig provides the documented rule defaults.
func DefaultConfig() Config {
	return Config{
		SpikeThreshold:   10,
		SpikeWindow:      60 * time.Second,
		RateThreshold:    0.05,
		RateWindow:       5 * time.Minute,
		RateMinAttempts:  100,
		RateCooldown:     5 * time.Minute,
		PatternRetention: 24 * time.Hour,
	}
}

// pattern is the rolling occurrence window for one fingerprint.
type pattern struct {
	fingerprint    string
	category       domain.ErrorCategory
	severity       domain.Severity
	message        string
	occurrences    []time.Time
	spikeAlertedAt time.Time
}

// PatternSummary is the read-only view exposed to health reporting.
type PatternSummary struct {
	Fingerprint string               `json:"fingerprint"`
	Category    domain.ErrorCategory `json:"category"`
	Severity    domain.Severity      `json:"severity"`
	Message     string               `json:"message"`
	Count24h    int                  `json:"count_24h"`
	LastSeen    time.Time            `json:"last_seen"`
}

// Engine consumes every classified error, maintains per-fingerprint rolling
// histories, and evaluates alert rules. All work is bounded and in-memory;
// nothing here performs network I/O in the calling path.
type Engine struct {
	cfg   Config
	sink  metrics.Sink
	alert AlertSink

	mu       sync.Mutex
	patterns map[string]*pattern
	attempts []time.Time
	errs     []time.Time
	lastRate time.Time

	now func() time.Time
}

// NewEngine creates an engine. alert may be nil, in which case rules still
// evaluate (for metrics) but nothing is dispatched.
func NewEngine(cfg Config, sink metrics.Sink, alert AlertSink) *Engine {
	if cfg.SpikeThreshold <= 0 {
		cfg.SpikeThreshold = 10
	}
	if cfg.SpikeWindow <= 0 {
		cfg.SpikeWindow = 60 * time.Second
	}
	if cfg.RateThreshold <= 0 {
		cfg.RateThreshold = 0.05
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 5 * time.Minute
	}
	if cfg.RateMinAttempts <= 0 {
		cfg.RateMinAttempts = 100
	}
	if cfg.RateCooldown <= 0 {
		cfg.RateCooldown = cfg.RateWindow
	}
	if cfg.PatternRetention <= 0 {
		cfg.PatternRetention = 24 * time.Hour
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Engine{
		cfg:      cfg,
		sink:     sink,
		alert:    alert,
		patterns: make(map[string]*pattern),
		now:      time.Now,
	}
}

// RecordAttempt counts one operation attempt toward the system-wide error
// rate denominator.
func (e *Engine) RecordAttempt() {
	e.mu.Lock()
	now := e.now()
	e.attempts = append(e.attempts, now)
	e.attempts = pruneBefore(e.attempts, now.Add(-e.cfg.RateWindow))
	e.mu.Unlock()
}

// RecordError ingests a classified error and evaluates the alert rules.
// Alerts are collected under the lock and dispatched after it is released.
func (e *Engine) RecordError(ce *domain.ClassifiedError) {
	if ce == nil {
		return
	}

	e.sink.IncrementCounter("resilience_errors_total", map[string]string{
		"category": string(ce.Category),
		"severity": string(ce.Severity),
	})

	e.mu.Lock()
	now := e.now()

	p, ok := e.patterns[ce.Fingerprint]
	if !ok {
		p = &pattern{
			fingerprint: ce.Fingerprint,
			category:    ce.Category,
			severity:    ce.Severity,
			message:     ce.Message,
		}
		e.patterns[ce.Fingerprint] = p
	}
	p.occurrences = append(p.occurrences, now)
	p.occurrences = pruneBefore(p.occurrences, now.Add(-e.cfg.PatternRetention))

	e.errs = append(e.errs, now)
	e.errs = pruneBefore(e.errs, now.Add(-e.cfg.RateWindow))
	e.attempts = pruneBefore(e.attempts, now.Add(-e.cfg.RateWindow))

	alerts := e.evaluate(p, ce, now)
	e.mu.Unlock()

	for _, a := range alerts {
		e.sink.IncrementCounter("resilience_alerts_total", map[string]string{
			"type": string(a.Type),
		})
		if e.alert != nil {
			e.alert.Dispatch(a)
		}
	}
}

// evaluate runs the three alert rules. Caller holds the lock.
func (e *Engine) evaluate(p *pattern, ce *domain.ClassifiedError, now time.Time) []domain.Alert {
	var alerts []domain.Alert

	// Spike: one alert per window crossing, not one per occurrence.
	recent := countSince(p.occurrences, now.Add(-e.cfg.SpikeWindow))
	if recent >= e.cfg.SpikeThreshold && now.Sub(p.spikeAlertedAt) >= e.cfg.SpikeWindow {
		p.spikeAlertedAt = now
		alerts = append(alerts, domain.Alert{
			Type:        domain.AlertErrorSpike,
			Severity:    domain.SeverityHigh,
			Message:     fmt.Sprintf("error spike: %d occurrences of %q in %s", recent, p.message, e.cfg.SpikeWindow),
			Fingerprint: p.fingerprint,
			Metadata: map[string]string{
				"category":    string(p.category),
				"occurrences": fmt.Sprintf("%d", recent),
			},
			CreatedAt: now,
		})
	}

	// Critical errors alert unconditionally, every occurrence.
	if ce.Severity == domain.SeverityCritical {
		alerts = append(alerts, domain.Alert{
			Type:        domain.AlertCriticalError,
			Severity:    domain.SeverityCritical,
			Message:     fmt.Sprintf("critical error in %s: %s", ce.Context.Component, ce.Message),
			Fingerprint: ce.Fingerprint,
			Metadata: map[string]string{
				"category":       string(ce.Category),
				"correlation_id": ce.Context.CorrelationID,
			},
			CreatedAt: now,
		})
	}

	// Elevated system-wide rate, gated on a minimum traffic floor.
	attempts := len(e.attempts)
	if attempts > e.cfg.RateMinAttempts {
		rate := float64(len(e.errs)) / float64(attempts)
		if rate >= e.cfg.RateThreshold && now.Sub(e.lastRate) >= e.cfg.RateCooldown {
			e.lastRate = now
			alerts = append(alerts, domain.Alert{
				Type:     domain.AlertHighErrorRate,
				Severity: domain.SeverityHigh,
				Message: fmt.Sprintf("error rate %.1f%% over last %s (%d/%d)",
					rate*100, e.cfg.RateWindow, len(e.errs), attempts),
				Metadata: map[string]string{
					"errors":   fmt.Sprintf("%d", len(e.errs)),
					"attempts": fmt.Sprintf("%d", attempts),
				},
				CreatedAt: now,
			})
		}
	}

	return alerts
}

// Summaries returns the active patterns, most recent first.
func (e *Engine) Summaries() []PatternSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]PatternSummary, 0, len(e.patterns))
	for _, p := range e.patterns {
		occ := pruneBefore(p.occurrences, now.Add(-e.cfg.PatternRetention))
		if len(occ) == 0 {
			continue
		}
		out = append(out, PatternSummary{
			Fingerprint: p.fingerprint,
			Category:    p.category,
			Severity:    p.severity,
			Message:     p.message,
			Count24h:    len(occ),
			LastSeen:    occ[len(occ)-1],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	// Timestamps are appended in order, so find the first one to keep.
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}

func countSince(ts []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(ts) - 1; i >= 0; i-- {
		if !ts[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}
