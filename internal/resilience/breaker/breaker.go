package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/classify"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
	"github.com/vietddude/vinspect/internal/resilience/retry"
)

// State is the breaker state machine position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is wrapped by the classified error returned when a call is
// rejected. Callers can detect rejection with errors.Is.
var ErrOpen = errors.New("circuit breaker open")

// Config defines breaker thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenProbes   int
	Retry            retry.Options
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
		HalfOpenProbes:   1,
		Retry:            retry.DefaultOptions(),
	}
}

// Snapshot is a point-in-time view of a breaker for health reporting.
type Snapshot struct {
	Name                 string    `json:"name"`
	State                State     `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailureTime      time.Time `json:"last_failure_time,omitempty"`
}

// Breaker gates calls to one unreliable dependency. State transitions happen
// in short critical sections; the wrapped operation runs outside the lock.
type Breaker struct {
	name string
	cfg  Config
	exec *retry.Executor
	sink metrics.Sink

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	halfOpenInflight     int

	now func() time.Time
}

// New creates a breaker for the named dependency.
func New(name string, cfg Config, exec *retry.Executor, sink metrics.Sink) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		exec:  exec,
		sink:  sink,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs op through the breaker, delegating to the retry executor when
// the call is permitted. A non-nil fallback fully replaces any failure
// outcome; fallback results never touch the breaker's counters.
func (b *Breaker) Execute(ctx context.Context, op retry.Operation, fallback retry.Operation) (any, error) {
	allowed, probe, retryAfter := b.allow()
	if !allowed {
		b.event("rejection", nil)
		if fallback != nil {
			return fallback(ctx)
		}
		return nil, b.openError(retryAfter)
	}

	result, err := b.exec.Do(ctx, op)
	if err != nil {
		b.onFailure(probe)
		b.event("failure", nil)
		if fallback != nil {
			return fallback(ctx)
		}
		return nil, err
	}

	b.onSuccess(probe)
	b.event("success", nil)
	return result, nil
}

// allow decides whether a call may start. It returns whether the call is a
// half-open probe and, when rejected, how long until the next probe window.
func (b *Breaker) allow() (allowed, probe bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := b.now().Sub(b.lastFailureTime)
		if elapsed < b.cfg.Timeout {
			return false, false, b.cfg.Timeout - elapsed
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.halfOpenInflight >= b.cfg.HalfOpenProbes {
			return false, false, 0
		}
		b.halfOpenInflight++
		return true, true, 0
	}

	return true, false, 0
}

func (b *Breaker) onSuccess(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe && b.halfOpenInflight > 0 {
		b.halfOpenInflight--
	}

	switch b.state {
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) onFailure(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe && b.halfOpenInflight > 0 {
		b.halfOpenInflight--
	}

	switch b.state {
	case StateHalfOpen:
		// Any failure while probing reopens immediately.
		b.lastFailureTime = b.now()
		b.transition(StateOpen)
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.lastFailureTime = b.now()
			b.transition(StateOpen)
		}
	case StateOpen:
		// A late failure from a call admitted before the transition.
		b.lastFailureTime = b.now()
	}
}

// transition moves the state machine and resets counters. Caller holds the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
	case StateHalfOpen:
		b.consecutiveSuccesses = 0
		b.halfOpenInflight = 0
	case StateOpen:
		b.halfOpenInflight = 0
	}

	b.sink.IncrementCounter("resilience_breaker_transitions_total", map[string]string{
		"dependency": b.name,
		"from":       string(from),
		"to":         string(to),
	})
	b.sink.SetGauge("resilience_breaker_state", stateValue(to), map[string]string{
		"dependency": b.name,
	})
}

// event emits a fire-and-forget counter for an execution outcome.
func (b *Breaker) event(result string, extra map[string]string) {
	tags := map[string]string{"dependency": b.name, "result": result}
	for k, v := range extra {
		tags[k] = v
	}
	b.sink.IncrementCounter("resilience_breaker_executions_total", tags)
}

func (b *Breaker) openError(retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	msg := fmt.Sprintf("circuit breaker open for %s", b.name)
	return &domain.ClassifiedError{
		Category:         domain.CategorySystem,
		Severity:         domain.SeverityHigh,
		Message:          msg,
		Fingerprint:      classify.Fingerprint(domain.CategorySystem, msg, b.name),
		Retryable:        false,
		ExpectedRecovery: retryAfter.Round(time.Second),
		Context:          domain.NewErrorContext(b.name, ""),
		Cause:            ErrOpen,
	}
}

func stateValue(s State) float64 {
	switch s {
	case StateOpen:
		return 2
	case StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's counters for health reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:                 b.name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailureTime:      b.lastFailureTime,
	}
}
