package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/classify"
)

// Operation is any fallible call the executor can run. Operations must be
// idempotent when MaxRetries > 0; callers wrapping non-idempotent work set
// MaxRetries to 0.
type Operation func(ctx context.Context) (any, error)

// Monitor receives attempt and failure signals for analytics. Implementations
// must be non-blocking.
type Monitor interface {
	RecordAttempt()
	RecordError(ce *domain.ClassifiedError)
}

// Options defines retry behavior.
type Options struct {
	MaxRetries          int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	BackoffMultiplier   float64
	Jitter              bool
	RetryableCategories map[domain.ErrorCategory]bool
}

// DefaultOptions provides sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// retryable reports whether the classified error is eligible for another
// attempt under these options.
func (o Options) retryable(ce *domain.ClassifiedError) bool {
	if o.RetryableCategories != nil {
		return o.RetryableCategories[ce.Category]
	}
	return ce.Retryable
}

// Executor runs operations with exponential backoff.
type Executor struct {
	origin  classify.Origin
	opts    Options
	monitor Monitor

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor for the given origin. monitor may be nil.
func New(origin classify.Origin, opts Options, monitor Monitor) *Executor {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = 2.0
	}
	return &Executor{
		origin:  origin,
		opts:    opts,
		monitor: monitor,
		sleep:   ctxSleep,
	}
}

// Do runs op, re-invoking it on retryable failures with exponential backoff.
// The returned error, if any, is always a *domain.ClassifiedError carrying
// retry metadata in its context.
func (e *Executor) Do(ctx context.Context, op Operation) (any, error) {
	var last *domain.ClassifiedError

	for attempt := 0; ; attempt++ {
		if e.monitor != nil {
			e.monitor.RecordAttempt()
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		ce := classify.Classify(err, e.origin)
		if e.monitor != nil {
			e.monitor.RecordError(ce)
		}
		last = ce

		if attempt == e.opts.MaxRetries || !e.opts.retryable(ce) {
			return nil, last.WithRetryInfo(attempt, true)
		}

		if err := e.sleep(ctx, Delay(attempt, e.opts)); err != nil {
			// Caller gave up while the backoff was pending.
			return nil, classify.Classify(err, e.origin).WithRetryInfo(attempt, true)
		}
	}
}

// Delay returns the backoff delay for the given attempt (0-indexed), with
// jitter applied when enabled. The result is never negative and never above
// MaxDelay * 1.25.
func Delay(attempt int, opts Options) time.Duration {
	delay := float64(opts.BaseDelay) * math.Pow(opts.BackoffMultiplier, float64(attempt))
	if delay > float64(opts.MaxDelay) {
		delay = float64(opts.MaxDelay)
	}
	if opts.Jitter {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// ctxSleep waits for d or until ctx is cancelled, whichever comes first.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
