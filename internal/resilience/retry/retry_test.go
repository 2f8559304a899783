package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
	"github.com/vietddude/vinspect/internal/resilience/classify"
)

// recordedSleeps swaps the executor's sleep for one that records delays
// without waiting.
func recordedSleeps(e *Executor) *[]time.Duration {
	var delays []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func TestDo_SuccessFirstTry(t *testing.T) {
	e := New(classify.Origin{Component: "test"}, DefaultOptions(), nil)
	calls := 0

	result, err := e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Errorf("result=%v calls=%d, want ok/1", result, calls)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	opts := Options{
		MaxRetries:        2,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
	e := New(classify.Origin{Component: "test"}, opts, nil)
	delays := recordedSleeps(e)

	calls := 0
	result, err := e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("connection refused")
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "recovered" || calls != 3 {
		t.Errorf("result=%v calls=%d, want recovered/3", result, calls)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*delays) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*delays), len(want))
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 5
	e := New(classify.Origin{Component: "test"}, opts, nil)
	recordedSleeps(e)

	calls := 0
	_, err := e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("validation failed on field vin")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}

	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *domain.ClassifiedError", err)
	}
	if ce.Category != domain.CategoryValidation {
		t.Errorf("category = %s, want validation", ce.Category)
	}
}

func TestDo_ExhaustionCarriesRetryMetadata(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 3
	e := New(classify.Origin{Component: "test"}, opts, nil)
	recordedSleeps(e)

	calls := 0
	_, err := e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("operation invoked %d times, want 4", calls)
	}

	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *domain.ClassifiedError", err)
	}
	if ce.Context.Metadata["retry_attempts"] != "3" {
		t.Errorf("retry_attempts = %q, want 3", ce.Context.Metadata["retry_attempts"])
	}
	if ce.Context.Metadata["final_attempt"] != "true" {
		t.Errorf("final_attempt = %q, want true", ce.Context.Metadata["final_attempt"])
	}
}

func TestDo_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 0
	e := New(classify.Origin{Component: "test"}, opts, nil)
	recordedSleeps(e)

	calls := 0
	_, err := e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestDo_CustomRetryableCategories(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 3
	opts.RetryableCategories = map[domain.ErrorCategory]bool{
		domain.CategoryExternalService: true,
	}
	e := New(classify.Origin{Component: "test"}, opts, nil)
	recordedSleeps(e)

	// Network is retryable by default but excluded here.
	calls := 0
	_, _ = e.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	opts := Options{
		MaxRetries:        5,
		BaseDelay:         10 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
	e := New(classify.Origin{Component: "test"}, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := e.Do(ctx, func(ctx context.Context) (any, error) {
			calls++
			return nil, errors.New("connection refused")
		})
		done <- err
	}()

	// Let the first attempt fail and enter the backoff wait.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled in chain", err)
		}
		if calls != 1 {
			t.Errorf("operation invoked %d times, want 1", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDelay_Formula(t *testing.T) {
	opts := Options{
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // clamped
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Delay(tt.attempt, opts); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	opts := Options{
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	for attempt := 0; attempt < 8; attempt++ {
		base := Delay(attempt, Options{
			BaseDelay:         opts.BaseDelay,
			MaxDelay:          opts.MaxDelay,
			BackoffMultiplier: opts.BackoffMultiplier,
		})
		lo := time.Duration(float64(base) * 0.75)
		hi := time.Duration(float64(base) * 1.25)

		for i := 0; i < 200; i++ {
			d := Delay(attempt, opts)
			if d < lo || d > hi {
				t.Fatalf("Delay(%d) = %v outside [%v, %v]", attempt, d, lo, hi)
			}
			if d < 0 {
				t.Fatalf("Delay(%d) = %v is negative", attempt, d)
			}
		}
	}
}

// Capped delays must never exceed MaxDelay * 1.25 even with jitter.
func TestDelay_JitterNeverExceedsCapBy25Percent(t *testing.T) {
	opts := Options{
		BaseDelay:         time.Second,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 10.0,
		Jitter:            true,
	}
	limit := time.Duration(float64(opts.MaxDelay) * 1.25)

	for i := 0; i < 500; i++ {
		if d := Delay(6, opts); d > limit {
			t.Fatalf("Delay = %v exceeds %v", d, limit)
		}
	}
}
