package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemory_Counters(t *testing.T) {
	m := NewMemory()
	tags := map[string]string{"dependency": "database"}

	m.IncrementCounter("executions", tags)
	m.IncrementCounter("executions", tags)
	m.IncrementCounter("executions", map[string]string{"dependency": "cache"})

	if got := m.Count("executions", tags); got != 2 {
		t.Errorf("Count = %v, want 2", got)
	}
	if got := m.Count("executions", map[string]string{"dependency": "cache"}); got != 1 {
		t.Errorf("Count = %v, want 1", got)
	}
	if got := m.Count("missing", nil); got != 0 {
		t.Errorf("Count(missing) = %v, want 0", got)
	}
}

func TestMemory_KeyIsTagOrderIndependent(t *testing.T) {
	m := NewMemory()
	m.IncrementCounter("c", map[string]string{"a": "1", "b": "2"})
	m.IncrementCounter("c", map[string]string{"b": "2", "a": "1"})

	if got := m.Count("c", map[string]string{"a": "1", "b": "2"}); got != 2 {
		t.Errorf("Count = %v, want 2 (tag order should not matter)", got)
	}
}

func TestMemory_GaugesAndHistograms(t *testing.T) {
	m := NewMemory()
	m.SetGauge("state", 2, map[string]string{"dependency": "database"})
	m.SetGauge("state", 0, map[string]string{"dependency": "database"})
	m.RecordHistogram("latency", 0.5, nil)
	m.RecordHistogram("latency", 1.5, nil)

	if got := m.Gauges[key("state", map[string]string{"dependency": "database"})]; got != 0 {
		t.Errorf("gauge = %v, want last written value 0", got)
	}
	if got := len(m.Samples["latency"]); got != 2 {
		t.Errorf("got %d samples, want 2", got)
	}
}

func TestPrometheus_CounterRegistersAndIncrements(t *testing.T) {
	p := NewPrometheus(nil)
	tags := map[string]string{"dependency": "database", "result": "failure"}

	p.IncrementCounter("resilience_test_total", tags)
	p.IncrementCounter("resilience_test_total", tags)

	mfs, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 1 {
		t.Fatalf("got %d metric families, want 1", len(mfs))
	}
	if got := testutil.ToFloat64(p.counters["resilience_test_total"].With(tags)); got != 2 {
		t.Errorf("counter = %v, want 2", got)
	}
}

func TestPrometheus_GaugeSetsLastValue(t *testing.T) {
	p := NewPrometheus(nil)
	tags := map[string]string{"dependency": "cache"}

	p.SetGauge("resilience_state", 2, tags)
	p.SetGauge("resilience_state", 1, tags)

	if got := testutil.ToFloat64(p.gauges["resilience_state"].With(tags)); got != 1 {
		t.Errorf("gauge = %v, want 1", got)
	}
}
