package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the abstract metrics surface the resilience components emit into.
// Implementations must never block or fail the caller.
type Sink interface {
	IncrementCounter(name string, tags map[string]string)
	RecordHistogram(name string, value float64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) IncrementCounter(string, map[string]string)         {}
func (Noop) RecordHistogram(string, float64, map[string]string) {}
func (Noop) SetGauge(string, float64, map[string]string)        {}

// Prometheus implements Sink on top of client_golang, creating vectors
// lazily. The label set of a metric is fixed by its first emission; callers
// must use consistent tag keys per metric name.
type Prometheus struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheus creates a sink backed by the given registry. A nil registry
// gets its own.
func NewPrometheus(registry *prometheus.Registry) *Prometheus {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Prometheus{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// Registry exposes the backing registry for promhttp.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func tagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Prometheus) IncrementCounter(name string, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: name, Help: helpFor(name)},
			tagKeys(tags),
		)
		p.registry.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(tags)).Inc()
}

func (p *Prometheus) RecordHistogram(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Help: helpFor(name), Buckets: prometheus.DefBuckets},
			tagKeys(tags),
		)
		p.registry.MustRegister(vec)
		p.histograms[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(tags)).Observe(value)
}

func (p *Prometheus) SetGauge(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: name, Help: helpFor(name)},
			tagKeys(tags),
		)
		p.registry.MustRegister(vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()
	vec.With(prometheus.Labels(tags)).Set(value)
}

func helpFor(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// Memory records metrics in maps for tests and the in-process fallback.
type Memory struct {
	mu       sync.Mutex
	Counters map[string]float64
	Gauges   map[string]float64
	Samples  map[string][]float64
}

func NewMemory() *Memory {
	return &Memory{
		Counters: make(map[string]float64),
		Gauges:   make(map[string]float64),
		Samples:  make(map[string][]float64),
	}
}

func key(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := tagKeys(tags)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

func (m *Memory) IncrementCounter(name string, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[key(name, tags)]++
}

func (m *Memory) RecordHistogram(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(name, tags)
	m.Samples[k] = append(m.Samples[k], value)
}

func (m *Memory) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[key(name, tags)] = value
}

// Count returns the current value of a counter key, for assertions.
func (m *Memory) Count(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[key(name, tags)]
}
