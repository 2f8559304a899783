package breaker

import (
	"sort"
	"sync"

	"github.com/vietddude/vinspect/internal/resilience/classify"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
	"github.com/vietddude/vinspect/internal/resilience/retry"
)

// Registry owns one breaker per dependency name. It is handed to callers by
// the application's startup code; there is no package-level instance.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	defaults  Config
	overrides map[string]Config
	sink      metrics.Sink
	monitor   retry.Monitor
}

// NewRegistry creates a registry with per-dependency config overrides.
// monitor may be nil.
func NewRegistry(defaults Config, overrides map[string]Config, sink metrics.Sink, monitor retry.Monitor) *Registry {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Registry{
		breakers:  make(map[string]*Breaker),
		defaults:  defaults,
		overrides: overrides,
		sink:      sink,
		monitor:   monitor,
	}
}

// Get returns the breaker for the named dependency, creating it on first
// reference.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg := r.defaults
	if override, ok := r.overrides[name]; ok {
		cfg = override
	}

	exec := retry.New(classify.Origin{Component: name}, cfg.Retry, r.monitor)
	b := New(name, cfg, exec, r.sink)
	r.breakers[name] = b
	return b
}

// Snapshots returns a stable-ordered view of all known breakers.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}
