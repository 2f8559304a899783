package health

import (
	"time"

	"github.com/vietddude/vinspect/internal/resilience/analytics"
	"github.com/vietddude/vinspect/internal/resilience/breaker"
)

// Status is the aggregate health of the guarded dependencies.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Report is the detailed health view.
type Report struct {
	Status       Status                     `json:"status"`
	Dependencies []breaker.Snapshot         `json:"dependencies"`
	Patterns     []analytics.PatternSummary `json:"patterns,omitempty"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// Monitor derives health from breaker state and error patterns.
type Monitor struct {
	registry *breaker.Registry
	engine   *analytics.Engine
}

// NewMonitor creates a health monitor. engine may be nil.
func NewMonitor(registry *breaker.Registry, engine *analytics.Engine) *Monitor {
	return &Monitor{registry: registry, engine: engine}
}

// Check builds a health report. Any open breaker degrades the service; when
// open breakers are the majority the service is critical.
func (m *Monitor) Check() Report {
	snaps := m.registry.Snapshots()

	open := 0
	for _, s := range snaps {
		if s.State == breaker.StateOpen {
			open++
		}
	}

	status := StatusHealthy
	if open > 0 {
		status = StatusDegraded
	}
	if len(snaps) > 0 && open*2 > len(snaps) {
		status = StatusCritical
	}

	report := Report{
		Status:       status,
		Dependencies: snaps,
		UpdatedAt:    time.Now().UTC(),
	}
	if m.engine != nil {
		report.Patterns = m.engine.Summaries()
	}
	return report
}
