package domain

import "time"

// AlertType identifies the rule that produced an alert.
type AlertType string

const (
	AlertErrorSpike    AlertType = "error_spike"
	AlertCriticalError AlertType = "critical_error"
	AlertHighErrorRate AlertType = "high_error_rate"
)

// Alert is an ephemeral notification produced by the analytics engine.
// It is never persisted by this subsystem.
type Alert struct {
	Type        AlertType         `json:"type"`
	Severity    Severity          `json:"severity"`
	Message     string            `json:"message"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
