package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrorCategory is the closed set of failure categories. Adding a category
// means updating the retryable table below and the classifier tables.
type ErrorCategory string

const (
	CategoryNetwork         ErrorCategory = "network"
	CategoryValidation      ErrorCategory = "validation"
	CategoryAuthentication  ErrorCategory = "authentication"
	CategoryAuthorization   ErrorCategory = "authorization"
	CategoryBusinessLogic   ErrorCategory = "business_logic"
	CategoryExternalService ErrorCategory = "external_service"
	CategoryStorage         ErrorCategory = "storage"
	CategorySystem          ErrorCategory = "system"
	CategorySecurity        ErrorCategory = "security"
)

// retryableByCategory is fixed, not configurable per call.
var retryableByCategory = map[ErrorCategory]bool{
	CategoryNetwork:         true,
	CategoryExternalService: true,
	CategoryStorage:         true,
}

// Retryable reports whether errors in this category are retryable by default.
func (c ErrorCategory) Retryable() bool {
	return retryableByCategory[c]
}

// Severity orders errors by required response urgency.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// Rank returns a numeric urgency, higher is more urgent.
func (s Severity) Rank() int {
	return severityRank[s]
}

var recoveryBySeverity = map[Severity]time.Duration{
	SeverityCritical: 5 * time.Minute,
	SeverityHigh:     2 * time.Minute,
	SeverityMedium:   time.Minute,
	SeverityLow:      30 * time.Second,
	SeverityInfo:     10 * time.Second,
}

// RecoveryHint returns the expected recovery time for the severity,
// used for Retry-After style signaling.
func (s Severity) RecoveryHint() time.Duration {
	return recoveryBySeverity[s]
}

// ErrorContext carries correlation data for a classified error.
// Treat as immutable once attached to a ClassifiedError.
type ErrorContext struct {
	CorrelationID string            `json:"correlation_id"`
	Component     string            `json:"component"`
	Actor         string            `json:"actor,omitempty"`
	Tenant        string            `json:"tenant,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewErrorContext builds a context for the given component, generating a
// correlation ID when none is supplied.
func NewErrorContext(component, correlationID string) ErrorContext {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return ErrorContext{
		CorrelationID: correlationID,
		Component:     component,
		Timestamp:     time.Now().UTC(),
	}
}

// ClassifiedError is the canonical failure representation. It is created by
// the classifier and read-only afterward.
type ClassifiedError struct {
	Category         ErrorCategory `json:"category"`
	Severity         Severity      `json:"severity"`
	Message          string        `json:"message"`
	Fingerprint      string        `json:"fingerprint"`
	Retryable        bool          `json:"retryable"`
	ExpectedRecovery time.Duration `json:"expected_recovery"`
	Context          ErrorContext  `json:"context"`
	Cause            error         `json:"-"`
}

func (e *ClassifiedError) Error() string {
	return string(e.Category) + ": " + e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// WithRetryInfo returns a copy of the error annotated with the number of
// retry attempts performed. The receiver is not modified.
func (e *ClassifiedError) WithRetryInfo(attempts int, final bool) *ClassifiedError {
	out := *e
	meta := make(map[string]string, len(e.Context.Metadata)+2)
	for k, v := range e.Context.Metadata {
		meta[k] = v
	}
	meta["retry_attempts"] = strconv.Itoa(attempts)
	if final {
		meta["final_attempt"] = "true"
	}
	out.Context.Metadata = meta
	return &out
}
