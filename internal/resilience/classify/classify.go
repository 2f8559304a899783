package classify

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/vinspect/internal/core/domain"
)

// Origin describes where a failure was raised.
type Origin struct {
	Component     string
	CorrelationID string
	Actor         string
	Tenant        string
	Metadata      map[string]string
}

// Classify normalizes any raised failure into a ClassifiedError. It never
// returns nil for a non-nil error and is deterministic for the same input:
// classification looks only at the error's discriminating signals (driver
// code, gRPC code, HTTP status, message patterns).
func Classify(err error, origin Origin) *domain.ClassifiedError {
	if err == nil {
		return nil
	}

	// Already classified errors pass through untouched.
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	category, severity := discriminate(err)

	ectx := domain.NewErrorContext(origin.Component, origin.CorrelationID)
	ectx.Actor = origin.Actor
	ectx.Tenant = origin.Tenant
	if len(origin.Metadata) > 0 {
		meta := make(map[string]string, len(origin.Metadata))
		for k, v := range origin.Metadata {
			meta[k] = v
		}
		ectx.Metadata = meta
	}

	msg := Scrub(err.Error())

	return &domain.ClassifiedError{
		Category:         category,
		Severity:         severity,
		Message:          msg,
		Fingerprint:      Fingerprint(category, msg, origin.Component),
		Retryable:        category.Retryable(),
		ExpectedRecovery: severity.RecoveryHint(),
		Context:          ectx,
		Cause:            err,
	}
}

func discriminate(err error) (domain.ErrorCategory, domain.Severity) {
	// Context outcomes first: a timeout is a network-shaped failure, a
	// cancellation is the caller giving up.
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CategoryNetwork, domain.SeverityMedium
	}
	if errors.Is(err, context.Canceled) {
		return domain.CategorySystem, domain.SeverityLow
	}

	// Postgres driver errors carry a SQLSTATE code.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CategoryBusinessLogic, domain.SeverityLow
	}

	// A cache miss surfaced as an error is not an infrastructure failure.
	if errors.Is(err, redis.Nil) {
		return domain.CategoryBusinessLogic, domain.SeverityLow
	}

	// gRPC-fronted collaborators.
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return classifyGRPCCode(s.Code())
	}

	// HTTP providers return a typed status error.
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return classifyHTTPStatus(httpErr.Status)
	}

	// Transport-level failures.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CategoryNetwork, domain.SeverityMedium
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return domain.CategoryNetwork, domain.SeverityHigh
	}

	return classifyMessage(err.Error())
}

func classifySQLState(code string) (domain.ErrorCategory, domain.Severity) {
	if len(code) < 2 {
		return domain.CategoryStorage, domain.SeverityHigh
	}
	switch code[:2] {
	case "08": // connection exception
		return domain.CategoryStorage, domain.SeverityHigh
	case "28": // invalid authorization specification
		return domain.CategoryAuthentication, domain.SeverityCritical
	case "23": // integrity constraint violation
		return domain.CategoryValidation, domain.SeverityMedium
	case "22": // data exception
		return domain.CategoryValidation, domain.SeverityMedium
	case "40": // transaction rollback (serialization failure, deadlock)
		return domain.CategoryStorage, domain.SeverityMedium
	case "42": // syntax error or access rule violation
		return domain.CategorySystem, domain.SeverityHigh
	case "53", "57", "58": // resources, operator intervention, system error
		return domain.CategoryStorage, domain.SeverityHigh
	default:
		return domain.CategoryStorage, domain.SeverityHigh
	}
}

func classifyGRPCCode(code codes.Code) (domain.ErrorCategory, domain.Severity) {
	switch code {
	case codes.Unavailable:
		return domain.CategoryExternalService, domain.SeverityHigh
	case codes.DeadlineExceeded:
		return domain.CategoryNetwork, domain.SeverityMedium
	case codes.ResourceExhausted:
		return domain.CategoryExternalService, domain.SeverityMedium
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return domain.CategoryValidation, domain.SeverityMedium
	case codes.Unauthenticated:
		return domain.CategoryAuthentication, domain.SeverityHigh
	case codes.PermissionDenied:
		return domain.CategoryAuthorization, domain.SeverityHigh
	case codes.NotFound, codes.AlreadyExists:
		return domain.CategoryBusinessLogic, domain.SeverityLow
	case codes.Aborted:
		return domain.CategoryExternalService, domain.SeverityMedium
	case codes.Unimplemented:
		return domain.CategorySystem, domain.SeverityHigh
	case codes.Canceled:
		return domain.CategorySystem, domain.SeverityLow
	default: // Unknown, Internal, DataLoss
		return domain.CategoryExternalService, domain.SeverityHigh
	}
}

func classifyHTTPStatus(code int) (domain.ErrorCategory, domain.Severity) {
	switch {
	case code == 401:
		return domain.CategoryAuthentication, domain.SeverityHigh
	case code == 403:
		return domain.CategoryAuthorization, domain.SeverityHigh
	case code == 404:
		return domain.CategoryBusinessLogic, domain.SeverityLow
	case code == 408:
		return domain.CategoryNetwork, domain.SeverityMedium
	case code == 429:
		return domain.CategoryExternalService, domain.SeverityMedium
	case code >= 400 && code < 500:
		return domain.CategoryValidation, domain.SeverityMedium
	case code >= 500:
		return domain.CategoryExternalService, domain.SeverityHigh
	default:
		return domain.CategorySystem, domain.SeverityHigh
	}
}

// messagePatterns maps lowercase substrings to a classification, checked in
// order. Patterns are the last resort after typed signals.
var messagePatterns = []struct {
	substr   string
	category domain.ErrorCategory
	severity domain.Severity
}{
	{"sql injection", domain.CategorySecurity, domain.SeverityCritical},
	{"suspicious request", domain.CategorySecurity, domain.SeverityCritical},
	{"csrf", domain.CategorySecurity, domain.SeverityHigh},
	{"connection refused", domain.CategoryNetwork, domain.SeverityHigh},
	{"connection reset", domain.CategoryNetwork, domain.SeverityHigh},
	{"broken pipe", domain.CategoryNetwork, domain.SeverityHigh},
	{"no such host", domain.CategoryNetwork, domain.SeverityHigh},
	{"i/o timeout", domain.CategoryNetwork, domain.SeverityMedium},
	{"timeout", domain.CategoryNetwork, domain.SeverityMedium},
	{"rate limit", domain.CategoryExternalService, domain.SeverityMedium},
	{"too many requests", domain.CategoryExternalService, domain.SeverityMedium},
	{"quota", domain.CategoryExternalService, domain.SeverityMedium},
	{"service unavailable", domain.CategoryExternalService, domain.SeverityHigh},
	{"token expired", domain.CategoryAuthentication, domain.SeverityHigh},
	{"invalid token", domain.CategoryAuthentication, domain.SeverityHigh},
	{"unauthorized", domain.CategoryAuthentication, domain.SeverityHigh},
	{"forbidden", domain.CategoryAuthorization, domain.SeverityHigh},
	{"permission denied", domain.CategoryAuthorization, domain.SeverityHigh},
	{"access denied", domain.CategoryAuthorization, domain.SeverityHigh},
	{"duplicate key", domain.CategoryValidation, domain.SeverityMedium},
	{"constraint", domain.CategoryValidation, domain.SeverityMedium},
	{"invalid input", domain.CategoryValidation, domain.SeverityMedium},
	{"validation failed", domain.CategoryValidation, domain.SeverityMedium},
}

func classifyMessage(msg string) (domain.ErrorCategory, domain.Severity) {
	lower := strings.ToLower(msg)
	for _, p := range messagePatterns {
		if strings.Contains(lower, p.substr) {
			return p.category, p.severity
		}
	}
	// Unrecognized failures are a system problem until proven otherwise.
	return domain.CategorySystem, domain.SeverityHigh
}
