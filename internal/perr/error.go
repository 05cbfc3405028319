// Package perr defines the pricing service's error-kind taxonomy. The rule
// from spec.md is load-bearing: the only caller-visible non-quote outcome
// is Kind == Input. Every other kind is something the pricing pipeline
// catches internally and degrades a quote for, never an HTTP error.
//
// Adapted from the teacher's IAROSError/ErrorType (common/utils/
// ErrorHandling.go), narrowed to the kinds spec.md §5 actually names.
package perr

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind is one of the error categories spec.md §5 defines.
type Kind string

const (
	Input                  Kind = "INPUT"
	UpstreamMissing        Kind = "UPSTREAM_MISSING"
	UpstreamTransient      Kind = "UPSTREAM_TRANSIENT"
	ModelUnavailable       Kind = "MODEL_UNAVAILABLE"
	ScoringInternal        Kind = "SCORING_INTERNAL"
	OutcomesStoreError     Kind = "OUTCOMES_STORE_ERROR"
	RetrainError           Kind = "RETRAIN_ERROR"
	ExperimentMisconfig    Kind = "EXPERIMENT_MISCONFIG"
)

// Error is the pricing service's standard error value.
type Error struct {
	ID        string
	Kind      Kind
	Operation string
	Message   string
	Cause     error
	Timestamp time.Time
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, operation, message string, cause error) *Error {
	return &Error{
		ID:        uuid.New().String(),
		Kind:      kind,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Retryable: kind == UpstreamTransient,
	}
}

// IsInput reports whether err is an Input-kind Error — the only kind that
// should ever surface as a non-200 HTTP response.
func IsInput(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == Input
}

// HTTPStatus maps a Kind to the status code used when it is surfaced at
// all (only Input is normally surfaced; this is also used by admin/debug
// endpoints that report errors directly).
func (k Kind) HTTPStatus() int {
	switch k {
	case Input:
		return http.StatusBadRequest
	case UpstreamMissing:
		return http.StatusNotFound
	case UpstreamTransient:
		return http.StatusServiceUnavailable
	case ModelUnavailable:
		return http.StatusServiceUnavailable
	case ExperimentMisconfig:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Log records err on logger with kind-appropriate severity.
func Log(logger *zap.Logger, err *Error) {
	fields := []zap.Field{
		zap.String("error_id", err.ID),
		zap.String("error_kind", string(err.Kind)),
		zap.String("operation", err.Operation),
		zap.Bool("retryable", err.Retryable),
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	switch err.Kind {
	case Input, UpstreamMissing:
		logger.Warn(err.Message, fields...)
	case ScoringInternal, OutcomesStoreError, RetrainError:
		logger.Error(err.Message, fields...)
	default:
		logger.Info(err.Message, fields...)
	}
}
