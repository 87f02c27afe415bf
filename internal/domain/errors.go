package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation  = errors.New("invalid request")
	ErrCapacity    = errors.New("generation queue is full")
	ErrAggregation = errors.New("aggregation invariant violated")
)

// Machine codes carried by ServiceError.
const (
	CodeValidation        = "validation"
	CodeTimeout           = "timeout"
	CodeCircuitOpen       = "circuit_open"
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "unavailable"
	CodeBadResponse       = "bad_response"
	CodeRejected          = "rejected"
	CodeContractViolation = "contract_violation"
	CodeStorage           = "storage_failed"
	CodeCanceled          = "canceled"
	CodeInternal          = "internal"
)

// ValidationError reports a missing or malformed request field. It is never
// retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ServiceError is an adapter-level failure attributed to one stage.
type ServiceError struct {
	Adapter   string    `json:"adapter"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ServiceError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %s (%s)", e.Adapter, e.Message, e.Code)
	}
	return fmt.Sprintf("%s/%s: %s (%s)", e.Stage, e.Adapter, e.Message, e.Code)
}

// NewServiceError stamps a ServiceError with the current time.
func NewServiceError(adapter, code, message string, retryable bool) *ServiceError {
	return &ServiceError{
		Adapter:   adapter,
		Message:   message,
		Code:      code,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError builds the non-retryable error recorded when the workflow
// budget runs out before a stage completes.
func NewTimeoutError(adapter, stage string) *ServiceError {
	err := NewServiceError(adapter, CodeTimeout, "generation budget exhausted before the stage completed", false)
	err.Stage = stage
	return err
}

// WithStage returns a copy of the error attributed to stage.
func (e *ServiceError) WithStage(stage string) *ServiceError {
	cp := *e
	cp.Stage = stage
	return &cp
}

// IsTimeout reports whether the error is a budget timeout.
func (e *ServiceError) IsTimeout() bool {
	return e != nil && e.Code == CodeTimeout && !e.Retryable
}

// AsServiceError extracts a *ServiceError from err's chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// AggregationError signals that the aggregator received outcomes that the
// state machine should never produce.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation: " + e.Reason
}

func (e *AggregationError) Unwrap() error { return ErrAggregation }
