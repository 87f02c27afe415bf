// Package providers holds helpers shared by the external service adapters.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"studio/internal/domain"
)

// StatusError classifies a non-2xx upstream response. Throttling and server
// side failures are retryable; request problems are not.
func StatusError(adapter string, status int, body string) *domain.ServiceError {
	msg := fmt.Sprintf("upstream returned %d", status)
	if body = strings.TrimSpace(body); body != "" {
		msg += ": " + domain.Snippet(body)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewServiceError(adapter, domain.CodeRateLimited, msg, true)
	case status == http.StatusRequestTimeout || status >= 500:
		return domain.NewServiceError(adapter, domain.CodeUnavailable, msg, true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewServiceError(adapter, domain.CodeRejected, "credentials rejected: "+msg, false)
	case status >= 400:
		return domain.NewServiceError(adapter, domain.CodeRejected, msg, false)
	default:
		return domain.NewServiceError(adapter, domain.CodeBadResponse, msg, false)
	}
}

// TransportError classifies a failure to reach the upstream at all. Context
// errors are returned unchanged so the caller can tell cancellation apart
// from a network fault.
func TransportError(adapter string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewServiceError(adapter, domain.CodeUnavailable, err.Error(), true)
}

// BadResponse reports a reply that could not be used. Model output is not
// deterministic so another attempt may succeed.
func BadResponse(adapter, reason string) *domain.ServiceError {
	return domain.NewServiceError(adapter, domain.CodeBadResponse, reason, true)
}

// ContractViolation reports media that breaks the adapter contract in a way
// that cannot be repaired.
func ContractViolation(adapter, reason string) *domain.ServiceError {
	return domain.NewServiceError(adapter, domain.CodeContractViolation, reason, false)
}
