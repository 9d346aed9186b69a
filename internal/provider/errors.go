package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/resilience"
)

// Reason classifies an upstream failure.
type Reason string

const (
	ReasonUnauthorized Reason = "unauthorized"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonBadRequest   Reason = "bad_request"
	ReasonServerError  Reason = "server_error"
	ReasonTimeout      Reason = "timeout"
	ReasonCanceled     Reason = "canceled"
	ReasonTransport    Reason = "transport"
)

// UpstreamError is returned for any non-success HTTP status or network
// failure on the provider call. StatusCode is 0 when no response arrived.
type UpstreamError struct {
	Provider   model.ProviderKind
	StatusCode int
	Reason     Reason
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: %s (status %d): %v", e.Provider, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transient reports whether repeating the call could succeed.
func (e *UpstreamError) Transient() bool {
	switch {
	case e.StatusCode != 0:
		return resilience.IsTransientHTTPStatus(e.StatusCode)
	case e.Reason == ReasonCanceled:
		return false
	default:
		return e.Reason == ReasonTimeout || e.Reason == ReasonTransport
	}
}

// reasonForStatus maps an HTTP status onto a Reason.
func reasonForStatus(code int) Reason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonUnauthorized
	case code == http.StatusTooManyRequests:
		return ReasonRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ReasonTimeout
	case code >= 500:
		return ReasonServerError
	default:
		return ReasonBadRequest
	}
}

// upstreamError builds an UpstreamError from an HTTP status (0 if none) and
// the underlying error.
func upstreamError(kind model.ProviderKind, status int, err error) *UpstreamError {
	ue := &UpstreamError{Provider: kind, StatusCode: status, Err: err}
	if status != 0 {
		ue.Reason = reasonForStatus(status)
		return ue
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ue.Reason = ReasonTimeout
	case errors.Is(err, context.Canceled):
		ue.Reason = ReasonCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		ue.Reason = ReasonTimeout
	default:
		ue.Reason = ReasonTransport
	}
	return ue
}
