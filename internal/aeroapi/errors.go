package aeroapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Domenick1991/flightstat/internal/domain"
)

// UpstreamError is a failed upstream call. Body holds the error body when it
// was valid JSON; otherwise Detail holds it as text. Transport failures carry
// Status 502 and the underlying Cause.
type UpstreamError struct {
	Kind   domain.EndpointKind
	Status int
	Body   json.RawMessage
	Detail string
	Cause  error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("aeroapi %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("aeroapi %s: status %d", e.Kind, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

func newStatusError(kind domain.EndpointKind, status int, body []byte) *UpstreamError {
	e := &UpstreamError{Kind: kind, Status: status}
	if len(body) > 0 && json.Valid(body) {
		e.Body = json.RawMessage(body)
	} else {
		e.Detail = string(body)
	}
	return e
}

func newTransportError(kind domain.EndpointKind, cause error) *UpstreamError {
	return &UpstreamError{
		Kind:   kind,
		Status: http.StatusBadGateway,
		Detail: cause.Error(),
		Cause:  cause,
	}
}
