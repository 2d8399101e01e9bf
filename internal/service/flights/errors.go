package flights

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/flightstat/internal/aeroapi"
	"github.com/Domenick1991/flightstat/internal/domain"
)

var (
	ErrMissingAirport     = errors.New("missing airport")
	ErrInvalidAirport     = errors.New("invalid airport code")
	ErrMissingCredentials = errors.New("missing upstream api key")
	ErrUnknownEndpoint    = errors.New("unknown upstream endpoint")
)

// WindowResult reports how one upstream window ended when the lookup failed.
type WindowResult struct {
	Endpoint domain.EndpointKind `json:"endpoint"`
	Status   int                 `json:"status"`
	Body     json.RawMessage     `json:"body,omitempty"`
	Detail   string              `json:"detail,omitempty"`
}

// LookupError is returned when at least one upstream window failed. Windows
// lists both windows, including the one that succeeded, and Status is the
// worse of the two HTTP statuses.
type LookupError struct {
	Status  int
	Windows []WindowResult
	errs    []error
}

func (e *LookupError) Error() string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("upstream lookup failed (status %d): %s", e.Status, strings.Join(msgs, "; "))
}

func (e *LookupError) Unwrap() []error {
	return e.errs
}

func newLookupError(kinds []domain.EndpointKind, errs []error) *LookupError {
	lerr := &LookupError{Windows: make([]WindowResult, 0, len(kinds))}
	for i, kind := range kinds {
		res := windowResult(kind, errs[i])
		if errs[i] != nil {
			lerr.errs = append(lerr.errs, errs[i])
		}
		lerr.Status = max(lerr.Status, res.Status)
		lerr.Windows = append(lerr.Windows, res)
	}
	return lerr
}

func windowResult(kind domain.EndpointKind, err error) WindowResult {
	if err == nil {
		return WindowResult{Endpoint: kind, Status: http.StatusOK}
	}

	var upErr *aeroapi.UpstreamError
	if errors.As(err, &upErr) {
		return WindowResult{Endpoint: kind, Status: upErr.Status, Body: upErr.Body, Detail: upErr.Detail}
	}
	return WindowResult{Endpoint: kind, Status: http.StatusBadGateway, Detail: err.Error()}
}
