package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every remote collaborator. Callers test with
// errors.Is; APIError unwraps to one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNetwork      = errors.New("network error")
	ErrUpstream     = errors.New("upstream error")
)

// APIError is a non-2xx response from a remote API
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Unwrap maps the status code onto the taxonomy
func (e *APIError) Unwrap() error {
	return StatusError(e.StatusCode)
}

// StatusError returns the sentinel for an HTTP status code
func StatusError(code int) error {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrValidation
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusTooManyRequests, code >= 500:
		return ErrNetwork
	default:
		return ErrUpstream
	}
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Validationf builds a local precondition error
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
