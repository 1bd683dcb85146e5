package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidDataset is wrapped by validation errors about malformed datasets.
var ErrInvalidDataset = errors.New("invalid uploaded data")

// HTTPError is returned for any non-2xx response. Body is the raw response
// text; error payloads are opaque and never parsed.
type HTTPError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return e.Body
}

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}
