package catalog

import (
	"errors"
	"fmt"
)

// Sentinel kinds for catalog errors.
var (
	ErrInvalidURL = errors.New("invalid catalog url")
	ErrNetwork    = errors.New("catalog network error")
	ErrDecode     = errors.New("catalog decode error")
	ErrServer     = errors.New("catalog server error")
)

// StatusError carries the HTTP status of a non-2xx response.
// It matches ErrServer with errors.Is.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrServer, e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrServer }

// retryable reports whether another attempt may succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
