package servimed

import (
	"errors"
	"fmt"
	"net/http"
)

// Error definitions for the servimed package.
var (
	// ErrInvalidResponse is returned when an upstream body cannot be decoded
	// into the expected shape.
	ErrInvalidResponse = errors.New("invalid upstream response")

	// ErrRetriesExhausted is returned when every attempt of a retried call failed.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")
)

// StatusError is returned when an upstream answers with an unexpected status code.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsUnauthorized reports whether err carries a 401 from an upstream.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
