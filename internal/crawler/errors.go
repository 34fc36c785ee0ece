package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a fetch that failed or returned a non-success status.
	ErrTransport = errors.New("transport error")
	// ErrMalformedPayload marks a body that does not match the expected schema.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrQueueClosed is returned by queues after Close.
	ErrQueueClosed = errors.New("queue closed")
)

// StatusError reports a non-success HTTP status from the fetcher.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap lets callers match StatusError with errors.Is(err, ErrTransport).
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// IsDropCause reports whether err should be treated as a product/category drop
// rather than a run-level cancellation.
func IsDropCause(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformedPayload)
}
