package brevo

import (
	"errors"
	"fmt"
)

// ErrRateLimited indicates the shared rate budget was exhausted, either
// locally (limiter timeout) or remotely (HTTP 429 after the internal retry).
var ErrRateLimited = errors.New("brevo: rate limit exceeded")

// ErrNotFound indicates a 404 from the Brevo API.
var ErrNotFound = errors.New("brevo: not found")

// APIError is a non-2xx response from the Brevo API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("brevo: api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("brevo: api error %d: %s", e.Status, e.Message)
}

// Transient reports whether the call may succeed on retry (5xx).
// Connection-level failures are wrapped as *TransportError instead.
func (e *APIError) Transient() bool { return e.Status >= 500 }

// TransportError wraps a connection-level failure (DNS, dial, reset). These
// are always retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "brevo: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.Transient()
}

// IsPermanent reports whether err is a non-retryable API rejection
// (4xx other than 429).
func IsPermanent(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status >= 400 && ae.Status < 500 && ae.Status != 429
}
