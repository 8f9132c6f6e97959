package footballapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized       = errors.New("authentication failed, check API key")
	ErrNotFound           = errors.New("resource not found")
	ErrRateLimited        = errors.New("upstream quota exceeded")
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
	ErrNetwork            = errors.New("network error")
	ErrResponseTooLarge   = errors.New("response body too large")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string // abbreviated
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d: %s", e.URL, e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes to their sentinel.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// IsPermanent reports whether err should not be retried by a caller.
// Only quota errors and network failures are considered transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRateLimitExhausted) || errors.Is(err, ErrNetwork) {
		return false
	}
	return true
}
