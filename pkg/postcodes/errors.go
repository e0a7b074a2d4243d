package postcodes

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when a response body is not valid JSON.
	ErrMalformedResponse = errors.New("postcodes: malformed response")
	// ErrTooManyRedirects is returned once a call exceeds the configured redirect hop limit.
	ErrTooManyRedirects = errors.New("postcodes: too many redirects")
	// ErrInvalidArguments is returned synchronously, before any request is issued.
	ErrInvalidArguments = errors.New("postcodes: invalid arguments")
	// ErrInvalidConfiguration is returned by the constructors.
	ErrInvalidConfiguration = errors.New("postcodes: invalid configuration")
	// ErrTransport matches every *TransportError via errors.Is.
	ErrTransport = errors.New("postcodes: transport error")
)

// APIError is an upstream error envelope returned with a non-2xx, non-404, non-3xx status.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postcodes: api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("postcodes: api error (status %d): %s", e.StatusCode, e.Message)
}

// TransportError wraps a network-level failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("postcodes: transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusCode extracts the HTTP status from an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
