package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrResourceNotFound matches a 404 from the resource API.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrTransport matches network failures and every other non-2xx status.
	ErrTransport = errors.New("transport failure")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	// Body is the start of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrResourceNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrTransport:
		return e.StatusCode != http.StatusNotFound
	}
	return false
}

// TransportError is a request that produced no usable response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }
