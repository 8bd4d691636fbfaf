package nomad

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError means the API could not be reached at all.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nomad: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError means the API answered with a non-success status.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	msg := strings.TrimSpace(string(e.Body))
	if msg == "" {
		msg = e.Status
	}
	return fmt.Sprintf("nomad: HTTP %d for %s %s: %s", e.StatusCode, e.Method, e.URL, msg)
}

// NotFound reports whether the API answered 404.
func (e *ResponseError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// NotAuthorizedError is a ResponseError with status 403.
type NotAuthorizedError struct {
	ResponseError
}

func (e *NotAuthorizedError) Error() string {
	return "nomad: not authorized: " + e.ResponseError.Error()
}

// IsNotAuthorized reports whether err carries a 403 from the API.
func IsNotAuthorized(err error) bool {
	var nae *NotAuthorizedError
	return errors.As(err, &nae)
}

// IsTransport reports whether err means the API was unreachable.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsNotFound reports whether err carries a 404 from the API.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.NotFound()
}

// AsResponseError extracts the status-mapped error, including the 403 case.
func AsResponseError(err error) (*ResponseError, bool) {
	var nae *NotAuthorizedError
	if errors.As(err, &nae) {
		return &nae.ResponseError, true
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// EndpointError means the client was built with an unusable endpoint.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("nomad: invalid endpoint %q: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }
