package shipstation

import (
	"errors"
	"fmt"
)

// APIError is an application-level error returned by the ShipStation API
// as a JSON object with a "message" field. The endpoint responded, but
// refused the request (bad credentials, malformed address, and so on).
// Callers treat it as "no results", not as a transport failure.
type APIError struct {
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("shipstation api: %s", e.Message)
}

// TransportError is a network or HTTP-level failure: connection refused,
// timeout, or a non-2xx status without a parseable message body. These
// propagate to the caller; no retry happens at this layer.
type TransportError struct {
	Op         string // "list carriers", "list services", "get rates"
	StatusCode int    // zero when the request never completed
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("shipstation %s: http %d: %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("shipstation %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsAPIError reports whether err is an application-level API error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
