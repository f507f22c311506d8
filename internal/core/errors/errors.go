// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Circuit breaker errors.
var (
	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Upstream HTTP errors.
var (
	// ErrHTTPStatus indicates an upstream API answered with a non-2xx status code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrUpstreamUnsuccessful indicates the upstream API reported success=false in its envelope.
	ErrUpstreamUnsuccessful = errors.New("upstream reported failure")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrBodyTooLarge indicates a download exceeded the configured size limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Client errors.
var (
	// ErrClientDisabled indicates a client or feature is disabled.
	ErrClientDisabled = errors.New("client disabled")
)

// Media errors.
var (
	// ErrNotImage indicates downloaded content is not an image.
	ErrNotImage = errors.New("content is not an image")

	// ErrEmptyMedia indicates downloaded media has no bytes.
	ErrEmptyMedia = errors.New("media is empty")

	// ErrTranscode indicates the audio could not be converted.
	ErrTranscode = errors.New("audio transcode failed")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidID indicates an invalid identifier.
	ErrInvalidID = errors.New("invalid id")

	// ErrMissingDeal indicates no CRM deal could be found or created.
	ErrMissingDeal = errors.New("no deal id available")
)

// Queue errors.
var (
	// ErrQueueFull indicates the background job queue cannot accept more work.
	ErrQueueFull = errors.New("job queue is full")

	// ErrPoolStopped indicates the worker pool no longer accepts jobs.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
