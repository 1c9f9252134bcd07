package domain

import "errors"

// Error taxonomy shared by the dispatcher, the pipelines and the API layer.
var (
	// ErrValidation is returned when a submission or entity fails validation.
	// Validation errors are surfaced synchronously and no task record exists.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication is returned when a credential exchange fails.
	// It is fatal to a pipeline run.
	ErrAuthentication = errors.New("authentication failed")

	// ErrExtraction is returned when the product source cannot be fetched or
	// returns an unexpected shape. It is fatal to a pipeline run.
	ErrExtraction = errors.New("extraction failed")

	// ErrDelivery is returned when a callback or an order update cannot be
	// delivered. It never fails a task; the outcome is recorded in the result.
	ErrDelivery = errors.New("delivery failed")

	// ErrInternal marks unexpected failures caught at the executor boundary.
	ErrInternal = errors.New("internal error")

	// ErrLoginFailed is returned when the supplier portal rejects a login.
	ErrLoginFailed = errors.New("login failed")

	// ErrMissingFields is returned by the order pipeline when required order
	// data is absent.
	ErrMissingFields = errors.New("missing required fields")

	// ErrNoProducts is returned when an extraction yields no products and the
	// pipeline is configured to treat that as a failure.
	ErrNoProducts = errors.New("no products extracted")

	// ErrOrderRegistration is returned when the order-management API rejects an
	// order and the synthetic fallback is disabled.
	ErrOrderRegistration = errors.New("order registration failed")

	// ErrInvalidTransition is returned when a task record change would break
	// the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid task state transition")
)
