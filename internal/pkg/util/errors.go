package util

import "errors"

// Shared error kinds used across the relay core. Handlers translate these
// into transport status codes, so wrapped errors must keep the chain intact.
var (
	// ErrNotFound indicates the requested company/car/module/device is not
	// currently connected. Expected and frequent; never logged as an error.
	ErrNotFound = errors.New("not found")

	// ErrInvalid indicates a request that fails validation before any state
	// is touched (bad name pattern, wrong message type for the endpoint).
	ErrInvalid = errors.New("invalid request")

	// ErrUnavailable indicates the persistence layer or the process itself
	// cannot serve the request right now (store down, shutdown in progress).
	ErrUnavailable = errors.New("service unavailable")
)
