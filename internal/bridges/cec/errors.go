package cec

import "errors"

// Domain errors for the CEC adapter gateway.
var (
	// ErrAdapterUnavailable is returned when no USB-CEC adapter is attached
	// or the configured adapter is missing.
	ErrAdapterUnavailable = errors.New("cec: adapter unavailable")

	// ErrCommandFailed is returned when cec-client ran but its output shows
	// no bus traffic, or the process itself failed.
	ErrCommandFailed = errors.New("cec: command failed")

	// ErrUnknownCommand is returned for command names with no CEC mapping.
	ErrUnknownCommand = errors.New("cec: unknown command")

	// ErrTimeout is returned when cec-client does not exit in time.
	ErrTimeout = errors.New("cec: command timed out")

	// ErrInvalidAddress is returned for logical addresses outside 0-15.
	ErrInvalidAddress = errors.New("cec: invalid logical address")
)
