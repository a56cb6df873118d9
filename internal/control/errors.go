package control

import (
	"errors"

	"github.com/nerrad567/sportsbar-av/internal/bridges/cec"
	"github.com/nerrad567/sportsbar-av/internal/bridges/matrix"
)

// Errors surfaced in Result.Err. Lower-layer sentinels are re-exported so
// callers only import this package.
var (
	// ErrRoutingFailed aborts a CEC attempt without consuming the fallback.
	ErrRoutingFailed = matrix.ErrRoutingFailed

	// ErrAdapterUnavailable means the CEC adapter is missing or not initialised.
	ErrAdapterUnavailable = cec.ErrAdapterUnavailable

	// ErrUnknownCommand is returned for command names with no mapping.
	ErrUnknownCommand = cec.ErrUnknownCommand

	// ErrNoControlPath means the TV supports neither CEC nor IR.
	ErrNoControlPath = errors.New("control: device has no control path")

	// ErrMethodUnsupported means a forced method is not supported by the TV.
	ErrMethodUnsupported = errors.New("control: method not supported by device")

	// ErrPathUnavailable means the daemon has no transport configured for
	// the selected path (matrix or CEC gateway for CEC, IR client for IR).
	ErrPathUnavailable = errors.New("control: control path not configured")

	// ErrPanic marks a result produced by a recovered panic.
	ErrPanic = errors.New("control: internal error")
)

// Errors reported on ack topics by the MQTT command bridge.
var (
	// ErrInvalidMessage means a command payload could not be decoded or is
	// missing required fields.
	ErrInvalidMessage = errors.New("control: invalid command message")

	// ErrBusy means the bridge is already running its maximum number of
	// commands.
	ErrBusy = errors.New("control: too many commands in flight")

	// ErrNotConfigured means a command targets a bridge the daemon did not
	// start (matrix or audio).
	ErrNotConfigured = errors.New("control: target not configured")
)
