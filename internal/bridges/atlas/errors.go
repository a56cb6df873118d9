package atlas

import "errors"

// Domain errors for the audio processor client.
var (
	// ErrConnectionFailed is returned when the TCP connection cannot be
	// established or a read/write on an open connection fails.
	ErrConnectionFailed = errors.New("atlas: connection failed")

	// ErrNotConnected is returned when an operation needs a live session
	// and none exists (including after reconnect attempts are exhausted).
	ErrNotConnected = errors.New("atlas: not connected")

	// ErrTimeout is returned when no response arrives within the command timeout.
	ErrTimeout = errors.New("atlas: request timed out")

	// ErrValidation is returned when a parameter name, value, or format is
	// rejected before any bytes are sent.
	ErrValidation = errors.New("atlas: validation failed")

	// ErrCommandFailed is returned when the processor answers with an error object.
	ErrCommandFailed = errors.New("atlas: command rejected by processor")

	// ErrFrameTooLarge is returned when a partial frame exceeds the decoder
	// limit, which means the stream has lost sync.
	ErrFrameTooLarge = errors.New("atlas: frame exceeds maximum size")

	// ErrInvalidMessage is returned when a frame is not a valid JSON-RPC message.
	ErrInvalidMessage = errors.New("atlas: invalid message")

	// ErrNotSubscribed is returned by Unsubscribe for unknown parameters.
	ErrNotSubscribed = errors.New("atlas: not subscribed")

	// ErrClosed is returned to pending requests when the session is torn down.
	ErrClosed = errors.New("atlas: session closed")
)
