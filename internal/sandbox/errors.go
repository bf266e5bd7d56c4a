package sandbox

import "errors"

var (
	// ErrHostClosed is returned when a call reaches a host that has stopped.
	ErrHostClosed = errors.New("sandbox: host closed")
	// ErrInvalidParam is reported when the parameter name is not a
	// JavaScript identifier.
	ErrInvalidParam = errors.New("invalid parameter name")
)

// HandlerError carries the message of a failed handler run.
type HandlerError struct {
	Message string
}

func (e *HandlerError) Error() string {
	return "handler error: " + e.Message
}
