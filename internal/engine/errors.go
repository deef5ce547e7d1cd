package engine

import (
	"errors"
	"fmt"
)

// ErrNoProgress is reported when a retention page repeats after its
// deletion committed, meaning the store ignored the delete.
var ErrNoProgress = errors.New("retention made no progress")

// HandlerError describes one failed durable write inside a handler or job.
//
// Handlers never return it; it is carried in outcomes and logged.
type HandlerError struct {
	// Op names the failed write: "status", "emergency", "event",
	// "history", "list", "query" or "delete".
	Op string

	// DeviceID identifies the affected device, if any.
	DeviceID string

	// Err is the underlying store error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("%s (device=%s): %v", e.Op, e.DeviceID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the store error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

func opError(op, deviceID string, err error) error {
	if err == nil {
		return nil
	}
	return &HandlerError{Op: op, DeviceID: deviceID, Err: err}
}

// IsOp reports whether err is a HandlerError for op.
// Uses errors.As to handle wrapped errors.
func IsOp(err error, op string) bool {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Op == op
	}
	return false
}
