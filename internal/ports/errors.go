package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters wrap underlying terminal/transport failures with these so callers
// can branch with errors.Is without depending on vendor codes.
var (
	// General Errors
	ErrInvalidArgument = errors.New("invalid request parameters")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")

	// Terminal Errors
	ErrUpstreamUnavailable = errors.New("terminal is not connected")
	ErrConnectionFailed    = errors.New("failed to reach the terminal bridge")
	ErrUnknownSymbol       = errors.New("symbol not known to the terminal")
	ErrPriceUnavailable    = errors.New("no current price for symbol")
	ErrPositionNotFound    = errors.New("position not found")
	ErrOrderRejected       = errors.New("order rejected by terminal")
	ErrCloseRejected       = errors.New("close rejected by terminal")
)

// RejectionError reports a non-success return code from the terminal's order
// path. It wraps either ErrOrderRejected or ErrCloseRejected and carries the
// native return code and comment text verbatim for diagnostics.
type RejectionError struct {
	Err     error  // ErrOrderRejected or ErrCloseRejected
	Retcode int    // Native terminal return code
	Comment string // Terminal's comment text for the failure
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v (retcode=%d): %s", e.Err, e.Retcode, e.Comment)
}

func (e *RejectionError) Unwrap() error { return e.Err }
