package pkg

import (
	"errors"
	"fmt"
)

// I3C protocol engine errors.
var (
	// ErrAlreadyRunning indicates the engine's background tasks are already started.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the engine's background tasks are not started.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDuplicateTarget indicates a target address is already registered.
	ErrDuplicateTarget = errors.New("target address already registered")

	// ErrUnknownTarget indicates a target address is not registered.
	ErrUnknownTarget = errors.New("unknown target address")

	// ErrBusBusy indicates the bus was not free when it had to be.
	ErrBusBusy = errors.New("bus busy")

	// ErrTimeout indicates a bounded wait elapsed.
	ErrTimeout = errors.New("timeout")

	// ErrNoIBIPayload indicates IBI data was supplied by a target whose BCR
	// does not advertise an IBI payload.
	ErrNoIBIPayload = errors.New("IBI payload not advertised in BCR")

	// ErrMissingMDB indicates an IBI without a mandatory data byte from a
	// target whose BCR advertises one.
	ErrMissingMDB = errors.New("IBI mandatory data byte missing")

	// ErrUnsupportedReset indicates an unsupported reset action or
	// reset-time query combination.
	ErrUnsupportedReset = errors.New("unsupported target reset request")

	// ErrPrematureEnd indicates the target ended a transfer before a
	// mandatory field was received.
	ErrPrematureEnd = errors.New("transfer ended prematurely")

	// ErrUnexpectedData indicates the target signaled more data where the
	// transfer must end.
	ErrUnexpectedData = errors.New("unexpected trailing data")

	// ErrNACK indicates an address header was not acknowledged.
	ErrNACK = errors.New("address not acknowledged")
)

// ProtocolViolationError reports a received transition bit that does not
// match the odd parity of its data byte. It is fatal: the device under test
// broke framing.
type ProtocolViolationError struct {
	Data     byte
	Expected bool
	Received bool
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("T-bit parity violation: data 0x%02X expected T=%v, got T=%v",
		e.Data, e.Expected, e.Received)
}

// ResetQueryError indicates a target reset request that cannot be issued.
type ResetQueryError struct {
	Address uint8
	Action  uint8
	Reason  string
}

func (e *ResetQueryError) Error() string {
	return fmt.Sprintf("target reset 0x%02X action 0x%02X: %s", e.Address, e.Action, e.Reason)
}

// Unwrap allows errors.Is(err, ErrUnsupportedReset).
func (e *ResetQueryError) Unwrap() error {
	return ErrUnsupportedReset
}

// RecoveryError indicates which stage of a recovery command failed.
type RecoveryError struct {
	Stage string
	Err   error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *RecoveryError) Unwrap() error {
	return e.Err
}
