package exec

import "errors"

// Errors shared by the async driver pattern.
var (
	// ErrBusy rejects an operation issued while another one is armed on
	// the same cell. A caller bug: returned synchronously, never queued.
	ErrBusy = errors.New("operation already in flight")

	// ErrNotReady reports a Consume on a cell whose operation has not
	// completed yet. The waiter should re-suspend.
	ErrNotReady = errors.New("operation not complete")

	// ErrFault is the category every peripheral fault error wraps.
	// Match with errors.Is to treat any hardware-reported failure alike.
	ErrFault = errors.New("hardware fault")
)

// Fault builds a driver fault sentinel wrapping ErrFault.
func Fault(msg string) error { return &faultError{msg} }

type faultError struct{ msg string }

func (e *faultError) Error() string { return e.msg }
func (e *faultError) Unwrap() error { return ErrFault }
