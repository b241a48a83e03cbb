// Package intc holds the error kinds and handler contract shared by the
// interrupt controllers in this module.
package intc

import "errors"

// Error kinds returned by configuration paths. Callers match them with
// errors.Is; every controller wraps them with operation context.
var (
	// ErrInvalidArgument reports an out-of-range id, hart, priority,
	// trigger type, threshold or EID, or an empty affinity mask.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotSupported reports an operation that is only valid in the
	// other global delivery mode.
	ErrNotSupported = errors.New("not supported")

	// ErrNoDevice reports a required backend controller that is absent
	// at discovery time.
	ErrNoDevice = errors.New("no device")

	// ErrBusy reports a backend that is present but not yet ready.
	ErrBusy = errors.New("device busy")
)

// Handler services a single interrupt identifier. Handlers are registered
// once at bring-up into fixed-size tables indexed by source id or EID and
// are invoked from dispatch context; they must not block.
type Handler interface {
	HandleInterrupt(id uint32)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(id uint32)

// HandleInterrupt implements Handler.
func (f HandlerFunc) HandleInterrupt(id uint32) {
	if f != nil {
		f(id)
	}
}
