// Package gpio implements digital pin drivers: plain outputs and
// inputs whose edge transitions suspend a task until the detector
// interrupt fires. The edge detector is a claimable routing resource,
// so a pin event can also trigger another peripheral's task directly
// through the events pool.
package gpio

import "errors"

// Edge selects which line transitions a wait or route reacts to. The
// values double as the detector's polarity selector.
type Edge uint8

const (
	// Rising matches a low to high transition.
	Rising Edge = 1 << iota
	// Falling matches a high to low transition.
	Falling
)

// Any matches either transition.
const Any = Rising | Falling

// ErrNoEdge rejects a wait with no transition selected.
var ErrNoEdge = errors.New("gpio: no edge selected")

// Pin is the register surface of one output-capable line.
type Pin interface {
	Get() bool
	Set(level bool)
}

// EdgePin is the register surface of one input line with an edge
// detector. The detector is one-shot from the driver's point of view:
// the handler disarms it before completing, and Unwatch on an idle
// detector is a no-op.
type EdgePin interface {
	Get() bool
	// Watch arms the detector. h runs from interrupt context on every
	// matching transition until Unwatch.
	Watch(rising, falling bool, h func(rising bool))
	// Unwatch disarms the detector and drops the handler.
	Unwatch()
	// EventEndpoint identifies the pin's detector event on the routing
	// fabric.
	EventEndpoint() uint32
}
