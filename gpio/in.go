package gpio

import (
	"context"

	"github.com/davidlenfesty/embassy/events"
	"github.com/davidlenfesty/embassy/exec"
	"github.com/davidlenfesty/embassy/x/conv"
)

// In drives one input line. A single edge wait may be in flight at a
// time; a second concurrent wait is rejected with exec.ErrBusy.
type In struct {
	pin  EdgePin
	pool *events.Pool
	name string
	cell exec.Cell
}

// NewIn wraps an edge-capable input. The pool supplies the routing
// channel each wait or route claims.
func NewIn(pin EdgePin, pool *events.Pool) *In {
	var buf [12]byte
	return &In{
		pin:  pin,
		pool: pool,
		name: "gpio:" + string(conv.Utoa(buf[:], uint64(pin.EventEndpoint()))),
	}
}

// Get reads the line level.
func (in *In) Get() bool { return in.pin.Get() }

// WaitForEdge suspends until the line makes one of the requested
// transitions and reports which one fired. The wait holds a routing
// channel for its lifetime; every exit path, including cancellation,
// releases it and returns the detector to idle.
func (in *In) WaitForEdge(ctx context.Context, e Edge) (Edge, error) {
	e &= Any
	if e == 0 {
		return 0, ErrNoEdge
	}
	w := exec.NewWaker()
	if err := in.cell.Arm(w); err != nil {
		return 0, err
	}
	ch, err := in.pool.Claim(in.name)
	if err != nil {
		in.cell.Cancel()
		return 0, err
	}
	if err := in.pool.Connect(ch, events.Endpoint(in.pin.EventEndpoint()), 0); err != nil {
		in.pool.Release(ch)
		in.cell.Cancel()
		return 0, err
	}
	in.pin.Watch(e&Rising != 0, e&Falling != 0, in.edgeISR)

	flags, _, err := exec.Await(ctx, &in.cell, w, in.pin.Unwatch)
	in.pin.Unwatch()
	in.pool.Release(ch)
	if err != nil {
		return 0, err
	}
	return Edge(flags), nil
}

// edgeISR runs in interrupt context. It disarms the detector first so
// a second transition cannot land on a completed cell.
func (in *In) edgeISR(rising bool) {
	in.pin.Unwatch()
	f := uint32(Falling)
	if rising {
		f = uint32(Rising)
	}
	in.cell.Complete(f)
}

// Route connects the pin's detector event to a peripheral task
// endpoint so transitions trigger it without CPU involvement. The
// returned channel stays claimed until Unroute.
func (in *In) Route(sub events.Endpoint) (events.Channel, error) {
	ch, err := in.pool.Claim(in.name)
	if err != nil {
		return 0, err
	}
	if err := in.pool.Connect(ch, events.Endpoint(in.pin.EventEndpoint()), sub); err != nil {
		in.pool.Release(ch)
		return 0, err
	}
	return ch, nil
}

// Unroute tears the connection down and frees its channel.
func (in *In) Unroute(ch events.Channel) error { return in.pool.Release(ch) }
