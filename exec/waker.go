package exec

// Waker is the wake handle: a capability to mark exactly one suspended
// task runnable. Wakes coalesce, so waking an already-woken handle is a
// no-op, and the consumer must re-check its condition after waking.
//
// The zero Waker is inert: Wake does nothing and Done blocks forever.
type Waker struct {
	ch chan struct{}
}

// NewWaker returns a fresh handle. Operations create one per suspension
// so a stale wake from an earlier use can never leak into a new wait.
func NewWaker() Waker { return Waker{ch: make(chan struct{}, 1)} }

// Wake marks the task runnable. Non-blocking and interrupt-safe.
func (w Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Done returns the channel a suspending task parks on.
func (w Waker) Done() <-chan struct{} { return w.ch }

// Clear drops a pending wake so the handle can be reused for another
// wait without observing its own history.
func (w Waker) Clear() {
	select {
	case <-w.ch:
	default:
	}
}
