package exec

import "github.com/davidlenfesty/embassy/critical"

const (
	stateIdle uint8 = iota
	stateArmed
	stateCompleted
	stateFailed
)

// Cell is the per-peripheral-instance handoff between an async
// operation and the interrupt handler that completes it:
//
//	Idle -> Armed -> Completed|Failed -> Idle
//
// The issuing task arms it, the handler finishes it, the task consumes
// the outcome. Exactly one operation can be in flight; a second Arm is
// rejected with ErrBusy. Every transition runs inside a critical
// section, so neither side ever observes the cell half-updated, and the
// status word is in place before the stored waker fires.
//
// The zero Cell is ready to use.
type Cell struct {
	state uint8
	flags uint32
	waker Waker
}

// Arm claims the cell for a new operation: clears the status word and
// stores w as the wake target. Returns ErrBusy unless the cell is Idle.
func (c *Cell) Arm(w Waker) error {
	var err error
	critical.Do(func() {
		if c.state != stateIdle {
			err = ErrBusy
			return
		}
		c.state = stateArmed
		c.flags = 0
		c.waker = w
	})
	return err
}

// Complete records a successful completion with the given status flags
// and wakes the armed task. It reports false, changing nothing, when no
// operation is armed (a late hardware event after cancellation, which
// is benign and dropped). Interrupt-handler safe: never blocks.
func (c *Cell) Complete(flags uint32) bool { return c.finish(stateCompleted, flags) }

// Fail records a peripheral-reported failure with the given status
// flags and wakes the armed task. Same late-event semantics as
// Complete.
func (c *Cell) Fail(flags uint32) bool { return c.finish(stateFailed, flags) }

func (c *Cell) finish(next uint8, flags uint32) bool {
	var w Waker
	done := false
	critical.Do(func() {
		switch c.state {
		case stateArmed:
			c.flags = flags
			c.state = next
			w = c.waker
			c.waker = Waker{}
			done = true
		case stateIdle:
			// Late event after a cancel: drop it.
		default:
			// Two completions with the result still pending means an
			// interrupt source was never cleared. Core bug; halt.
			panic("exec: completion while result pending")
		}
	})
	if done {
		w.Wake()
	}
	return done
}

// Consume reads and clears a finished operation's outcome, returning
// the cell to Idle. flags is the handler-recorded status word; failed
// reports the Failed transition. If no completion has arrived the cell
// is left untouched and ErrNotReady is returned, meaning the wake was
// spurious and the waiter should re-suspend.
func (c *Cell) Consume() (flags uint32, failed bool, err error) {
	critical.Do(func() {
		switch c.state {
		case stateCompleted:
			flags, failed = c.flags, false
		case stateFailed:
			flags, failed = c.flags, true
		default:
			err = ErrNotReady
			return
		}
		c.state = stateIdle
		c.flags = 0
	})
	return flags, failed, err
}

// Cancel tears the cell down to Idle from any state, dropping an armed
// operation's waker or an unconsumed result. It reports whether an
// armed operation was actually disarmed, which tells a cancel path
// racing the interrupt handler which side owned the teardown.
// Idempotent.
func (c *Cell) Cancel() bool {
	disarmed := false
	critical.Do(func() {
		disarmed = c.state == stateArmed
		c.state = stateIdle
		c.flags = 0
		c.waker = Waker{}
	})
	return disarmed
}

// Armed reports whether an operation is currently in flight.
func (c *Cell) Armed() bool {
	var armed bool
	critical.Do(func() { armed = c.state == stateArmed })
	return armed
}
