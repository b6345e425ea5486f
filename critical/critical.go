// Package critical provides the interrupt-masking critical section that
// guards every piece of state shared between task code and interrupt
// handlers: peripheral state cells, the event-channel pool, the tick
// extension and the alarm set.
//
// Enter masks asynchronous preemption and returns the previous state;
// Exit restores it exactly. Nesting is safe: an inner Enter observes the
// already-masked state and its Exit leaves the mask untouched, so only
// the outermost pair actually toggles interrupt delivery.
//
// On microcontroller builds this is the PRIMASK-style save/restore from
// runtime/interrupt. On host builds it is a virtual mask: simulated
// interrupt delivery serializes against task-side sections on one lock,
// giving tests the same exclusion guarantee real hardware gives the
// single core.
package critical

// State is the saved interrupt-enable state returned by Enter and
// consumed by the matching Exit.
type State uintptr

// Enter masks interrupt delivery and returns the state to pass to Exit.
// Bounded and non-suspending; on host builds it blocks only while
// another goroutine holds the section.
func Enter() State { return enter() }

// Exit restores the interrupt-enable state saved by the matching Enter.
func Exit(s State) { exit(s) }

// Do runs fn inside a critical section. The section is released even if
// fn panics.
func Do(fn func()) {
	s := enter()
	defer exit(s)
	fn()
}
