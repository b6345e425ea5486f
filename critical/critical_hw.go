//go:build nrf52840 || rp2040 || rp2350

package critical

import "runtime/interrupt"

func enter() State { return State(interrupt.Disable()) }

func exit(s State) { interrupt.Restore(interrupt.State(s)) }
