// Package embassy is an async peripheral runtime for microcontrollers.
//
// Tasks (goroutines) drive peripherals through suspending operations: an
// operation arms the hardware, parks the task on a wake channel, and a
// hardware interrupt completes it. The building blocks live in their own
// packages:
//
//   - critical: the interrupt-masking critical section guarding all state
//     shared between task code and interrupt handlers.
//   - exec: wake handles and the per-peripheral state cell implementing
//     the arm/complete/consume handoff.
//   - events: the fixed pool of hardware event-routing channels.
//   - clock: the monotonic tick driver, alarms and tick-based timeouts.
//   - gpio, uart, spi, i2c, flash: async drivers built from the above.
//
// Hardware access goes through small per-driver port interfaces. The sim
// package implements every port in software for host builds and tests;
// the nrf52 package binds them to real registers on nRF52840 targets, and
// the uart package carries an RP2040/RP2350 backend. Which binding is
// compiled is selected purely by build tags.
package embassy
