// Package clock extends a narrow hardware counter into a wide monotonic
// tick count and schedules alarms against it.
//
// The Driver owns the counter and its compare register. A recurring
// compare interrupt reconciles the raw counter against the last sample,
// advancing a wraparound extension exactly once per observed wrap, then
// fires every due alarm in deadline order and reprograms the compare to
// the next deadline. The compare lead is clamped to half a wraparound,
// which is what keeps single-wrap detection sound: the driver is always
// re-sampled strictly inside one wrap period, even with no alarms
// pending.
//
// Tasks do not use alarms directly; they sleep through SleepUntil/Sleep
// or race an operation against WithTimeout, all built on the same
// queue.
package clock

import (
	"errors"
	"time"

	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/x/mathx"
	"github.com/davidlenfesty/embassy/x/timex"
)

// Tick is one unit of the extended monotonic counter. Ticks count up at
// the driver's fixed frequency from whenever the counter was started
// and never decrease for the life of the process.
type Tick uint64

// ErrTimeout is the cancellation cause installed by WithDeadline and
// WithTimeout when the tick deadline is reached first. Retrieve it with
// context.Cause.
var ErrTimeout = errors.New("timeout")

// Hertz is a frequency in cycles per second.
type Hertz uint32

// KHz returns n kilohertz.
func KHz(n uint32) Hertz { return Hertz(n * 1000) }

// MHz returns n megahertz.
func MHz(n uint32) Hertz { return Hertz(n * 1000 * 1000) }

const nsPerSec = 1_000_000_000

// Ticks converts a duration to a tick count at this frequency, rounding
// up so a sleep never ends early. Non-positive durations are zero
// ticks.
func (hz Hertz) Ticks(d time.Duration) Tick {
	if d <= 0 || hz == 0 {
		return 0
	}
	ns := uint64(d)
	whole := ns / nsPerSec
	frac := ns % nsPerSec
	return Tick(whole*uint64(hz) + mathx.CeilDiv(frac*uint64(hz), uint64(nsPerSec)))
}

// Duration converts a tick count at this frequency to a duration,
// truncating sub-nanosecond remainder.
func (hz Hertz) Duration(n Tick) time.Duration {
	if hz == 0 {
		return 0
	}
	whole := uint64(n) / uint64(hz)
	frac := uint64(n) % uint64(hz)
	return time.Duration(whole)*time.Second + time.Duration(frac*nsPerSec/uint64(hz))
}

// Period is the duration of a single tick.
func (hz Hertz) Period() time.Duration {
	return time.Duration(timex.PeriodFromHz(uint32(hz)))
}

// The process-wide driver, installed once at startup by the board
// wiring. Embedded lifetime: there is no teardown.
var active *Driver

// Init installs d as the process clock. Called exactly once during
// central startup; a second call is a wiring bug.
func Init(d *Driver) {
	critical.Do(func() {
		if active != nil {
			panic("clock: driver already installed")
		}
		active = d
	})
}

// Default returns the installed process clock.
func Default() *Driver {
	var d *Driver
	critical.Do(func() { d = active })
	if d == nil {
		panic("clock: no driver installed")
	}
	return d
}
