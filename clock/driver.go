package clock

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/x/mathx"
)

// Counter is the chip face of the hardware counter backing the clock:
// a free-running register of Width bits with one compare channel whose
// match raises the interrupt serviced by HandleInterrupt. The Driver is
// the counter's exclusive owner.
type Counter interface {
	// Read returns the raw counter value. Bits above Width are ignored.
	Read() uint32
	// Width is the counter width in bits, 2..31.
	Width() uint
	// SetCompare programs the compare register to a raw counter value.
	SetCompare(raw uint32)
	// EnableCompare gates the compare-match interrupt source.
	EnableCompare(on bool)
}

// A compare target closer than this to the current raw value may race
// the counter and miss a whole wrap; low-frequency RTCs typically
// guarantee a match only two or more ticks out.
const minCompareLead = 2

// Driver owns one Counter and turns it into the process's monotonic
// clock. All mutable state is shared with the compare interrupt handler
// and only ever touched inside the critical section.
type Driver struct {
	cnt   Counter
	hz    Hertz
	mask  uint32
	width uint

	last uint32 // raw value at the previous sample
	ext  uint64 // wraps observed since start

	head *Alarm // pending alarms, soonest first
}

// NewDriver wraps a counter ticking at hz. The counter is assumed
// stopped or freshly cleared; start it and enable its compare interrupt
// before scheduling against the driver. An out-of-range width is a
// binding bug and panics.
func NewDriver(c Counter, hz Hertz) *Driver {
	w := c.Width()
	if w < 2 || w > 31 {
		panic("clock: counter width out of range")
	}
	if hz == 0 {
		panic("clock: zero frequency")
	}
	return &Driver{cnt: c, hz: hz, mask: 1<<w - 1, width: w}
}

// Frequency is the tick rate the driver was built with.
func (d *Driver) Frequency() Hertz { return d.hz }

// Start programs the first compare keepalive. Call once after the
// counter is running; before this, nothing observes the counter and
// wraparounds would go unseen.
func (d *Driver) Start() {
	critical.Do(func() { d.reprogram(d.now()) })
}

// Now returns the extended monotonic tick count. Callable from tasks
// and from interrupt handlers.
func (d *Driver) Now() Tick {
	var t Tick
	critical.Do(func() { t = d.now() })
	return t
}

// now reconciles the raw counter against the last sample. Caller holds
// the critical section. A raw value below the previous sample means the
// counter wrapped exactly once; the compare cadence (clamped to half a
// wrap) rules out a double wrap between observations.
func (d *Driver) now() Tick {
	raw := d.cnt.Read() & d.mask
	if raw < d.last {
		d.ext++
	}
	d.last = raw
	return Tick(d.ext<<d.width | uint64(raw))
}

// HandleInterrupt is the compare-match interrupt body: reconcile the
// counter, fire every due alarm in deadline order, reprogram the
// compare for the next deadline. Bindings call it from the real ISR;
// the simulator calls it when its counter crosses the compare value.
func (d *Driver) HandleInterrupt() {
	critical.Do(func() {
		t := d.now()
		for d.head != nil && d.head.deadline <= t {
			a := d.head
			d.head = a.next
			a.next = nil
			a.queued = false
			a.wake()
		}
		d.reprogram(t)
	})
}

// reprogram aims the compare register at the nearest deadline, clamped
// to [minCompareLead, half a wrap]. With no alarms pending it still
// programs a half-wrap keepalive so the wraparound extension is always
// reconciled in time. Caller holds the critical section.
func (d *Driver) reprogram(t Tick) {
	half := (uint64(d.mask) + 1) / 2
	lead := half
	if d.head != nil {
		lead = mathx.Clamp(uint64(d.head.deadline-t), minCompareLead, half)
	}
	d.cnt.SetCompare((d.last + uint32(lead)) & d.mask)
	d.cnt.EnableCompare(true)
}
