package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/events"
)

// Counter is the machine's free-running time base: a raw register of
// configured width with one compare unit and a capture latch the
// routing fabric can trigger.
type Counter struct {
	width   uint
	mask    uint32
	raw     uint32
	cmp     uint32
	cmpEn   bool
	handler func()

	capt    uint32
	hasCapt bool
}

// Read returns the raw count.
func (c *Counter) Read() uint32 {
	var v uint32
	critical.Do(func() { v = c.raw })
	return v
}

// Width is the raw register width in bits.
func (c *Counter) Width() uint { return c.width }

// SetCompare aims the compare unit at a raw count.
func (c *Counter) SetCompare(v uint32) {
	critical.Do(func() { c.cmp = v & c.mask })
}

// EnableCompare gates the compare interrupt.
func (c *Counter) EnableCompare(on bool) {
	critical.Do(func() { c.cmpEn = on })
}

// SetInterrupt installs the compare interrupt body, the way a board
// binds a handler to the counter's interrupt line.
func (c *Counter) SetInterrupt(h func()) {
	critical.Do(func() { c.handler = h })
}

// CaptureEndpoint is the counter's capture task on the routing
// fabric: delivering an event there latches the current raw count.
func (c *Counter) CaptureEndpoint() events.Endpoint { return epCapture }

// Captured returns the latched count and clears the latch.
func (c *Counter) Captured() (uint32, bool) {
	var (
		v  uint32
		ok bool
	)
	critical.Do(func() {
		v, ok = c.capt, c.hasCapt
		c.hasCapt = false
	})
	return v, ok
}

// capture latches the current count. Caller holds the critical
// section.
func (c *Counter) capture() {
	c.capt = c.raw
	c.hasCapt = true
}

// chunk limits an advance of n ticks so it lands exactly on the next
// compare match. Caller holds the critical section.
func (c *Counter) chunk(n int) int {
	if !c.cmpEn {
		return n
	}
	d := uint64(c.cmp-c.raw) & uint64(c.mask)
	if d == 0 {
		// Compare equal to the count fires after a full lap.
		d = uint64(c.mask) + 1
	}
	if uint64(n) < d {
		return n
	}
	return int(d)
}

// advance moves the raw count k ticks and raises the compare
// interrupt when it lands on the match. Caller holds the critical
// section.
func (c *Counter) advance(k int) {
	c.raw = (c.raw + uint32(k)) & c.mask
	if k > 0 && c.cmpEn && c.raw == c.cmp && c.handler != nil {
		c.handler()
	}
}
