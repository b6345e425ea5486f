package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/events"
)

// Pin is one machine pin: a level, an edge detector with a one-shot
// handler, and an event publisher on the routing fabric. Drive plays
// the external world; Set plays the CPU side. Both move the same
// line, so an output can be looped back into the detector.
type Pin struct {
	m       *Machine
	n       int
	level   bool
	watch   bool
	rising  bool
	falling bool
	handler func(rising bool)
}

// Get reads the line level.
func (p *Pin) Get() bool {
	var v bool
	critical.Do(func() { v = p.level })
	return v
}

// Set drives the line from the CPU side.
func (p *Pin) Set(level bool) { p.drive(level) }

// Drive moves the line from outside the machine, like a signal edge
// arriving at the package.
func (p *Pin) Drive(level bool) { p.drive(level) }

func (p *Pin) drive(level bool) {
	critical.Do(func() {
		if level == p.level {
			return
		}
		p.level = level
		rising := level
		if p.watch && p.handler != nil && ((rising && p.rising) || (!rising && p.falling)) {
			p.handler(rising)
		}
		p.m.Router.publish(events.Endpoint(epPinBase + p.n))
	})
}

// Watch arms the edge detector.
func (p *Pin) Watch(rising, falling bool, h func(rising bool)) {
	critical.Do(func() {
		p.watch = true
		p.rising = rising
		p.falling = falling
		p.handler = h
	})
}

// Unwatch disarms the detector. A no-op when idle.
func (p *Pin) Unwatch() {
	critical.Do(func() {
		p.watch = false
		p.handler = nil
	})
}

// EventEndpoint identifies the pin's detector event on the routing
// fabric.
func (p *Pin) EventEndpoint() uint32 { return uint32(epPinBase + p.n) }
