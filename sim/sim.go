// Package sim is a software model of the small machine the runtime
// drives: a narrow free-running counter with one compare, a routing
// matrix, pins with edge detectors, serial wire pairs, SPI and I2C
// masters, and a NOR flash controller. Host tests and the demo binary
// run the portable drivers against it unchanged.
//
// Interrupt handlers are delivered synchronously inside the critical
// section, which is exactly the masking contract real handlers get: a
// task holding the section stalls delivery until it exits. Event
// status words mirror the driver port contracts bit for bit, the way
// silicon fixes its register layouts.
package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/events"
)

// Config sizes the machine. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	CounterWidth uint   // raw counter bits, 2..31
	Channels     int    // routing channels, 1..32
	FlashSize    uint32 // flash array bytes
	FlashPage    uint32 // erase granule
	FlashUnit    uint32 // programming granule
	BusLatency   int    // ticks from Begin to completion on SPI, I2C and flash
}

// DefaultConfig matches the hardware the runtime usually sits on: a
// 24-bit counter, 16 routing channels, 256 KiB of flash in 2 KiB
// pages programmed 8 bytes at a time.
func DefaultConfig() Config {
	return Config{
		CounterWidth: 24,
		Channels:     16,
		FlashSize:    256 * 1024,
		FlashPage:    2048,
		FlashUnit:    8,
		BusLatency:   4,
	}
}

// Endpoint ids on the routing fabric. Pin n publishes its detector
// event at epPinBase+n; the counter's capture task subscribes at
// epCapture. Ids fit the pin space below 0x200.
const (
	epPinBase = 0x100
	epCapture = 0x200
)

// Machine owns every simulated peripheral and the time base that
// paces them.
type Machine struct {
	Counter *Counter
	Router  *Router
	Flash   *Flash
	SPI     *SPIBus
	I2C     *I2CBus

	pins map[int]*Pin
	ops  []*busOp
}

// New builds a machine. Panics on out-of-range geometry, matching how
// a miswired board fails at first light, not at runtime.
func New(cfg Config) *Machine {
	if cfg.CounterWidth < 2 || cfg.CounterWidth > 31 {
		panic("sim: counter width out of range")
	}
	if cfg.Channels < 1 || cfg.Channels > 32 {
		panic("sim: channel count out of range")
	}
	m := &Machine{pins: make(map[int]*Pin)}
	m.Counter = &Counter{
		width: cfg.CounterWidth,
		mask:  uint32(1)<<cfg.CounterWidth - 1,
	}
	m.Router = &Router{m: m, ch: make([]route, cfg.Channels)}
	m.Flash = newFlash(m, cfg)
	m.SPI = newSPIBus(m, cfg.BusLatency)
	m.I2C = newI2CBus(m, cfg.BusLatency)
	return m
}

// Pin returns the machine's pin n, creating it on first use.
func (m *Machine) Pin(n int) *Pin {
	var p *Pin
	critical.Do(func() {
		p = m.pins[n]
		if p == nil {
			p = &Pin{m: m, n: n}
			m.pins[n] = p
		}
	})
	return p
}

// Step advances the machine n ticks. The counter runs in compare-sized
// chunks so every match raises its interrupt at the exact tick, and
// in-flight bus operations complete when their latency elapses.
func (m *Machine) Step(n int) {
	for n > 0 {
		var k int
		critical.Do(func() {
			k = m.Counter.chunk(n)
			m.Counter.advance(k)
			m.tickOps(k)
		})
		n -= k
	}
}

// busOp is one in-flight peripheral operation waiting out its
// latency. A held op never retires, modelling a wedged bus.
type busOp struct {
	remain int
	hold   bool
	fire   func()
}

// schedule queues fire to run latency ticks from now. Caller holds
// the critical section.
func (m *Machine) schedule(latency int, hold bool, fire func()) *busOp {
	if latency < 1 {
		latency = 1
	}
	op := &busOp{remain: latency, hold: hold, fire: fire}
	m.ops = append(m.ops, op)
	return op
}

// cancelOp drops a queued op. Caller holds the critical section.
func (m *Machine) cancelOp(op *busOp) {
	for i, o := range m.ops {
		if o == op {
			m.ops = append(m.ops[:i], m.ops[i+1:]...)
			return
		}
	}
}

// tickOps retires operations whose latency has elapsed. Caller holds
// the critical section.
func (m *Machine) tickOps(k int) {
	i := 0
	for _, op := range m.ops {
		if op.hold {
			m.ops[i] = op
			i++
			continue
		}
		op.remain -= k
		if op.remain > 0 {
			m.ops[i] = op
			i++
			continue
		}
		op.fire()
	}
	m.ops = m.ops[:i]
}

// deliver triggers the peripheral task behind a subscriber endpoint.
// Caller holds the critical section.
func (m *Machine) deliver(sub events.Endpoint) {
	switch sub {
	case epCapture:
		m.Counter.capture()
	}
}
