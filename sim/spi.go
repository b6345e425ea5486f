package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/x/mathx"
)

// spiDone mirrors the spi driver's event word.
const spiDone uint32 = 1 << 0

// SPIBus is a simulated SPI master wired to one device. The exchange
// happens at Begin; completion waits out the configured latency.
type SPIBus struct {
	m       *Machine
	latency int
	dev     func(out byte) byte
	hold    bool
	op      *busOp
	handler func(ev uint32)
}

func newSPIBus(m *Machine, latency int) *SPIBus {
	return &SPIBus{m: m, latency: latency}
}

// SetDevice installs the per-byte device model. The default device
// loops every byte back.
func (s *SPIBus) SetDevice(dev func(out byte) byte) {
	critical.Do(func() { s.dev = dev })
}

// SetHold wedges the bus: transactions begun while held never
// complete. Releasing the hold lets an in-flight transaction wait out
// its remaining latency.
func (s *SPIBus) SetHold(hold bool) {
	critical.Do(func() {
		s.hold = hold
		if s.op != nil {
			s.op.hold = hold
		}
	})
}

// Begin starts one full-duplex transaction.
func (s *SPIBus) Begin(tx, rx []byte) {
	critical.Do(func() {
		n := mathx.Max(len(tx), len(rx))
		for i := 0; i < n; i++ {
			var out byte
			if i < len(tx) {
				out = tx[i]
			}
			in := out
			if s.dev != nil {
				in = s.dev(out)
			}
			if i < len(rx) {
				rx[i] = in
			}
		}
		s.op = s.m.schedule(s.latency, s.hold, func() {
			s.op = nil
			if s.handler != nil {
				s.handler(spiDone)
			}
		})
	})
}

// Abort drops an in-flight transaction without completing it.
func (s *SPIBus) Abort() {
	critical.Do(func() {
		if s.op != nil {
			s.m.cancelOp(s.op)
			s.op = nil
		}
	})
}

// SetHandler installs the interrupt body.
func (s *SPIBus) SetHandler(h func(ev uint32)) {
	critical.Do(func() { s.handler = h })
}
