package sim

import "github.com/davidlenfesty/embassy/critical"

// Event word layout of the I2C port, mirroring the i2c driver's
// contract.
const (
	i2cDone uint32 = 1 << iota
	i2cAddrNACK
	i2cDataNACK
	i2cArbLost
	i2cBusFault
)

// I2CBus is a simulated I2C master with an address-mapped device set.
// Transactions against an empty address NACK; FailNext injects any
// other bus fault.
type I2CBus struct {
	m       *Machine
	latency int
	dev     map[uint16]func(w, r []byte)
	fail    uint32
	hold    bool
	op      *busOp
	handler func(ev uint32)
}

func newI2CBus(m *Machine, latency int) *I2CBus {
	return &I2CBus{m: m, latency: latency, dev: make(map[uint16]func(w, r []byte))}
}

// AddDevice puts a device on the bus. The handler sees the written
// bytes and fills the read buffer.
func (b *I2CBus) AddDevice(addr uint16, dev func(w, r []byte)) {
	critical.Do(func() { b.dev[addr] = dev })
}

// FailNext makes the next transaction fail with the given event
// flags.
func (b *I2CBus) FailNext(ev uint32) {
	critical.Do(func() { b.fail = ev })
}

// SetHold wedges the bus: transactions begun while held never
// complete. Releasing the hold lets an in-flight transaction wait out
// its remaining latency.
func (b *I2CBus) SetHold(hold bool) {
	critical.Do(func() {
		b.hold = hold
		if b.op != nil {
			b.op.hold = hold
		}
	})
}

// Begin starts one write-then-read transaction against addr.
func (b *I2CBus) Begin(addr uint16, w, r []byte) {
	critical.Do(func() {
		ev := i2cDone
		switch {
		case b.fail != 0:
			ev = b.fail
			b.fail = 0
		case b.dev[addr] == nil:
			ev = i2cAddrNACK
		default:
			b.dev[addr](w, r)
		}
		b.op = b.m.schedule(b.latency, b.hold, func() {
			b.op = nil
			if b.handler != nil {
				b.handler(ev)
			}
		})
	})
}

// Abort drops an in-flight transaction without completing it.
func (b *I2CBus) Abort() {
	critical.Do(func() {
		if b.op != nil {
			b.m.cancelOp(b.op)
			b.op = nil
		}
	})
}

// SetHandler installs the interrupt body.
func (b *I2CBus) SetHandler(h func(ev uint32)) {
	critical.Do(func() { b.handler = h })
}

// MemDevice models the ubiquitous pointer-addressed register file: the
// first written byte sets the register pointer, further written bytes
// store from there, and reads return registers from the pointer on.
func MemDevice(regs []byte) func(w, r []byte) {
	ptr := 0
	return func(w, r []byte) {
		if len(w) > 0 {
			ptr = int(w[0])
			for i, v := range w[1:] {
				if ptr+i < len(regs) {
					regs[ptr+i] = v
				}
			}
		}
		for i := range r {
			if ptr+i < len(regs) {
				r[i] = regs[ptr+i]
			} else {
				r[i] = 0xFF
			}
		}
	}
}
