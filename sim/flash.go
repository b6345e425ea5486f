package sim

import "github.com/davidlenfesty/embassy/critical"

// Event word layout of the flash controller, mirroring the flash
// driver's contract.
const (
	flashDone uint32 = 1 << iota
	flashProtected
	flashProg
	flashSeq
	flashMiss
)

// Unlock key pair the controller accepts, in order.
const (
	flashKey1 = 0x45670123
	flashKey2 = 0xCDEF89AB
)

// Flash is a simulated NOR flash controller: erased bytes read 0xFF,
// programming only clears bits, and program/erase retire through the
// machine's latency queue. It powers up locked.
type Flash struct {
	m       *Machine
	latency int
	mem     []byte
	page    uint32
	unit    uint32
	locked  bool
	keyed   bool
	fail    uint32
	hold    bool
	op      *busOp
	handler func(ev uint32)
}

func newFlash(m *Machine, cfg Config) *Flash {
	mem := make([]byte, cfg.FlashSize)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Flash{
		m:       m,
		latency: cfg.BusLatency,
		mem:     mem,
		page:    cfg.FlashPage,
		unit:    cfg.FlashUnit,
		locked:  true,
	}
}

// Size is the array size in bytes.
func (f *Flash) Size() uint32 { return uint32(len(f.mem)) }

// PageSize is the erase granule.
func (f *Flash) PageSize() uint32 { return f.page }

// WriteUnit is the programming granule.
func (f *Flash) WriteUnit() uint32 { return f.unit }

// Locked reports whether program and erase are disabled.
func (f *Flash) Locked() bool {
	var l bool
	critical.Do(func() { l = f.locked })
	return l
}

// Key feeds the unlock register. The documented key pair in order
// unlocks the controller; anything else resets the sequence.
func (f *Flash) Key(v uint32) {
	critical.Do(func() {
		switch {
		case !f.keyed && v == flashKey1:
			f.keyed = true
		case f.keyed && v == flashKey2:
			f.locked = false
			f.keyed = false
		default:
			f.keyed = false
		}
	})
}

// Lock re-engages write protection.
func (f *Flash) Lock() {
	critical.Do(func() {
		f.locked = true
		f.keyed = false
	})
}

// Read copies from the array. Available locked or not.
func (f *Flash) Read(off uint32, p []byte) {
	critical.Do(func() { copy(p, f.mem[off:]) })
}

// FailNext makes the next operation fail with the given event flags.
func (f *Flash) FailNext(ev uint32) {
	critical.Do(func() { f.fail = ev })
}

// SetHold wedges the controller: operations begun while held never
// complete. Releasing the hold lets an in-flight operation wait out
// its remaining latency.
func (f *Flash) SetHold(hold bool) {
	critical.Do(func() {
		f.hold = hold
		if f.op != nil {
			f.op.hold = hold
		}
	})
}

// Program writes one unit. NOR semantics: bits only clear, a 0 to 1
// transition is a verify failure.
func (f *Flash) Program(off uint32, p []byte) {
	critical.Do(func() {
		ev := flashDone
		switch {
		case f.fail != 0:
			ev = f.fail
			f.fail = 0
		case f.locked:
			ev = flashProtected
		case off%f.unit != 0 || uint32(len(p)) != f.unit || off+f.unit > uint32(len(f.mem)):
			ev = flashSeq
		default:
			for i, v := range p {
				old := f.mem[off+uint32(i)]
				if old&v != v {
					ev = flashProg
				}
				f.mem[off+uint32(i)] = old & v
			}
		}
		f.complete(ev)
	})
}

// ErasePage blanks one page.
func (f *Flash) ErasePage(off uint32) {
	critical.Do(func() {
		ev := flashDone
		switch {
		case f.fail != 0:
			ev = f.fail
			f.fail = 0
		case f.locked:
			ev = flashProtected
		case off%f.page != 0 || off+f.page > uint32(len(f.mem)):
			ev = flashSeq
		default:
			for i := uint32(0); i < f.page; i++ {
				f.mem[off+i] = 0xFF
			}
		}
		f.complete(ev)
	})
}

// SetHandler installs the interrupt body.
func (f *Flash) SetHandler(h func(ev uint32)) {
	critical.Do(func() { f.handler = h })
}

// complete queues the end-of-operation event. Caller holds the
// critical section.
func (f *Flash) complete(ev uint32) {
	f.op = f.m.schedule(f.latency, f.hold, func() {
		f.op = nil
		if f.handler != nil {
			f.handler(ev)
		}
	})
}
