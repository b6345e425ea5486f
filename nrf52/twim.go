//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"machine"
	"runtime/interrupt"
	"unsafe"

	"github.com/davidlenfesty/embassy/i2c"
)

// TWIM1 is the two-wire master. TWIM0 shares silicon with SPIM0 and is
// left for a stack that needs the shared instance.
var TWIM1 = &TWIMPort{regs: nrf.TWIM1}

// TWIMPort adapts a TWIM instance to the i2c.Port contract. Shortcuts
// chain write, repeated-start read and stop without CPU involvement;
// EVENTS_STOPPED is the transaction completion and EVENTS_ERROR the
// fault path, decoded from ERRORSRC.
type TWIMPort struct {
	regs    *nrf.TWIM_Type
	handler func(ev uint32)
}

var _ i2c.Port = (*TWIMPort)(nil)

// TWIM bus frequency register values.
const (
	Freq100kHz = nrf.TWIM_FREQUENCY_FREQUENCY_K100
	Freq400kHz = nrf.TWIM_FREQUENCY_FREQUENCY_K400
)

// Configure muxes the pins and wires the interrupt.
func (t *TWIMPort) Configure(scl, sda machine.Pin, freq uint32) *TWIMPort {
	scl.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	sda.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	r := t.regs
	r.PSEL.SCL.Set(uint32(scl))
	r.PSEL.SDA.Set(uint32(sda))
	r.FREQUENCY.Set(freq)
	r.ENABLE.Set(nrf.TWIM_ENABLE_ENABLE_Enabled)

	r.EVENTS_STOPPED.Set(0)
	r.EVENTS_ERROR.Set(0)
	r.INTENSET.Set(nrf.TWIM_INTENSET_STOPPED_Msk | nrf.TWIM_INTENSET_ERROR_Msk)
	intr := interrupt.New(nrf.IRQ_SPIM1_SPIS1_TWIM1_TWIS1_SPI1_TWI1, twim1Interrupt)
	intr.Enable()
	return t
}

func twim1Interrupt(interrupt.Interrupt) {
	t := TWIM1
	r := t.regs
	if r.EVENTS_ERROR.Get() != 0 {
		r.EVENTS_ERROR.Set(0)
		// Stop the transaction the shortcut chain was still driving.
		r.TASKS_STOP.Set(1)
		src := r.ERRORSRC.Get()
		r.ERRORSRC.Set(src) // write one to clear
		var ev uint32
		switch {
		case src&nrf.TWIM_ERRORSRC_ANACK_Msk != 0:
			ev = i2c.EvAddrNACK
		case src&nrf.TWIM_ERRORSRC_DNACK_Msk != 0:
			ev = i2c.EvDataNACK
		default:
			ev = i2c.EvBusFault
		}
		if h := t.handler; h != nil {
			h(ev)
		}
		return
	}
	if r.EVENTS_STOPPED.Get() != 0 {
		r.EVENTS_STOPPED.Set(0)
		if h := t.handler; h != nil {
			h(i2c.EvDone)
		}
	}
}

// Begin starts one write-then-read transaction against addr.
func (t *TWIMPort) Begin(addr uint16, w, r []byte) {
	regs := t.regs
	regs.ADDRESS.Set(uint32(addr))
	if len(w) > 0 {
		regs.TXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&w[0]))))
	}
	regs.TXD.MAXCNT.Set(uint32(len(w)))
	if len(r) > 0 {
		regs.RXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&r[0]))))
	}
	regs.RXD.MAXCNT.Set(uint32(len(r)))

	regs.EVENTS_STOPPED.Set(0)
	regs.EVENTS_ERROR.Set(0)
	switch {
	case len(w) > 0 && len(r) > 0:
		regs.SHORTS.Set(nrf.TWIM_SHORTS_LASTTX_STARTRX_Msk | nrf.TWIM_SHORTS_LASTRX_STOP_Msk)
		regs.TASKS_STARTTX.Set(1)
	case len(w) > 0:
		regs.SHORTS.Set(nrf.TWIM_SHORTS_LASTTX_STOP_Msk)
		regs.TASKS_STARTTX.Set(1)
	default:
		regs.SHORTS.Set(nrf.TWIM_SHORTS_LASTRX_STOP_Msk)
		regs.TASKS_STARTRX.Set(1)
	}
}

// Abort stops an in-flight transaction and quiesces the bus.
func (t *TWIMPort) Abort() {
	r := t.regs
	r.SHORTS.Set(0)
	r.EVENTS_STOPPED.Set(0)
	r.TASKS_STOP.Set(1)
	for r.EVENTS_STOPPED.Get() == 0 {
	}
	r.EVENTS_STOPPED.Set(0)
}

// SetHandler installs the event consumer.
func (t *TWIMPort) SetHandler(h func(ev uint32)) { t.handler = h }
