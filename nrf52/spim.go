//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"machine"
	"runtime/interrupt"
	"unsafe"

	"github.com/davidlenfesty/embassy/spi"
)

// SPIM3 is the high-speed SPI master; its interrupt line is dedicated,
// unlike the SPIM0..2 lines shared with TWIM.
var SPIM3 = &SPIMPort{regs: nrf.SPIM3}

// SPIMPort adapts a SPIM instance to the spi.Port contract. EasyDMA
// clocks both buffers in one go; EVENTS_END is the transaction
// completion.
type SPIMPort struct {
	regs    *nrf.SPIM_Type
	handler func(ev uint32)
}

var _ spi.Port = (*SPIMPort)(nil)

// Frequency register values for SPIM.FREQUENCY.
const (
	Freq1MHz = nrf.SPIM_FREQUENCY_FREQUENCY_M1
	Freq8MHz = nrf.SPIM_FREQUENCY_FREQUENCY_M8
)

// Configure muxes the pins and wires the interrupt. freq is one of the
// Freq register values above.
func (s *SPIMPort) Configure(sck, mosi, miso machine.Pin, freq uint32) *SPIMPort {
	sck.Configure(machine.PinConfig{Mode: machine.PinOutput})
	mosi.Configure(machine.PinConfig{Mode: machine.PinOutput})
	miso.Configure(machine.PinConfig{Mode: machine.PinInput})

	r := s.regs
	r.PSEL.SCK.Set(uint32(sck))
	r.PSEL.MOSI.Set(uint32(mosi))
	r.PSEL.MISO.Set(uint32(miso))
	r.FREQUENCY.Set(freq)
	r.CONFIG.Set(0) // mode 0, MSB first
	r.ORC.Set(0)    // zero padding when tx is shorter
	r.ENABLE.Set(nrf.SPIM_ENABLE_ENABLE_Enabled)

	r.EVENTS_END.Set(0)
	r.INTENSET.Set(nrf.SPIM_INTENSET_END_Msk)
	intr := interrupt.New(nrf.IRQ_SPIM3, spim3Interrupt)
	intr.Enable()
	return s
}

func spim3Interrupt(interrupt.Interrupt) {
	s := SPIM3
	if s.regs.EVENTS_END.Get() != 0 {
		s.regs.EVENTS_END.Set(0)
		if h := s.handler; h != nil {
			h(spi.EvDone)
		}
	}
}

// Begin starts one full-duplex transaction.
func (s *SPIMPort) Begin(tx, rx []byte) {
	r := s.regs
	if len(tx) > 0 {
		r.TXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&tx[0]))))
	}
	r.TXD.MAXCNT.Set(uint32(len(tx)))
	if len(rx) > 0 {
		r.RXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&rx[0]))))
	}
	r.RXD.MAXCNT.Set(uint32(len(rx)))
	r.EVENTS_END.Set(0)
	r.TASKS_START.Set(1)
}

// Abort stops an in-flight transaction and quiesces the bus.
func (s *SPIMPort) Abort() {
	r := s.regs
	r.EVENTS_STOPPED.Set(0)
	r.TASKS_STOP.Set(1)
	for r.EVENTS_STOPPED.Get() == 0 {
	}
	r.EVENTS_END.Set(0)
}

// SetHandler installs the event consumer.
func (s *SPIMPort) SetHandler(h func(ev uint32)) { s.handler = h }
