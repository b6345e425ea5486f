//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"machine"
	"runtime/interrupt"

	"github.com/davidlenfesty/embassy/gpio"
)

// gpioteChannels is the detector count; each PinIn owns one for its
// lifetime.
const gpioteChannels = 8

var (
	gpiotePins [gpioteChannels]*PinIn
	gpioteIRQ  interrupt.Interrupt
	gpioteInit bool
)

// PinIn wraps a pin and one GPIOTE channel as a gpio.EdgePin. The
// channel assignment is part of board wiring, fixed at construction.
type PinIn struct {
	pin     machine.Pin
	ch      uint8
	handler func(rising bool)
}

var _ gpio.EdgePin = (*PinIn)(nil)

// NewPinIn binds pin to GPIOTE channel ch. Reusing a channel is a
// wiring bug and panics.
func NewPinIn(pin machine.Pin, ch uint8) *PinIn {
	if ch >= gpioteChannels {
		panic("nrf52: gpiote channel out of range")
	}
	if gpiotePins[ch] != nil {
		panic("nrf52: gpiote channel already bound")
	}
	pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	p := &PinIn{pin: pin, ch: ch}
	gpiotePins[ch] = p
	if !gpioteInit {
		gpioteInit = true
		gpioteIRQ = interrupt.New(nrf.IRQ_GPIOTE, gpioteInterrupt)
		gpioteIRQ.Enable()
	}
	return p
}

// Get reads the line level.
func (p *PinIn) Get() bool { return p.pin.Get() }

// Watch arms the detector for the selected transitions.
func (p *PinIn) Watch(rising, falling bool, h func(rising bool)) {
	var pol uint32
	switch {
	case rising && falling:
		pol = nrf.GPIOTE_CONFIG_POLARITY_Toggle
	case rising:
		pol = nrf.GPIOTE_CONFIG_POLARITY_LoToHi
	default:
		pol = nrf.GPIOTE_CONFIG_POLARITY_HiToLo
	}
	p.handler = h
	cfg := uint32(nrf.GPIOTE_CONFIG_MODE_Event)<<nrf.GPIOTE_CONFIG_MODE_Pos |
		uint32(p.pin)<<nrf.GPIOTE_CONFIG_PSEL_Pos |
		pol<<nrf.GPIOTE_CONFIG_POLARITY_Pos
	nrf.GPIOTE.CONFIG[p.ch].Set(cfg)
	nrf.GPIOTE.EVENTS_IN[p.ch].Set(0)
	nrf.GPIOTE.INTENSET.Set(1 << p.ch)
}

// Unwatch disarms the detector and drops the handler.
func (p *PinIn) Unwatch() {
	nrf.GPIOTE.INTENCLR.Set(1 << p.ch)
	nrf.GPIOTE.CONFIG[p.ch].Set(0)
	p.handler = nil
}

// EventEndpoint is the channel's IN event register on the PPI fabric.
func (p *PinIn) EventEndpoint() uint32 {
	return uint32(regEndpoint(&nrf.GPIOTE.EVENTS_IN[p.ch]))
}

func gpioteInterrupt(interrupt.Interrupt) {
	for ch := 0; ch < gpioteChannels; ch++ {
		if nrf.GPIOTE.EVENTS_IN[ch].Get() == 0 {
			continue
		}
		nrf.GPIOTE.EVENTS_IN[ch].Set(0)
		p := gpiotePins[ch]
		if p == nil || p.handler == nil {
			continue
		}
		// Polarity Toggle does not say which way the line went; the
		// level just after the edge does.
		p.handler(p.pin.Get())
	}
}
