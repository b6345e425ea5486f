//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"runtime/interrupt"

	"github.com/davidlenfesty/embassy/clock"
)

// The RTC runs off the 32.768 kHz LFCLK with a unity prescaler.
const rtcHz = clock.Hertz(32768)

// RTC1 is the counter backing the process clock.
var RTC1 = &RTC{regs: nrf.RTC1}

// RTC wraps one real-time counter instance as a clock.Counter. The
// counter is 24 bits wide; compare channel 0 is the driver's.
type RTC struct {
	regs   *nrf.RTC_Type
	driver *clock.Driver
}

var _ clock.Counter = (*RTC)(nil)

// Configure starts the LFCLK, clears and starts the counter, wires the
// compare interrupt and returns the clock driver to pass to clock.Init.
func (r *RTC) Configure() *clock.Driver {
	nrf.CLOCK.EVENTS_LFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_LFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_LFCLKSTARTED.Get() == 0 {
	}

	r.regs.PRESCALER.Set(0)
	r.regs.EVTENSET.Set(nrf.RTC_EVTENSET_COMPARE0_Msk)
	r.regs.TASKS_CLEAR.Set(1)
	r.regs.TASKS_START.Set(1)

	d := clock.NewDriver(r, rtcHz)
	r.driver = d
	intr := interrupt.New(nrf.IRQ_RTC1, rtc1Interrupt)
	intr.Enable()
	d.Start()
	return d
}

func rtc1Interrupt(interrupt.Interrupt) {
	RTC1.regs.EVENTS_COMPARE[0].Set(0)
	if d := RTC1.driver; d != nil {
		d.HandleInterrupt()
	}
}

// Read returns the raw 24-bit count.
func (r *RTC) Read() uint32 { return r.regs.COUNTER.Get() }

// Width is the counter width in bits.
func (r *RTC) Width() uint { return 24 }

// SetCompare programs compare channel 0.
func (r *RTC) SetCompare(raw uint32) { r.regs.CC[0].Set(raw & 0x00FFFFFF) }

// EnableCompare gates the compare-match interrupt source.
func (r *RTC) EnableCompare(on bool) {
	if on {
		r.regs.INTENSET.Set(nrf.RTC_INTENSET_COMPARE0_Msk)
	} else {
		r.regs.INTENCLR.Set(nrf.RTC_INTENCLR_COMPARE0_Msk)
	}
}
