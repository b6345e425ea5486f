//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"machine"
	"runtime/interrupt"
	"unsafe"

	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/uart"
)

// Baud rate register values for UARTE.BAUDRATE.
const (
	Baud9600   = nrf.UARTE_BAUDRATE_BAUDRATE_Baud9600
	Baud115200 = nrf.UARTE_BAUDRATE_BAUDRATE_Baud115200
	Baud1M     = nrf.UARTE_BAUDRATE_BAUDRATE_Baud1M
)

const (
	uarteRxCap = 64
	uarteTxCap = 32
)

// UARTE0 is the EasyDMA serial port.
var UARTE0 = &UARTEPort{regs: nrf.UARTE0}

// UARTEPort adapts a UARTE instance to the uart.Port contract. Receive
// runs a one-byte DMA restarted by the ENDRX->STARTRX shortcut, each
// byte landing in a software FIFO; transmit sends one DMA chunk at a
// time out of a staging buffer.
type UARTEPort struct {
	regs   *nrf.UARTE_Type
	rxPad  [1]byte
	rxBuf  [uarteRxCap]byte
	rxN    int
	txBuf  [uarteTxCap]byte
	txBusy bool

	pend    uint32
	enabled uint32
	handler func(ev uint32)
}

var _ uart.Port = (*UARTEPort)(nil)

// Configure muxes the pins, starts the receiver DMA and wires the
// interrupt. baud is one of the Baud register values above.
func (u *UARTEPort) Configure(tx, rx machine.Pin, baud uint32) *UARTEPort {
	tx.Configure(machine.PinConfig{Mode: machine.PinOutput})
	rx.Configure(machine.PinConfig{Mode: machine.PinInput})

	r := u.regs
	r.PSEL.TXD.Set(uint32(tx))
	r.PSEL.RXD.Set(uint32(rx))
	r.BAUDRATE.Set(baud)
	r.CONFIG.Set(0) // 8N1, no flow control
	r.ENABLE.Set(nrf.UARTE_ENABLE_ENABLE_Enabled)

	r.EVENTS_ENDRX.Set(0)
	r.EVENTS_ENDTX.Set(0)
	r.EVENTS_ERROR.Set(0)
	r.SHORTS.Set(nrf.UARTE_SHORTS_ENDRX_STARTRX_Msk)
	r.RXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&u.rxPad[0]))))
	r.RXD.MAXCNT.Set(1)
	r.INTENSET.Set(nrf.UARTE_INTENSET_ENDRX_Msk |
		nrf.UARTE_INTENSET_ENDTX_Msk |
		nrf.UARTE_INTENSET_ERROR_Msk)

	intr := interrupt.New(nrf.IRQ_UARTE0_UART0, uarte0Interrupt)
	intr.Enable()
	r.TASKS_STARTRX.Set(1)
	return u
}

func uarte0Interrupt(interrupt.Interrupt) { UARTE0.irq() }

// irq services ENDRX/ENDTX/ERROR. The ENDRX->STARTRX shortcut has
// already restarted the receive DMA by the time the handler reads the
// landing pad; at serial byte times the pad is stable for far longer
// than interrupt latency.
func (u *UARTEPort) irq() {
	critical.Do(func() {
		r := u.regs
		if r.EVENTS_ENDRX.Get() != 0 {
			r.EVENTS_ENDRX.Set(0)
			if u.rxN < uarteRxCap {
				u.rxBuf[u.rxN] = u.rxPad[0]
				u.rxN++
			} else {
				u.pend |= uart.EvOverrun
			}
		}
		if r.EVENTS_ENDTX.Get() != 0 {
			r.EVENTS_ENDTX.Set(0)
			u.txBusy = false
		}
		if r.EVENTS_ERROR.Get() != 0 {
			r.EVENTS_ERROR.Set(0)
			src := r.ERRORSRC.Get()
			r.ERRORSRC.Set(src) // write one to clear
			if src&nrf.UARTE_ERRORSRC_OVERRUN_Msk != 0 {
				u.pend |= uart.EvOverrun
			}
			if src&nrf.UARTE_ERRORSRC_FRAMING_Msk != 0 {
				u.pend |= uart.EvFraming
			}
			if src&nrf.UARTE_ERRORSRC_BREAK_Msk != 0 {
				u.pend |= uart.EvBreak
			}
		}
		u.update()
	})
}

// TryRead drains up to len(p) bytes from the software FIFO.
func (u *UARTEPort) TryRead(p []byte) int {
	var n int
	critical.Do(func() {
		n = copy(p, u.rxBuf[:u.rxN])
		u.rxN = copy(u.rxBuf[:], u.rxBuf[n:u.rxN])
		u.update()
	})
	return n
}

// TryWrite stages up to one DMA chunk. While a chunk is in flight no
// further bytes are accepted; the driver parks on EvTxSpace.
func (u *UARTEPort) TryWrite(p []byte) int {
	var n int
	critical.Do(func() {
		if u.txBusy {
			return
		}
		n = copy(u.txBuf[:], p)
		if n == 0 {
			return
		}
		r := u.regs
		r.TXD.PTR.Set(uint32(uintptr(unsafe.Pointer(&u.txBuf[0]))))
		r.TXD.MAXCNT.Set(uint32(n))
		r.EVENTS_ENDTX.Set(0)
		r.TASKS_STARTTX.Set(1)
		u.txBusy = true
		u.update()
	})
	return n
}

// TxIdle reports the transmit DMA finished.
func (u *UARTEPort) TxIdle() bool {
	var idle bool
	critical.Do(func() { idle = !u.txBusy })
	return idle
}

// SetHandler installs the event consumer.
func (u *UARTEPort) SetHandler(h func(ev uint32)) {
	critical.Do(func() { u.handler = h })
}

// Enable unmasks events; conditions already pending deliver at once.
func (u *UARTEPort) Enable(ev uint32) {
	critical.Do(func() {
		u.enabled |= ev
		u.dispatch()
	})
}

// Disable masks events.
func (u *UARTEPort) Disable(ev uint32) {
	critical.Do(func() { u.enabled &^= ev })
}

// update recomputes level conditions and dispatches. Caller holds the
// critical section.
func (u *UARTEPort) update() {
	u.pend &^= uart.EvRxReady | uart.EvTxSpace | uart.EvTxIdle
	if u.rxN > 0 {
		u.pend |= uart.EvRxReady
	}
	if !u.txBusy {
		u.pend |= uart.EvTxSpace | uart.EvTxIdle
	}
	u.dispatch()
}

// dispatch delivers pending unmasked events, clearing fault latches on
// delivery. Caller holds the critical section.
func (u *UARTEPort) dispatch() {
	ev := u.pend & u.enabled
	if ev == 0 || u.handler == nil {
		return
	}
	u.pend &^= ev & (uart.EvOverrun | uart.EvFraming | uart.EvBreak)
	u.handler(ev)
}
