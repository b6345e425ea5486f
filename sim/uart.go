package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/x/mathx"
)

// Event word layout of the serial port, bit for bit the uart driver's
// contract.
const (
	uartRxReady uint32 = 1 << iota
	uartTxSpace
	uartTxIdle
	uartOverrun
	uartFraming
	uartBreak
)

const uartFaults = uartOverrun | uartFraming | uartBreak

const (
	uartRxCap = 64
	uartTxCap = 8
)

// UARTPort is one end of a simulated serial wire. The wire is
// instantaneous: queued bytes land in the peer's receive FIFO as soon
// as the transmitter is free. Holding the transmitter wedges the line
// for timeout testing.
type UARTPort struct {
	peer    *UARTPort
	rx      []byte
	tx      []byte
	pend    uint32
	enabled uint32
	handler func(ev uint32)
	txHold  bool
}

// NewUARTPair returns two cross-connected serial ports.
func NewUARTPair() (*UARTPort, *UARTPort) {
	a := &UARTPort{}
	b := &UARTPort{}
	a.peer, b.peer = b, a
	critical.Do(func() {
		a.update()
		b.update()
	})
	return a, b
}

// TryRead drains up to len(p) buffered bytes.
func (u *UARTPort) TryRead(p []byte) int {
	var n int
	critical.Do(func() {
		n = copy(p, u.rx)
		u.rx = u.rx[:copy(u.rx, u.rx[n:])]
		u.update()
	})
	return n
}

// TryWrite queues up to len(p) bytes on the transmitter.
func (u *UARTPort) TryWrite(p []byte) int {
	var n int
	critical.Do(func() {
		n = mathx.Min(uartTxCap-len(u.tx), len(p))
		u.tx = append(u.tx, p[:n]...)
		u.drain()
		u.update()
	})
	return n
}

// TxIdle reports the transmit path drained and the line free.
func (u *UARTPort) TxIdle() bool {
	var idle bool
	critical.Do(func() { idle = len(u.tx) == 0 && !u.txHold })
	return idle
}

// SetHandler installs the interrupt body.
func (u *UARTPort) SetHandler(h func(ev uint32)) {
	critical.Do(func() { u.handler = h })
}

// Enable unmasks events; conditions already pending deliver at once.
func (u *UARTPort) Enable(ev uint32) {
	critical.Do(func() {
		u.enabled |= ev
		u.dispatch()
	})
}

// Disable masks events.
func (u *UARTPort) Disable(ev uint32) {
	critical.Do(func() { u.enabled &^= ev })
}

// SetTxHold stalls or releases the transmitter. While held, queued
// bytes stay in the FIFO and no transmit event fires.
func (u *UARTPort) SetTxHold(hold bool) {
	critical.Do(func() {
		u.txHold = hold
		if !hold {
			u.drain()
		}
		u.update()
	})
}

// InjectFault latches a receiver fault as if the wire glitched.
func (u *UARTPort) InjectFault(ev uint32) {
	critical.Do(func() {
		u.pend |= ev & uartFaults
		u.dispatch()
	})
}

// drain moves queued bytes onto the wire. Caller holds the critical
// section.
func (u *UARTPort) drain() {
	if u.txHold || u.peer == nil {
		return
	}
	for _, b := range u.tx {
		u.peer.receive(b)
	}
	u.tx = u.tx[:0]
}

// receive takes one byte off the wire. Caller holds the critical
// section.
func (u *UARTPort) receive(b byte) {
	if len(u.rx) >= uartRxCap {
		u.pend |= uartOverrun
	} else {
		u.rx = append(u.rx, b)
	}
	u.update()
}

// update recomputes the level conditions and dispatches. Caller holds
// the critical section.
func (u *UARTPort) update() {
	u.pend &^= uartRxReady | uartTxSpace | uartTxIdle
	if len(u.rx) > 0 {
		u.pend |= uartRxReady
	}
	if !u.txHold {
		if len(u.tx) < uartTxCap {
			u.pend |= uartTxSpace
		}
		if len(u.tx) == 0 {
			u.pend |= uartTxIdle
		}
	}
	u.dispatch()
}

// dispatch delivers pending unmasked events. Fault latches clear on
// delivery, like a read-to-clear status register; level conditions
// stand until their cause goes away. Caller holds the critical
// section.
func (u *UARTPort) dispatch() {
	ev := u.pend & u.enabled
	if ev == 0 || u.handler == nil {
		return
	}
	u.pend &^= ev & uartFaults
	u.handler(ev)
}
