//go:build rp2040 || rp2350

package uart

import (
	"github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/davidlenfesty/embassy/critical"
)

// RP2Port adapts a tinygo-uartx PL011 driver to the Port contract. The
// uartx ISR drains the hardware FIFO into its ring buffers and posts
// coalesced readiness notifications; a pump goroutine turns those into
// the level-latched event words the portable driver consumes. Faults
// are not surfaced by uartx, so the RP2 backend never reports them.
type RP2Port struct {
	u       *uartx.UART
	enabled uint32
	handler func(ev uint32)
	kick    chan struct{}
}

// NewRP2Port wraps a configured uartx instance. Call uartx.Configure
// before handing the instance over.
func NewRP2Port(u *uartx.UART) *RP2Port {
	p := &RP2Port{u: u, kick: make(chan struct{}, 1)}
	go p.pump()
	return p
}

// NewRP2 is the one-step constructor boards use:
//
//	u := uart.NewRP2(uartx.UART0)
func NewRP2(u *uartx.UART) *UART { return New(NewRP2Port(u)) }

// TryRead drains up to len(p) buffered bytes, never blocking.
func (p *RP2Port) TryRead(b []byte) int { return p.u.TryRead(b) }

// TryWrite queues up to len(p) bytes, never blocking.
func (p *RP2Port) TryWrite(b []byte) int { return p.u.TryWrite(b) }

// TxIdle reports the software transmit buffer drained. The PL011 FIFO
// behind it empties within a character time; on-the-wire completion is
// what uartx's own Flush polls for.
func (p *RP2Port) TxIdle() bool { return p.u.TxBuffer.Used() == 0 }

// SetHandler installs the event consumer.
func (p *RP2Port) SetHandler(h func(ev uint32)) {
	critical.Do(func() { p.handler = h })
}

// Enable unmasks events. Conditions that already hold deliver at once,
// so a byte landing between a failed TryRead and Enable is not lost.
func (p *RP2Port) Enable(ev uint32) {
	critical.Do(func() { p.enabled |= ev })
	p.wake()
}

// Disable masks events.
func (p *RP2Port) Disable(ev uint32) {
	critical.Do(func() { p.enabled &^= ev })
}

func (p *RP2Port) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// pump translates uartx's coalesced wakes into event dispatches. It
// re-checks the level conditions on every wake, so spurious or merged
// notifications are harmless.
func (p *RP2Port) pump() {
	for {
		select {
		case <-p.u.Readable():
		case <-p.u.Writable():
		case <-p.kick:
		}
		p.dispatch()
	}
}

func (p *RP2Port) dispatch() {
	var (
		h  func(uint32)
		ev uint32
	)
	critical.Do(func() {
		ev = p.pending() & p.enabled
		h = p.handler
	})
	if ev != 0 && h != nil {
		h(ev)
	}
}

// pending recomputes the level conditions. Caller holds the critical
// section.
func (p *RP2Port) pending() uint32 {
	var ev uint32
	if p.u.Buffered() > 0 {
		ev |= EvRxReady
	}
	if p.u.TxFree() > 0 {
		ev |= EvTxSpace
	}
	if p.u.TxBuffer.Used() == 0 {
		ev |= EvTxIdle
	}
	return ev
}
