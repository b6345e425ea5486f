// Package uart implements the asynchronous serial driver over a
// byte-FIFO port. Reads return as soon as any data is available, the
// way serial consumers want it; ReadFull and Write move whole buffers,
// suspending whenever the FIFO runs dry or fills up.
package uart

import (
	"context"

	"github.com/davidlenfesty/embassy/exec"
)

// Port event word. Events are level conditions latched by the port:
// enabling an event whose condition already holds delivers it to the
// handler immediately, so a byte arriving between a failed TryRead and
// Enable is never lost.
const (
	// EvRxReady reports at least one readable byte.
	EvRxReady uint32 = 1 << iota
	// EvTxSpace reports room in the transmit FIFO.
	EvTxSpace
	// EvTxIdle reports the transmitter drained and the line idle.
	EvTxIdle
	// EvOverrun reports receive data lost to a full FIFO.
	EvOverrun
	// EvFraming reports a corrupt stop bit.
	EvFraming
	// EvBreak reports a break condition on the line.
	EvBreak
)

const evRxFault = EvOverrun | EvFraming | EvBreak

// Receiver fault sentinels, surfaced as read results. All match
// exec.ErrFault.
var (
	ErrOverrun = exec.Fault("uart: rx overrun")
	ErrFraming = exec.Fault("uart: framing error")
	ErrBreak   = exec.Fault("uart: break condition")
)

// Port is the register surface of one serial instance: non-blocking
// FIFO access plus event delivery into the driver's interrupt handler.
type Port interface {
	// TryRead drains up to len(p) buffered bytes, never blocking.
	TryRead(p []byte) int
	// TryWrite queues up to len(p) bytes, never blocking.
	TryWrite(p []byte) int
	// TxIdle reports the transmit path completely drained.
	TxIdle() bool
	// SetHandler installs the interrupt body events are delivered to.
	SetHandler(h func(ev uint32))
	// Enable unmasks events; pending ones deliver immediately.
	Enable(ev uint32)
	// Disable masks events.
	Disable(ev uint32)
}

// UART runs one async operation per direction: one reader and one
// writer may be in flight concurrently, a second of either kind is
// rejected with exec.ErrBusy.
type UART struct {
	port Port
	rx   exec.Cell
	tx   exec.Cell
}

// New wraps a port and installs the interrupt handler.
func New(p Port) *UART {
	u := &UART{port: p}
	p.SetHandler(u.irq)
	return u
}

// irq runs in interrupt context. Each direction's sources are masked
// before the cell completes so a level condition cannot land twice on
// one armed operation.
func (u *UART) irq(ev uint32) {
	if r := ev & (EvRxReady | evRxFault); r != 0 {
		u.port.Disable(EvRxReady | evRxFault)
		if r&evRxFault != 0 {
			u.rx.Fail(r)
		} else {
			u.rx.Complete(r)
		}
	}
	if t := ev & (EvTxSpace | EvTxIdle); t != 0 {
		u.port.Disable(EvTxSpace | EvTxIdle)
		u.tx.Complete(t)
	}
}

func (u *UART) disarmRx() { u.port.Disable(EvRxReady | evRxFault) }
func (u *UART) disarmTx() { u.port.Disable(EvTxSpace | EvTxIdle) }

// Read returns at least one byte, suspending until the receiver has
// any. Short reads are normal.
func (u *UART) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := u.port.TryRead(p); n > 0 {
			return n, nil
		}
		w := exec.NewWaker()
		if err := u.rx.Arm(w); err != nil {
			return 0, err
		}
		u.port.Enable(EvRxReady | evRxFault)
		flags, failed, err := exec.Await(ctx, &u.rx, w, u.disarmRx)
		if err != nil {
			return 0, err
		}
		if failed {
			return 0, rxFault(flags)
		}
	}
}

// ReadFull fills p completely.
func (u *UART) ReadFull(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n, err := u.Read(ctx, p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write queues the whole buffer, suspending whenever the transmit
// FIFO fills. It returns how many bytes were accepted before any
// error.
func (u *UART) Write(ctx context.Context, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := u.port.TryWrite(p)
		total += n
		p = p[n:]
		if len(p) == 0 {
			break
		}
		w := exec.NewWaker()
		if err := u.tx.Arm(w); err != nil {
			return total, err
		}
		u.port.Enable(EvTxSpace)
		if _, _, err := exec.Await(ctx, &u.tx, w, u.disarmTx); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flush suspends until every queued byte has left the shifter.
func (u *UART) Flush(ctx context.Context) error {
	if u.port.TxIdle() {
		return nil
	}
	w := exec.NewWaker()
	if err := u.tx.Arm(w); err != nil {
		return err
	}
	u.port.Enable(EvTxIdle)
	_, _, err := exec.Await(ctx, &u.tx, w, u.disarmTx)
	return err
}

func rxFault(flags uint32) error {
	switch {
	case flags&EvOverrun != 0:
		return ErrOverrun
	case flags&EvFraming != 0:
		return ErrFraming
	case flags&EvBreak != 0:
		return ErrBreak
	}
	return exec.ErrFault
}
