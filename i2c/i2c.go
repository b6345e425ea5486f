// Package i2c implements the asynchronous I2C master driver over a
// transaction port, with the bus fault taxonomy mapped to typed
// sentinels and a blocking adaptor satisfying the TinyGo drivers.I2C
// contract.
package i2c

import (
	"context"

	"tinygo.org/x/drivers"

	"github.com/davidlenfesty/embassy/exec"
)

// Port event word.
const (
	// EvDone reports a finished transaction.
	EvDone uint32 = 1 << iota
	// EvAddrNACK reports no acknowledge on the address byte.
	EvAddrNACK
	// EvDataNACK reports a not-acknowledged data byte.
	EvDataNACK
	// EvArbLost reports arbitration lost to another master.
	EvArbLost
	// EvBusFault reports an illegal start/stop condition on the wire.
	EvBusFault
)

const evFault = EvAddrNACK | EvDataNACK | EvArbLost | EvBusFault

// Bus fault sentinels, surfaced as transaction results. All match
// exec.ErrFault; an address NACK usually just means the device is
// absent, so callers probe with errors.Is(err, ErrAddrNACK).
var (
	ErrAddrNACK    = exec.Fault("i2c: address not acknowledged")
	ErrDataNACK    = exec.Fault("i2c: data not acknowledged")
	ErrArbitration = exec.Fault("i2c: arbitration lost")
	ErrBusFault    = exec.Fault("i2c: bus fault")
)

// Port is the register surface of one I2C master instance.
type Port interface {
	// Begin starts one transaction against addr: write w, then read
	// len(r) bytes under a repeated start. Completion or fault arrives
	// on the handler.
	Begin(addr uint16, w, r []byte)
	// Abort stops an in-flight transaction and quiesces the bus. No
	// completion fires afterwards.
	Abort()
	// SetHandler installs the interrupt body events are delivered to.
	SetHandler(h func(ev uint32))
}

// I2C runs one transaction at a time; a concurrent Tx is rejected
// with exec.ErrBusy.
type I2C struct {
	port Port
	cell exec.Cell
}

// New wraps a port and installs the interrupt handler.
func New(p Port) *I2C {
	d := &I2C{port: p}
	p.SetHandler(d.irq)
	return d
}

func (d *I2C) irq(ev uint32) {
	if f := ev & evFault; f != 0 {
		d.cell.Fail(f)
		return
	}
	if ev&EvDone != 0 {
		d.cell.Complete(ev)
	}
}

// Tx writes w to the device at addr, then reads len(r) bytes under a
// repeated start, as one transaction. Either buffer may be empty.
func (d *I2C) Tx(ctx context.Context, addr uint16, w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	wk := exec.NewWaker()
	if err := d.cell.Arm(wk); err != nil {
		return err
	}
	d.port.Begin(addr, w, r)
	flags, failed, err := exec.Await(ctx, &d.cell, wk, d.port.Abort)
	if err != nil {
		return err
	}
	if failed {
		return busFault(flags)
	}
	return nil
}

// Blocking adapts the driver to the TinyGo drivers.I2C contract.
// Operations run on the background context and cannot be cancelled.
func (d *I2C) Blocking() Blocking { return Blocking{d: d} }

// Blocking is the drivers.I2C face of an I2C instance.
type Blocking struct {
	d *I2C
}

var _ drivers.I2C = Blocking{}

// Tx writes w then reads into r at addr.
func (b Blocking) Tx(addr uint16, w, r []byte) error {
	return b.d.Tx(context.Background(), addr, w, r)
}

func busFault(flags uint32) error {
	switch {
	case flags&EvAddrNACK != 0:
		return ErrAddrNACK
	case flags&EvDataNACK != 0:
		return ErrDataNACK
	case flags&EvArbLost != 0:
		return ErrArbitration
	case flags&EvBusFault != 0:
		return ErrBusFault
	}
	return exec.ErrFault
}
