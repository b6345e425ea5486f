// Package spi implements the asynchronous full-duplex SPI master
// driver over a transaction port, plus a blocking adaptor so existing
// TinyGo device drivers run on top unchanged.
package spi

import (
	"context"

	"tinygo.org/x/drivers"

	"github.com/davidlenfesty/embassy/exec"
)

// EvDone reports a finished transaction in the port event word.
const EvDone uint32 = 1 << 0

// Port is the register surface of one SPI master instance.
type Port interface {
	// Begin starts one transaction clocking max(len(tx), len(rx))
	// bytes: tx is padded with zeros when shorter, surplus receive
	// bytes are dropped when rx is shorter. Completion arrives on the
	// handler.
	Begin(tx, rx []byte)
	// Abort stops an in-flight transaction and quiesces the bus. No
	// completion fires afterwards.
	Abort()
	// SetHandler installs the interrupt body events are delivered to.
	SetHandler(h func(ev uint32))
}

// SPI runs one transaction at a time; a concurrent Transfer is
// rejected with exec.ErrBusy.
type SPI struct {
	port Port
	cell exec.Cell
}

// New wraps a port and installs the interrupt handler.
func New(p Port) *SPI {
	s := &SPI{port: p}
	p.SetHandler(s.irq)
	return s
}

func (s *SPI) irq(ev uint32) {
	if ev&EvDone != 0 {
		s.cell.Complete(ev)
	}
}

// Transfer clocks tx out while filling rx, suspending until the
// transaction completes. Either buffer may be nil for a half-duplex
// exchange.
func (s *SPI) Transfer(ctx context.Context, tx, rx []byte) error {
	if len(tx) == 0 && len(rx) == 0 {
		return nil
	}
	w := exec.NewWaker()
	if err := s.cell.Arm(w); err != nil {
		return err
	}
	s.port.Begin(tx, rx)
	_, failed, err := exec.Await(ctx, &s.cell, w, s.port.Abort)
	if err != nil {
		return err
	}
	if failed {
		return exec.ErrFault
	}
	return nil
}

// Blocking adapts the driver to the TinyGo drivers.SPI contract.
// Operations run on the background context and cannot be cancelled.
func (s *SPI) Blocking() Blocking { return Blocking{s: s} }

// Blocking is the drivers.SPI face of an SPI instance.
type Blocking struct {
	s *SPI
}

var _ drivers.SPI = Blocking{}

// Tx sends w while receiving into r.
func (b Blocking) Tx(w, r []byte) error {
	return b.s.Transfer(context.Background(), w, r)
}

// Transfer exchanges a single byte.
func (b Blocking) Transfer(c byte) (byte, error) {
	tx := [1]byte{c}
	var rx [1]byte
	if err := b.s.Transfer(context.Background(), tx[:], rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}
