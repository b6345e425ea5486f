// Package flash implements the asynchronous embedded flash driver:
// key-sequence write protection, page-granular erase and write-unit
// programming with end-of-operation completion through the interrupt
// path, and memory-mapped reads that never suspend.
package flash

import (
	"context"
	"errors"

	"github.com/davidlenfesty/embassy/exec"
)

// Controller event word.
const (
	// EvDone reports end of a program or erase operation.
	EvDone uint32 = 1 << iota
	// EvProtected reports an operation against a locked controller.
	EvProtected
	// EvProg reports a programming verify failure.
	EvProg
	// EvSeq reports an operation issued out of sequence.
	EvSeq
	// EvMiss reports a data miss during fast programming.
	EvMiss
)

const evFault = EvProtected | EvProg | EvSeq | EvMiss

// Unlock key sequence, written to the controller's key register in
// order.
const (
	unlockKey1 = 0x45670123
	unlockKey2 = 0xCDEF89AB
)

var (
	// ErrProtected reports program or erase against a locked
	// controller.
	ErrProtected = exec.Fault("flash: write protected")
	// ErrProg reports a programming verify failure, usually writing to
	// a range that was not erased first.
	ErrProg = exec.Fault("flash: programming failed")
	// ErrSeq reports a rejected key or operation sequence.
	ErrSeq = exec.Fault("flash: operation out of sequence")
	// ErrMiss reports a data miss during fast programming.
	ErrMiss = exec.Fault("flash: data miss during programming")

	// ErrUnaligned rejects offsets or lengths off the required grain.
	ErrUnaligned = errors.New("flash: unaligned offset or length")
	// ErrBounds rejects ranges outside the array.
	ErrBounds = errors.New("flash: address out of range")
)

// Controller is the register surface of the embedded flash interface.
// Program and ErasePage run asynchronously; completion or fault
// arrives on the handler. Neither can be stopped once started.
type Controller interface {
	// Size is the array size in bytes.
	Size() uint32
	// PageSize is the erase granule.
	PageSize() uint32
	// WriteUnit is the programming granule.
	WriteUnit() uint32
	// Locked reports whether program and erase are disabled.
	Locked() bool
	// Key feeds one word to the unlock register.
	Key(v uint32)
	// Lock re-engages write protection.
	Lock()
	// Read copies from the memory-mapped array. Always available.
	Read(off uint32, p []byte)
	// Program writes exactly one write unit at an aligned offset.
	Program(off uint32, p []byte)
	// ErasePage blanks the page at an aligned offset.
	ErasePage(off uint32)
	// SetHandler installs the interrupt body events are delivered to.
	SetHandler(h func(ev uint32))
}

// Flash runs one program or erase at a time; a concurrent operation
// is rejected with exec.ErrBusy.
type Flash struct {
	ctrl Controller
	cell exec.Cell
}

// New wraps a controller and installs the interrupt handler.
func New(c Controller) *Flash {
	f := &Flash{ctrl: c}
	c.SetHandler(f.irq)
	return f
}

func (f *Flash) irq(ev uint32) {
	if x := ev & evFault; x != 0 {
		f.cell.Fail(x)
		return
	}
	if ev&EvDone != 0 {
		f.cell.Complete(ev)
	}
}

// Size is the array size in bytes.
func (f *Flash) Size() uint32 { return f.ctrl.Size() }

// PageSize is the erase granule.
func (f *Flash) PageSize() uint32 { return f.ctrl.PageSize() }

// WriteUnit is the programming granule.
func (f *Flash) WriteUnit() uint32 { return f.ctrl.WriteUnit() }

// Unlock writes the two-key sequence enabling program and erase.
// Returns ErrSeq if the controller rejected it.
func (f *Flash) Unlock() error {
	if !f.ctrl.Locked() {
		return nil
	}
	f.ctrl.Key(unlockKey1)
	f.ctrl.Key(unlockKey2)
	if f.ctrl.Locked() {
		return ErrSeq
	}
	return nil
}

// Lock re-engages write protection.
func (f *Flash) Lock() { f.ctrl.Lock() }

// Read copies len(p) bytes starting at off. Reads are memory-mapped
// and never suspend, locked or not.
func (f *Flash) Read(off uint32, p []byte) error {
	if err := f.bounds(off, len(p)); err != nil {
		return err
	}
	f.ctrl.Read(off, p)
	return nil
}

// Write programs p at off. Offset and length must be multiples of the
// write unit and the range must have been erased first; the
// controller reports a verify failure per unit otherwise.
func (f *Flash) Write(ctx context.Context, off uint32, p []byte) error {
	unit := f.ctrl.WriteUnit()
	if off%unit != 0 || uint32(len(p))%unit != 0 {
		return ErrUnaligned
	}
	if err := f.bounds(off, len(p)); err != nil {
		return err
	}
	if f.ctrl.Locked() {
		return ErrProtected
	}
	for len(p) > 0 {
		chunk := p[:unit]
		at := off
		if err := f.run(ctx, func() { f.ctrl.Program(at, chunk) }); err != nil {
			return err
		}
		off += unit
		p = p[unit:]
	}
	return nil
}

// Erase blanks every page in [from, to). Both bounds must be
// page-aligned.
func (f *Flash) Erase(ctx context.Context, from, to uint32) error {
	page := f.ctrl.PageSize()
	if from%page != 0 || to%page != 0 {
		return ErrUnaligned
	}
	if to < from {
		return ErrBounds
	}
	if err := f.bounds(from, int(to-from)); err != nil {
		return err
	}
	if f.ctrl.Locked() {
		return ErrProtected
	}
	for off := from; off < to; off += page {
		at := off
		if err := f.run(ctx, func() { f.ctrl.ErasePage(at) }); err != nil {
			return err
		}
	}
	return nil
}

// run executes one controller operation through the cell. Controller
// operations cannot be stopped mid-flight, so a cancelled wait leaves
// the hardware to finish on its own and the late completion is
// dropped.
func (f *Flash) run(ctx context.Context, start func()) error {
	w := exec.NewWaker()
	if err := f.cell.Arm(w); err != nil {
		return err
	}
	start()
	flags, failed, err := exec.Await(ctx, &f.cell, w, nil)
	if err != nil {
		return err
	}
	if failed {
		return ctrlFault(flags)
	}
	return nil
}

func (f *Flash) bounds(off uint32, n int) error {
	size := f.ctrl.Size()
	if off > size || uint32(n) > size-off {
		return ErrBounds
	}
	return nil
}

func ctrlFault(flags uint32) error {
	switch {
	case flags&EvProtected != 0:
		return ErrProtected
	case flags&EvProg != 0:
		return ErrProg
	case flags&EvSeq != 0:
		return ErrSeq
	case flags&EvMiss != 0:
		return ErrMiss
	}
	return exec.ErrFault
}
