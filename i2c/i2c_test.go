package i2c

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davidlenfesty/embassy/exec"
	"github.com/davidlenfesty/embassy/sim"
)

var _ Port = (*sim.I2CBus)(nil)

const devAddr = 0x38

func newRig() (*sim.Machine, *I2C) {
	m := sim.New(sim.DefaultConfig())
	return m, New(m.I2C)
}

// run executes one transaction while pacing the machine, with a
// watchdog so a lost completion fails instead of hanging.
func run(t *testing.T, m *sim.Machine, tx func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- tx() }()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("transaction never completed")
		case <-time.After(time.Millisecond):
			m.Step(1)
		}
	}
}

func TestRegisterFileRoundTrip(t *testing.T) {
	m, d := newRig()
	regs := make([]byte, 16)
	m.I2C.AddDevice(devAddr, sim.MemDevice(regs))

	// Write two registers from pointer 3, then read them back.
	err := run(t, m, func() error {
		return d.Tx(context.Background(), devAddr, []byte{3, 0xAA, 0xBB}, nil)
	})
	if err != nil {
		t.Fatalf("write Tx: %v", err)
	}
	r := make([]byte, 2)
	err = run(t, m, func() error {
		return d.Tx(context.Background(), devAddr, []byte{3}, r)
	})
	if err != nil {
		t.Fatalf("read Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{0xAA, 0xBB}) {
		t.Fatalf("read back %v; want [AA BB]", r)
	}
}

func TestAbsentDeviceNACKs(t *testing.T) {
	m, d := newRig()
	err := run(t, m, func() error {
		return d.Tx(context.Background(), 0x77, []byte{0}, nil)
	})
	if !errors.Is(err, ErrAddrNACK) {
		t.Fatalf("Tx to empty address = %v; want ErrAddrNACK", err)
	}
	if !errors.Is(err, exec.ErrFault) {
		t.Fatalf("%v does not match exec.ErrFault", err)
	}
}

func TestInjectedBusFaults(t *testing.T) {
	cases := []struct {
		name string
		ev   uint32
		want error
	}{
		{"data nack", EvDataNACK, ErrDataNACK},
		{"arbitration", EvArbLost, ErrArbitration},
		{"bus fault", EvBusFault, ErrBusFault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, d := newRig()
			m.I2C.AddDevice(devAddr, sim.MemDevice(make([]byte, 4)))
			m.I2C.FailNext(tc.ev)
			err := run(t, m, func() error {
				return d.Tx(context.Background(), devAddr, []byte{0, 1}, nil)
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("Tx = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestFaultThenRetrySucceeds(t *testing.T) {
	m, d := newRig()
	regs := make([]byte, 4)
	m.I2C.AddDevice(devAddr, sim.MemDevice(regs))
	m.I2C.FailNext(EvDataNACK)

	err := run(t, m, func() error {
		return d.Tx(context.Background(), devAddr, []byte{0, 0x5A}, nil)
	})
	if !errors.Is(err, ErrDataNACK) {
		t.Fatalf("first Tx = %v; want ErrDataNACK", err)
	}
	// The fault left the cell Idle: retrying from scratch works.
	err = run(t, m, func() error {
		return d.Tx(context.Background(), devAddr, []byte{0, 0x5A}, nil)
	})
	if err != nil {
		t.Fatalf("retry Tx: %v", err)
	}
	if regs[0] != 0x5A {
		t.Fatalf("regs[0] = %#x; want 0x5A", regs[0])
	}
}

func TestSecondTxIsBusy(t *testing.T) {
	m, d := newRig()
	m.I2C.AddDevice(devAddr, sim.MemDevice(make([]byte, 4)))
	m.I2C.SetHold(true)

	first := make(chan error, 1)
	go func() { first <- d.Tx(context.Background(), devAddr, []byte{0}, nil) }()
	deadline := time.Now().Add(5 * time.Second)
	for !d.cell.Armed() {
		if time.Now().After(deadline) {
			t.Fatal("first transaction never armed")
		}
		time.Sleep(time.Millisecond)
	}

	if err := d.Tx(context.Background(), devAddr, []byte{1}, nil); !errors.Is(err, exec.ErrBusy) {
		t.Fatalf("second Tx = %v; want exec.ErrBusy", err)
	}

	m.I2C.SetHold(false)
	go func() {
		for i := 0; i < 100; i++ {
			m.Step(1)
			time.Sleep(time.Millisecond)
		}
	}()
	select {
	case err := <-first:
		if err != nil {
			t.Fatalf("first Tx: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first transaction never completed")
	}
}

func TestCancelQuiescesBus(t *testing.T) {
	m, d := newRig()
	m.I2C.AddDevice(devAddr, sim.MemDevice(make([]byte, 4)))
	m.I2C.SetHold(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Tx(ctx, devAddr, []byte{0}, nil) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled Tx = %v; want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled transaction never returned")
	}

	m.I2C.SetHold(false)
	err := run(t, m, func() error {
		return d.Tx(context.Background(), devAddr, []byte{0}, make([]byte, 1))
	})
	if err != nil {
		t.Fatalf("Tx after cancel: %v", err)
	}
}

func TestBlockingAdaptor(t *testing.T) {
	m, d := newRig()
	regs := []byte{0x11, 0x22, 0x33}
	m.I2C.AddDevice(devAddr, sim.MemDevice(regs))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				m.Step(1)
			}
		}
	}()

	r := make([]byte, 2)
	if err := d.Blocking().Tx(devAddr, []byte{1}, r); err != nil {
		t.Fatalf("Blocking.Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{0x22, 0x33}) {
		t.Fatalf("Blocking.Tx read %v; want [22 33]", r)
	}
}
