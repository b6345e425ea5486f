package spi

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davidlenfesty/embassy/exec"
	"github.com/davidlenfesty/embassy/sim"
)

var _ Port = (*sim.SPIBus)(nil)

func newRig() (*sim.Machine, *SPI) {
	m := sim.New(sim.DefaultConfig())
	return m, New(m.SPI)
}

// stepUntil paces the machine one tick at a time until done fires,
// with a watchdog so a lost completion fails instead of hanging.
func stepUntil(t *testing.T, m *sim.Machine, done <-chan struct{}) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("transaction never completed")
		case <-time.After(time.Millisecond):
			m.Step(1)
		}
	}
}

func TestTransferLoopback(t *testing.T) {
	m, s := newRig()

	tx := []byte{1, 2, 3, 4}
	rx := make([]byte, 4)
	done := make(chan error, 1)
	go func() { done <- s.Transfer(context.Background(), tx, rx) }()
	stepUntil(t, m, waitErr(t, done, nil))

	if !bytes.Equal(rx, tx) {
		t.Fatalf("loopback rx = %v; want %v", rx, tx)
	}
}

func TestTransferDevice(t *testing.T) {
	m, s := newRig()
	m.SPI.SetDevice(func(out byte) byte { return ^out })

	tx := []byte{0x0F, 0xF0}
	rx := make([]byte, 2)
	done := make(chan error, 1)
	go func() { done <- s.Transfer(context.Background(), tx, rx) }()
	stepUntil(t, m, waitErr(t, done, nil))

	if rx[0] != 0xF0 || rx[1] != 0x0F {
		t.Fatalf("rx = %v; want [F0 0F]", rx)
	}
}

func TestTransferHalfDuplex(t *testing.T) {
	m, s := newRig()

	// Write-only leg, then read-only leg against the echo device.
	done := make(chan error, 1)
	go func() { done <- s.Transfer(context.Background(), []byte{9, 9}, nil) }()
	stepUntil(t, m, waitErr(t, done, nil))

	rx := make([]byte, 3)
	go func() { done <- s.Transfer(context.Background(), nil, rx) }()
	stepUntil(t, m, waitErr(t, done, nil))
	// Zero-filled tx padding echoes back as zeros.
	if rx[0] != 0 || rx[1] != 0 || rx[2] != 0 {
		t.Fatalf("read-only rx = %v; want zeros", rx)
	}
}

func TestEmptyTransferIsNop(t *testing.T) {
	_, s := newRig()
	if err := s.Transfer(context.Background(), nil, nil); err != nil {
		t.Fatalf("empty Transfer = %v; want nil", err)
	}
}

func TestSecondTransferIsBusy(t *testing.T) {
	m, s := newRig()
	m.SPI.SetHold(true)

	first := make(chan error, 1)
	go func() { first <- s.Transfer(context.Background(), []byte{1}, nil) }()
	waitArmed(t, &s.cell)

	if err := s.Transfer(context.Background(), []byte{2}, nil); !errors.Is(err, exec.ErrBusy) {
		t.Fatalf("second Transfer = %v; want exec.ErrBusy", err)
	}

	m.SPI.SetHold(false)
	stepUntil(t, m, waitErr(t, first, nil))
}

func TestCancelAbortsWedgedBus(t *testing.T) {
	m, s := newRig()
	m.SPI.SetHold(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Transfer(ctx, []byte{1}, nil) }()
	waitArmed(t, &s.cell)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled Transfer = %v; want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled transfer never returned")
	}

	// The abort quiesced the bus: the next transaction runs clean.
	m.SPI.SetHold(false)
	rx := make([]byte, 1)
	go func() { done <- s.Transfer(context.Background(), []byte{0xAB}, rx) }()
	stepUntil(t, m, waitErr(t, done, nil))
	if rx[0] != 0xAB {
		t.Fatalf("post-cancel rx = %#x; want 0xAB", rx[0])
	}
}

func TestBlockingAdaptor(t *testing.T) {
	m, s := newRig()
	b := s.Blocking()

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

	w := []byte{5, 6, 7}
	r := make([]byte, 3)
	if err := b.Tx(w, r); err != nil {
		t.Fatalf("Blocking.Tx: %v", err)
	}
	if !bytes.Equal(r, w) {
		t.Fatalf("Blocking.Tx rx = %v; want %v", r, w)
	}
	got, err := b.Transfer(0x42)
	if err != nil || got != 0x42 {
		t.Fatalf("Blocking.Transfer = (%#x, %v); want (0x42, nil)", got, err)
	}
}

// waitErr drains one result from ch in the background, failing the test
// on a mismatch, and returns a channel that closes when it lands.
func waitErr(t *testing.T, ch <-chan error, want error) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := <-ch; !errors.Is(err, want) {
			t.Errorf("transfer = %v; want %v", err, want)
		}
	}()
	return done
}

// waitArmed polls with a watchdog until the cell holds an in-flight
// operation.
func waitArmed(t *testing.T, c *exec.Cell) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !c.Armed() {
		if time.Now().After(deadline) {
			t.Fatal("operation never armed")
		}
		time.Sleep(time.Millisecond)
	}
}
