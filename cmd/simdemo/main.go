// Command simdemo runs every async driver against the simulated
// machine: a sleeping task paced by the tick clock, a pin edge wait, a
// UART echo pair, an I2C register read, an SPI exchange and a flash
// erase/write/read cycle.
package main

import (
	"context"
	"log"
	"time"

	"github.com/davidlenfesty/embassy/clock"
	"github.com/davidlenfesty/embassy/events"
	"github.com/davidlenfesty/embassy/flash"
	"github.com/davidlenfesty/embassy/gpio"
	"github.com/davidlenfesty/embassy/i2c"
	"github.com/davidlenfesty/embassy/sim"
	"github.com/davidlenfesty/embassy/spi"
	"github.com/davidlenfesty/embassy/uart"
)

const tickHz = clock.Hertz(32768)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	// Central bring-up: one machine, one clock, one channel pool.
	m := sim.New(sim.DefaultConfig())
	drv := clock.NewDriver(m.Counter, tickHz)
	m.Counter.SetInterrupt(drv.HandleInterrupt)
	drv.Start()
	clock.Init(drv)
	pool := events.NewPool(m.Router)

	// Pace the simulated counter at roughly real time.
	go func() {
		step := int(tickHz / 1000)
		for range time.Tick(time.Millisecond) {
			m.Step(step)
		}
	}()

	ctx := context.Background()
	runSleep(ctx, drv)
	runEdge(ctx, m, pool)
	runUART(ctx)
	runI2C(ctx, m)
	runSPI(ctx, m)
	runFlash(ctx, m)
	log.Print("simdemo: all drivers exercised")
}

func runSleep(ctx context.Context, drv *clock.Driver) {
	t0 := drv.Now()
	if err := drv.Sleep(ctx, 50*time.Millisecond); err != nil {
		log.Fatalf("sleep: %v", err)
	}
	log.Printf("sleep: woke after %d ticks", drv.Now()-t0)
}

func runEdge(ctx context.Context, m *sim.Machine, pool *events.Pool) {
	in := gpio.NewIn(m.Pin(2), pool)
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Pin(2).Drive(true)
	}()
	e, err := in.WaitForEdge(ctx, gpio.Rising)
	if err != nil {
		log.Fatalf("edge: %v", err)
	}
	log.Printf("edge: got %v, pool now holds %d channels", e, pool.Used())
}

func runUART(ctx context.Context) {
	local, remote := sim.NewUARTPair()
	u := uart.New(local)
	peer := uart.New(remote)

	go func() {
		buf := make([]byte, 5)
		if err := peer.ReadFull(ctx, buf); err != nil {
			log.Fatalf("uart peer read: %v", err)
		}
		if _, err := peer.Write(ctx, buf); err != nil {
			log.Fatalf("uart peer write: %v", err)
		}
	}()

	if _, err := u.Write(ctx, []byte("hello")); err != nil {
		log.Fatalf("uart write: %v", err)
	}
	buf := make([]byte, 5)
	if err := u.ReadFull(ctx, buf); err != nil {
		log.Fatalf("uart read: %v", err)
	}
	log.Printf("uart: echoed %q", buf)
}

func runI2C(ctx context.Context, m *sim.Machine) {
	regs := []byte{0x00, 0x42, 0x99}
	m.I2C.AddDevice(0x38, sim.MemDevice(regs))
	d := i2c.New(m.I2C)

	r := make([]byte, 2)
	if err := d.Tx(ctx, 0x38, []byte{1}, r); err != nil {
		log.Fatalf("i2c: %v", err)
	}
	log.Printf("i2c: regs[1:3] = %#x %#x", r[0], r[1])
}

func runSPI(ctx context.Context, m *sim.Machine) {
	m.SPI.SetDevice(func(out byte) byte { return out + 1 })
	s := spi.New(m.SPI)

	tx := []byte{10, 20, 30}
	rx := make([]byte, 3)
	if err := s.Transfer(ctx, tx, rx); err != nil {
		log.Fatalf("spi: %v", err)
	}
	log.Printf("spi: sent %v, got %v", tx, rx)
}

func runFlash(ctx context.Context, m *sim.Machine) {
	f := flash.New(m.Flash)
	if err := f.Unlock(); err != nil {
		log.Fatalf("flash unlock: %v", err)
	}
	defer f.Lock()

	page := f.PageSize()
	if err := f.Erase(ctx, 0, page); err != nil {
		log.Fatalf("flash erase: %v", err)
	}
	msg := make([]byte, 2*f.WriteUnit())
	copy(msg, "tick tock")
	if err := f.Write(ctx, 0, msg); err != nil {
		log.Fatalf("flash write: %v", err)
	}
	back := make([]byte, len(msg))
	if err := f.Read(0, back); err != nil {
		log.Fatalf("flash read: %v", err)
	}
	log.Printf("flash: read back %q", back[:9])
}
