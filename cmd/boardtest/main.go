//go:build nrf52840

// Command boardtest brings the runtime up on an nRF52840-DK: RTC1 as
// the clock, PPI channels, a GPIOTE edge wait on button 1, a UARTE
// echo on the debug serial pins and an LED heartbeat.
package main

import (
	"context"
	"time"

	"machine"

	"github.com/davidlenfesty/embassy/clock"
	"github.com/davidlenfesty/embassy/gpio"
	"github.com/davidlenfesty/embassy/nrf52"
	"github.com/davidlenfesty/embassy/uart"
)

func main() {
	println("[boardtest] boot")

	drv := nrf52.RTC1.Configure()
	clock.Init(drv)
	pool := nrf52.NewPool()

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := gpio.NewOut(simplePin{machine.LED})
	btn := gpio.NewIn(nrf52.NewPinIn(machine.BUTTON, 0), pool)
	con := uart.New(nrf52.UARTE0.Configure(machine.UART_TX_PIN, machine.UART_RX_PIN, nrf52.Baud115200))

	ctx := context.Background()

	// Heartbeat driven by the tick clock, not time.Sleep.
	go func() {
		for {
			if err := drv.Sleep(ctx, 500*time.Millisecond); err != nil {
				return
			}
			led.Toggle()
		}
	}()

	// Button presses with a timeout race, echoed on the console.
	go func() {
		for {
			waitCtx, cancel := drv.WithTimeout(ctx, 5*time.Second)
			_, err := btn.WaitForEdge(waitCtx, gpio.Falling)
			cancel()
			if err == nil {
				println("[boardtest] button")
			} else {
				println("[boardtest] no press in 5s")
			}
		}
	}()

	// Serial echo.
	buf := make([]byte, 16)
	for {
		n, err := con.Read(ctx, buf)
		if err != nil {
			println("[boardtest] uart read:", err.Error())
			continue
		}
		if _, err := con.Write(ctx, buf[:n]); err != nil {
			println("[boardtest] uart write:", err.Error())
		}
	}
}

// simplePin adapts a machine pin to the gpio output port.
type simplePin struct{ p machine.Pin }

func (s simplePin) Get() bool      { return s.p.Get() }
func (s simplePin) Set(level bool) { s.p.Set(level) }
