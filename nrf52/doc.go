//go:build nrf52840

// Package nrf52 binds the portable runtime to nRF52840 silicon: RTC1
// as the clock counter, PPI as the event-channel router, GPIOTE as the
// pin edge detector, UARTE/SPIM/TWIM as the serial ports and NVMC as
// the flash controller. Policy lives in the portable packages; this one
// is register glue only.
//
// Bring-up order matters and happens once, centrally:
//
//	drv := nrf52.RTC1.Configure()   // LFCLK + counter + compare IRQ
//	clock.Init(drv)
//	pool := nrf52.NewPool()         // PPI-backed channel pool
//	btn := gpio.NewIn(nrf52.NewPinIn(machine.BUTTON, 0), pool)
//	con := uart.New(nrf52.UARTE0.Configure(machine.UART_TX_PIN, machine.UART_RX_PIN, nrf52.Baud115200))
//
// RTC0 and TWIM0/SPIM0 are left untouched for a SoftDevice to own.
package nrf52
