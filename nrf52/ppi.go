//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"runtime/volatile"
	"unsafe"

	"github.com/davidlenfesty/embassy/events"
)

// ppiChannels is the number of freely programmable PPI channels; the
// fixed preprogrammed ones above 19 are not pooled.
const ppiChannels = 20

// PPI exposes the programmable channels of the routing matrix as an
// events.Router. Endpoints are the addresses of event and task
// registers, which is what the EEP/TEP registers take.
type PPI struct{}

var _ events.Router = PPI{}

// NewPool returns the event-channel pool over the PPI.
func NewPool() *events.Pool { return events.NewPool(PPI{}) }

// Len is the programmable channel count.
func (PPI) Len() int { return ppiChannels }

// SetEndpoints routes ch from the event register at pub to the task
// register at sub.
func (PPI) SetEndpoints(ch events.Channel, pub, sub events.Endpoint) {
	nrf.PPI.CH[ch].EEP.Set(uint32(pub))
	nrf.PPI.CH[ch].TEP.Set(uint32(sub))
}

// Enable lets events flow through ch.
func (PPI) Enable(ch events.Channel) { nrf.PPI.CHENSET.Set(1 << ch) }

// Disable gates ch off.
func (PPI) Disable(ch events.Channel) { nrf.PPI.CHENCLR.Set(1 << ch) }

// regEndpoint turns a peripheral event or task register into a routing
// endpoint.
func regEndpoint(r *volatile.Register32) events.Endpoint {
	return events.Endpoint(uint32(uintptr(unsafe.Pointer(r))))
}
