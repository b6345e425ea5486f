package sim

import (
	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/events"
)

type route struct {
	pub, sub events.Endpoint
	enabled  bool
}

// Router is the machine's routing matrix: each channel carries one
// publisher's event to one subscriber's task. It is the hardware face
// the events pool programs.
type Router struct {
	m  *Machine
	ch []route
}

// Len is the channel count.
func (r *Router) Len() int { return len(r.ch) }

// SetEndpoints routes ch from pub to sub.
func (r *Router) SetEndpoints(ch events.Channel, pub, sub events.Endpoint) {
	critical.Do(func() {
		r.ch[ch].pub = pub
		r.ch[ch].sub = sub
	})
}

// Enable lets events flow through ch.
func (r *Router) Enable(ch events.Channel) {
	critical.Do(func() { r.ch[ch].enabled = true })
}

// Disable gates ch off.
func (r *Router) Disable(ch events.Channel) {
	critical.Do(func() { r.ch[ch].enabled = false })
}

// publish fans an event at pub out to every enabled subscriber.
// Caller holds the critical section.
func (r *Router) publish(pub events.Endpoint) {
	for i := range r.ch {
		c := &r.ch[i]
		if c.enabled && c.pub == pub && c.sub != 0 {
			r.m.deliver(c.sub)
		}
	}
}
