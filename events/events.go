// Package events manages the fixed pool of hardware event-routing
// channels: the small, integer-indexed resources that carry one
// peripheral's event signal to another peripheral's task without CPU
// involvement. Channels are claimed for the lifetime of one connection
// and must be released on every exit path; the pool reports leaks as
// exhaustion, never by growing.
package events

import (
	"errors"
	"math/bits"

	"github.com/davidlenfesty/embassy/critical"
)

// Channel identifies one routing channel, 0..Len-1 on the backing
// router.
type Channel uint8

// Endpoint addresses an event publisher or task subscriber on the
// routing fabric. On silicon it is a peripheral register address; the
// simulator hands out opaque ids. Zero means unrouted.
type Endpoint uint32

// Router is the hardware face of the pool. Implementations program a
// channel's endpoint pair and gate the channel on and off.
type Router interface {
	// Len is the number of channels the hardware provides.
	Len() int
	// SetEndpoints routes ch from event pub to task sub. Zero endpoints
	// clear the route.
	SetEndpoints(ch Channel, pub, sub Endpoint)
	// Enable lets events flow through ch.
	Enable(ch Channel)
	// Disable gates ch off.
	Disable(ch Channel)
}

var (
	// ErrExhausted reports that no channel is free. Capacity is fixed
	// by hardware, so this is a configuration error, not a retryable
	// condition.
	ErrExhausted = errors.New("event channels exhausted")

	// ErrNotClaimed reports an operation on a channel nobody holds.
	// From Release this means a double-release bug.
	ErrNotClaimed = errors.New("event channel not claimed")

	// ErrBadChannel reports a channel index outside the pool.
	ErrBadChannel = errors.New("no such event channel")
)

const maxChannels = 32

// Pool assigns channels to peripheral-pair connections and reclaims
// them on release. All bookkeeping runs inside the critical section, so
// the scan-and-mark of a claim is atomic with respect to interrupt
// handlers and other tasks.
type Pool struct {
	r     Router
	n     int
	used  uint32
	owner [maxChannels]string
}

// NewPool wraps a router. The router's size is a hardware constant;
// reporting one outside 1..32 is a binding bug and panics.
func NewPool(r Router) *Pool {
	n := r.Len()
	if n < 1 || n > maxChannels {
		panic("events: router channel count out of range")
	}
	return &Pool{r: r, n: n}
}

// Len is the pool capacity.
func (p *Pool) Len() int { return p.n }

// Claim marks the first free channel as held by owner and returns it.
// Returns ErrExhausted when every channel is claimed.
func (p *Pool) Claim(owner string) (Channel, error) {
	var ch Channel
	err := ErrExhausted
	critical.Do(func() {
		for i := 0; i < p.n; i++ {
			bit := uint32(1) << uint(i)
			if p.used&bit == 0 {
				p.used |= bit
				p.owner[i] = owner
				ch = Channel(i)
				err = nil
				return
			}
		}
	})
	return ch, err
}

// Release tears down ch's routing and returns it to the pool.
// Releasing an unclaimed channel reports ErrNotClaimed: that is a
// double-release bug on the caller's side, not a no-op.
func (p *Pool) Release(ch Channel) error {
	if int(ch) >= p.n {
		return ErrBadChannel
	}
	var err error
	critical.Do(func() {
		bit := uint32(1) << uint(ch)
		if p.used&bit == 0 {
			err = ErrNotClaimed
			return
		}
		p.r.Disable(ch)
		p.r.SetEndpoints(ch, 0, 0)
		p.used &^= bit
		p.owner[ch] = ""
	})
	return err
}

// Connect routes ch from pub to sub and enables it. ch must be claimed.
func (p *Pool) Connect(ch Channel, pub, sub Endpoint) error {
	if int(ch) >= p.n {
		return ErrBadChannel
	}
	var err error
	critical.Do(func() {
		if p.used&(uint32(1)<<uint(ch)) == 0 {
			err = ErrNotClaimed
			return
		}
		p.r.SetEndpoints(ch, pub, sub)
		p.r.Enable(ch)
	})
	return err
}

// Disconnect gates ch off and clears its route, keeping the claim.
func (p *Pool) Disconnect(ch Channel) error {
	if int(ch) >= p.n {
		return ErrBadChannel
	}
	var err error
	critical.Do(func() {
		if p.used&(uint32(1)<<uint(ch)) == 0 {
			err = ErrNotClaimed
			return
		}
		p.r.Disable(ch)
		p.r.SetEndpoints(ch, 0, 0)
	})
	return err
}

// Owner reports who holds ch.
func (p *Pool) Owner(ch Channel) (string, bool) {
	if int(ch) >= p.n {
		return "", false
	}
	var (
		owner string
		held  bool
	)
	critical.Do(func() {
		held = p.used&(uint32(1)<<uint(ch)) != 0
		owner = p.owner[ch]
	})
	return owner, held
}

// Used reports how many channels are currently claimed.
func (p *Pool) Used() int {
	var n int
	critical.Do(func() { n = bits.OnesCount32(p.used) })
	return n
}
