package events

import (
	"errors"
	"testing"
	"time"
)

// fakeRouter records endpoint programming so tests can check teardown.
type fakeRouter struct {
	n       int
	pub     [maxChannels]Endpoint
	sub     [maxChannels]Endpoint
	enabled [maxChannels]bool
}

func (r *fakeRouter) Len() int { return r.n }
func (r *fakeRouter) SetEndpoints(ch Channel, pub, sub Endpoint) {
	r.pub[ch], r.sub[ch] = pub, sub
}
func (r *fakeRouter) Enable(ch Channel)  { r.enabled[ch] = true }
func (r *fakeRouter) Disable(ch Channel) { r.enabled[ch] = false }

func TestClaimUntilExhausted(t *testing.T) {
	r := &fakeRouter{n: 4}
	p := NewPool(r)
	for i := 0; i < 4; i++ {
		ch, err := p.Claim("drv")
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if int(ch) != i {
			t.Fatalf("claim %d returned channel %d", i, ch)
		}
	}
	if p.Used() != 4 {
		t.Fatalf("Used = %d; want 4", p.Used())
	}
	if _, err := p.Claim("drv"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("claim on full pool err = %v; want ErrExhausted", err)
	}
}

func TestReleaseMakesChannelClaimableAgain(t *testing.T) {
	r := &fakeRouter{n: 4}
	p := NewPool(r)
	for i := 0; i < 4; i++ {
		if _, err := p.Claim("drv"); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}
	if err := p.Release(2); err != nil {
		t.Fatalf("release: %v", err)
	}
	ch, err := p.Claim("other")
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if ch != 2 {
		t.Fatalf("claim after release returned %d; want the freed channel 2", ch)
	}
	owner, held := p.Owner(2)
	if !held || owner != "other" {
		t.Fatalf("Owner(2) = %q, %v; want \"other\", true", owner, held)
	}
}

func TestDoubleReleaseReported(t *testing.T) {
	r := &fakeRouter{n: 2}
	p := NewPool(r)
	ch, err := p.Claim("drv")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := p.Release(ch); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := p.Release(ch); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("double release err = %v; want ErrNotClaimed", err)
	}
	if err := p.Release(Channel(7)); !errors.Is(err, ErrBadChannel) {
		t.Fatalf("out-of-range release err = %v; want ErrBadChannel", err)
	}
}

func TestConnectRequiresClaim(t *testing.T) {
	r := &fakeRouter{n: 2}
	p := NewPool(r)
	if err := p.Connect(0, 10, 20); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("connect unclaimed err = %v; want ErrNotClaimed", err)
	}
	ch, err := p.Claim("drv")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := p.Connect(ch, 10, 20); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !r.enabled[ch] || r.pub[ch] != 10 || r.sub[ch] != 20 {
		t.Fatalf("router state = enabled %v pub %d sub %d; want true 10 20",
			r.enabled[ch], r.pub[ch], r.sub[ch])
	}
	if err := p.Release(ch); err != nil {
		t.Fatalf("release: %v", err)
	}
	if r.enabled[ch] || r.pub[ch] != 0 || r.sub[ch] != 0 {
		t.Fatal("release did not tear down routing")
	}
}

func TestDisconnectKeepsClaim(t *testing.T) {
	r := &fakeRouter{n: 2}
	p := NewPool(r)
	ch, _ := p.Claim("drv")
	if err := p.Connect(ch, 1, 2); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.Disconnect(ch); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if r.enabled[ch] {
		t.Fatal("channel still enabled after Disconnect")
	}
	if _, held := p.Owner(ch); !held {
		t.Fatal("claim lost after Disconnect")
	}
}

func TestConcurrentClaimReleaseNeverOverAllocates(t *testing.T) {
	r := &fakeRouter{n: 3}
	p := NewPool(r)
	done := make(chan bool, 8)
	for g := 0; g < 8; g++ {
		go func() {
			ok := true
			for i := 0; i < 200; i++ {
				ch, err := p.Claim("g")
				if errors.Is(err, ErrExhausted) {
					continue
				}
				if err != nil {
					ok = false
					break
				}
				if p.Used() > p.Len() {
					ok = false
				}
				if err := p.Release(ch); err != nil {
					// A second release of the same channel by another
					// goroutine would show up here.
					ok = false
					break
				}
			}
			done <- ok
		}()
	}
	for g := 0; g < 8; g++ {
		select {
		case ok := <-done:
			if !ok {
				t.Fatal("allocator invariant violated under concurrency")
			}
		case <-time.After(10 * time.Second):
			t.Fatal("claim/release storm wedged")
		}
	}
	if p.Used() != 0 {
		t.Fatalf("Used = %d after all releases; want 0", p.Used())
	}
}
