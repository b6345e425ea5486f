//go:build !nrf52840 && !rp2040 && !rp2350

package critical

import (
	"runtime"
	"sync"
)

// Host builds emulate the single-core interrupt mask with one
// process-wide lock. The simulator delivers interrupts by invoking
// handlers on ordinary goroutines, and every handler body and task-side
// section funnels through Enter, so holding the section is
// indistinguishable from having interrupts masked. Reentry needs the
// holder's identity, which hardware gets for free from "only one
// context runs at a time"; here it is the goroutine id.

var mask struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64 // goroutine id of the section holder, 0 when free
}

func init() { mask.cond = sync.NewCond(&mask.mu) }

const (
	stateWasUnmasked State = 0
	stateWasMasked   State = 1
)

func enter() State {
	id := goid()
	mask.mu.Lock()
	if mask.owner == id {
		mask.mu.Unlock()
		return stateWasMasked
	}
	for mask.owner != 0 {
		mask.cond.Wait()
	}
	mask.owner = id
	mask.mu.Unlock()
	return stateWasUnmasked
}

func exit(s State) {
	if s == stateWasMasked {
		return
	}
	mask.mu.Lock()
	mask.owner = 0
	mask.mu.Unlock()
	mask.cond.Signal()
}

// goid parses the current goroutine id out of the runtime.Stack header
// ("goroutine N [...]"). Emulation-only; never built for hardware.
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
