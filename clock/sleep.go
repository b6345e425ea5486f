package clock

import (
	"context"
	"time"

	"github.com/davidlenfesty/embassy/exec"
)

// SleepUntil suspends the caller until the clock reaches t or ctx is
// cancelled, whichever comes first. On cancellation the alarm is
// reclaimed and the context's cause returned.
func (d *Driver) SleepUntil(ctx context.Context, t Tick) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	if d.Now() >= t {
		return nil
	}
	w := exec.NewWaker()
	a := d.ScheduleAt(t, w.Wake)
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		d.Cancel(a)
		return context.Cause(ctx)
	}
}

// Sleep suspends the caller for at least dur, rounded up to whole
// ticks.
func (d *Driver) Sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	return d.SleepUntil(ctx, d.Now()+d.hz.Ticks(dur))
}

// WithDeadline derives a context that is cancelled with cause
// ErrTimeout when the clock reaches t. This is the standard way to race
// a peripheral operation against the clock: the operation's own exit
// path observes the cancelled context and runs its cleanup, so the
// losing side never leaks an armed cell or a claimed event channel.
//
// The cancellation itself happens on a helper goroutine, not in the
// interrupt handler; cancelling a context takes locks that interrupt
// context must never touch.
func (d *Driver) WithDeadline(parent context.Context, t Tick) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	w := exec.NewWaker()
	a := d.ScheduleAt(t, w.Wake)
	go func() {
		select {
		case <-w.Done():
			cancel(ErrTimeout)
		case <-ctx.Done():
			d.Cancel(a)
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// WithTimeout is WithDeadline relative to now.
func (d *Driver) WithTimeout(parent context.Context, dur time.Duration) (context.Context, context.CancelFunc) {
	return d.WithDeadline(parent, d.Now()+d.hz.Ticks(dur))
}
