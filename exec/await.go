package exec

import "context"

// Await parks the calling task until the operation armed on c finishes,
// then consumes and returns its outcome. w must be the waker c was
// armed with. Wakes coalesce and can be spurious, so Await re-checks
// the cell and parks again until a result is actually recorded.
//
// If ctx ends first, Await tears the operation down instead: abort
// (when non-nil) runs first to quiesce the peripheral so no further
// events arrive, the cell is disarmed, and the context's cause is
// returned. A completion that lands before the teardown wins and is
// handed over as if the cancellation never happened.
func Await(ctx context.Context, c *Cell, w Waker, abort func()) (flags uint32, failed bool, err error) {
	for {
		select {
		case <-w.Done():
			flags, failed, err = c.Consume()
			if err == ErrNotReady {
				continue
			}
			return flags, failed, err
		case <-ctx.Done():
			if abort != nil {
				abort()
			}
			if flags, failed, err = c.Consume(); err == nil {
				return flags, failed, nil
			}
			c.Cancel()
			return 0, false, context.Cause(ctx)
		}
	}
}
