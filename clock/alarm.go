package clock

import "github.com/davidlenfesty/embassy/critical"

// Alarm is one scheduled deadline. The driver owns it while queued;
// after it fires, or after a successful Cancel, ownership is back with
// the scheduler/canceller and the handle is inert.
type Alarm struct {
	deadline Tick
	wake     func()
	next     *Alarm
	queued   bool
}

// Deadline returns the tick the alarm was aimed at.
func (a *Alarm) Deadline() Tick { return a.deadline }

// ScheduleAt queues wake to run when the clock reaches deadline. wake
// executes in interrupt context and must not block; exec.Waker.Wake is
// the usual target. Alarms sharing a deadline fire in the order they
// were scheduled. A deadline already in the past fires before
// ScheduleAt returns.
func (d *Driver) ScheduleAt(deadline Tick, wake func()) *Alarm {
	if wake == nil {
		panic("clock: nil wake target")
	}
	a := &Alarm{deadline: deadline, wake: wake}
	critical.Do(func() {
		t := d.now()
		if deadline <= t {
			a.wake()
			return
		}
		a.queued = true
		if d.head == nil || deadline < d.head.deadline {
			a.next = d.head
			d.head = a
			d.reprogram(t)
			return
		}
		cur := d.head
		for cur.next != nil && cur.next.deadline <= deadline {
			cur = cur.next
		}
		a.next = cur.next
		cur.next = a
	})
	return a
}

// Cancel removes a before it fires and reports whether it did. A false
// return means the alarm already fired (or was never queued): the race
// between a task cancelling and the interrupt handler firing resolves
// to exactly one of the two under the shared critical section.
func (d *Driver) Cancel(a *Alarm) bool {
	removed := false
	critical.Do(func() {
		if !a.queued {
			return
		}
		if d.head == a {
			d.head = a.next
			a.next = nil
			a.queued = false
			removed = true
			d.reprogram(d.now())
			return
		}
		for cur := d.head; cur != nil; cur = cur.next {
			if cur.next == a {
				cur.next = a.next
				a.next = nil
				a.queued = false
				removed = true
				return
			}
		}
	})
	return removed
}

// Pending reports whether a is still queued to fire.
func (d *Driver) Pending(a *Alarm) bool {
	var q bool
	critical.Do(func() { q = a.queued })
	return q
}
