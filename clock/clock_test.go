package clock

import (
	"testing"
	"time"

	"github.com/davidlenfesty/embassy/critical"
)

// testCounter is a hand-cranked counter. Tests mutate raw inside the
// critical section, the same way the simulator does.
type testCounter struct {
	raw   uint32
	width uint
	cmp   uint32
	cmpEn bool
	sets  []uint32
}

func (c *testCounter) Read() uint32 { return c.raw }
func (c *testCounter) Width() uint { return c.width }
func (c *testCounter) SetCompare(v uint32) {
	c.cmp = v
	c.sets = append(c.sets, v)
}
func (c *testCounter) EnableCompare(on bool) { c.cmpEn = on }

// step advances the counter one tick at a time, invoking the driver's
// interrupt body on every compare match, like hardware would.
func step(d *Driver, c *testCounter, n int) {
	for i := 0; i < n; i++ {
		hit := false
		critical.Do(func() {
			c.raw = (c.raw + 1) & (1<<c.width - 1)
			hit = c.cmpEn && c.raw == c.cmp
		})
		if hit {
			d.HandleInterrupt()
		}
	}
}

func newTestDriver(width uint, hz Hertz) (*Driver, *testCounter) {
	c := &testCounter{width: width}
	d := NewDriver(c, hz)
	d.Start()
	return d, c
}

func TestNowExtendsAcrossWraps(t *testing.T) {
	c := &testCounter{width: 8}
	d := NewDriver(c, 32768)

	// Raw samples including three wraparounds; the extended tick must
	// advance by exactly one wrap-worth (256) per observed wrap and
	// never decrease.
	samples := []struct {
		raw  uint32
		want Tick
	}{
		{0, 0},
		{100, 100},
		{250, 250},
		{5, 261},   // wrap 1
		{5, 261},   // repeat sample, no double count
		{255, 511},
		{0, 512},   // wrap 2
		{0, 512},
		{200, 712},
		{199, 967}, // wrap 3: raw only just below previous
	}
	for i, s := range samples {
		critical.Do(func() { c.raw = s.raw })
		got := d.Now()
		if got != s.want {
			t.Fatalf("sample %d (raw=%d): Now() = %d; want %d", i, s.raw, got, s.want)
		}
	}
}

func TestIdleKeepaliveTracksWraps(t *testing.T) {
	d, c := newTestDriver(8, 32768)
	// No alarms: only the half-wrap keepalive interrupt observes the
	// counter. 1000 ticks on an 8-bit counter is three wraps.
	step(d, c, 1000)
	if got := d.Now(); got != 1000 {
		t.Fatalf("Now() after 1000 idle ticks = %d; want 1000", got)
	}
}

func TestCompareLeadClamped(t *testing.T) {
	d, c := newTestDriver(8, 32768)

	// Far deadline: the lead is clamped to half a wrap (128).
	d.ScheduleAt(1000, func() {})
	if last := c.sets[len(c.sets)-1]; last != 128 {
		t.Fatalf("compare for far deadline = %d; want half-wrap 128", last)
	}

	// Near deadline becomes the new head and is programmed directly.
	a := d.ScheduleAt(5, func() {})
	if last := c.sets[len(c.sets)-1]; last != 5 {
		t.Fatalf("compare for near deadline = %d; want 5", last)
	}

	// Cancelling the head re-aims at the survivor, clamped again.
	if !d.Cancel(a) {
		t.Fatal("Cancel of pending head returned false")
	}
	if last := c.sets[len(c.sets)-1]; last != 128 {
		t.Fatalf("compare after head cancel = %d; want 128", last)
	}
}

func TestCompareMinimumLead(t *testing.T) {
	d, c := newTestDriver(8, 32768)
	fired := false
	d.ScheduleAt(1, func() { fired = true })
	// A 1-tick deadline is programmed at least minCompareLead out so the
	// match cannot be missed, and still fires once the counter passes.
	if last := c.sets[len(c.sets)-1]; last != minCompareLead {
		t.Fatalf("compare for 1-tick deadline = %d; want %d", last, minCompareLead)
	}
	step(d, c, int(minCompareLead))
	if !fired {
		t.Fatal("1-tick alarm never fired")
	}
}

func TestPastDeadlineFiresInline(t *testing.T) {
	d, c := newTestDriver(16, 32768)
	step(d, c, 100)
	fired := false
	a := d.ScheduleAt(50, func() { fired = true })
	if !fired {
		t.Fatal("past deadline did not fire before ScheduleAt returned")
	}
	if d.Pending(a) {
		t.Fatal("immediately-fired alarm still pending")
	}
	if d.Cancel(a) {
		t.Fatal("Cancel of fired alarm reported a removal")
	}
}

func TestAlarmsFireInDeadlineThenInsertionOrder(t *testing.T) {
	d, c := newTestDriver(16, 32768)

	var fired []string
	mark := func(id string) func() {
		return func() { fired = append(fired, id) }
	}
	d.ScheduleAt(100, mark("first@100"))
	d.ScheduleAt(50, mark("@50"))
	d.ScheduleAt(100, mark("second@100"))
	a200 := d.ScheduleAt(200, mark("@200"))

	step(d, c, 101)

	want := []string{"@50", "first@100", "second@100"}
	if len(fired) != len(want) {
		t.Fatalf("fired %v; want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired %v; want %v", fired, want)
		}
	}
	if !d.Pending(a200) {
		t.Fatal("alarm at 200 no longer pending after counter reached 101")
	}

	step(d, c, 100)
	if len(fired) != 4 || fired[3] != "@200" {
		t.Fatalf("fired after 201 ticks = %v; want trailing @200", fired)
	}
}

func TestAlarmAcrossCounterWrap(t *testing.T) {
	d, c := newTestDriver(8, 32768)
	// Deadline two wraps away: the clamped compare forces intermediate
	// reconciliation interrupts, so the wrap extension keeps up and the
	// alarm fires at the right extended tick.
	fired := Tick(0)
	d.ScheduleAt(600, func() { fired = d.Now() })
	step(d, c, 599)
	if fired != 0 {
		t.Fatalf("alarm fired early at tick %d", fired)
	}
	step(d, c, 1)
	if fired != 600 {
		t.Fatalf("alarm fired at tick %d; want 600", fired)
	}
}

func TestCancelBeforeFire(t *testing.T) {
	d, c := newTestDriver(16, 32768)
	fired := false
	a := d.ScheduleAt(50, func() { fired = true })
	if !d.Cancel(a) {
		t.Fatal("Cancel of pending alarm returned false")
	}
	if d.Cancel(a) {
		t.Fatal("second Cancel reported another removal")
	}
	step(d, c, 100)
	if fired {
		t.Fatal("cancelled alarm fired")
	}
}

func TestCancelFireRaceHasExactlyOneOutcome(t *testing.T) {
	d, c := newTestDriver(16, 32768)
	for round := 0; round < 200; round++ {
		fired := false
		deadline := d.Now() + 5
		a := d.ScheduleAt(deadline, func() { fired = true })

		cancelled := make(chan bool, 1)
		go func() { cancelled <- d.Cancel(a) }()
		step(d, c, 10)

		var removed bool
		select {
		case removed = <-cancelled:
		case <-time.After(5 * time.Second):
			t.Fatal("Cancel wedged")
		}
		if removed == fired {
			t.Fatalf("round %d: removed=%v fired=%v; want exactly one", round, removed, fired)
		}
	}
}

func TestHertzConversions(t *testing.T) {
	hz := Hertz(32768)
	if got := hz.Ticks(time.Second); got != 32768 {
		t.Fatalf("Ticks(1s) = %d; want 32768", got)
	}
	if got := hz.Ticks(time.Nanosecond); got != 1 {
		t.Fatalf("Ticks(1ns) = %d; want 1 (rounded up)", got)
	}
	if got := hz.Ticks(0); got != 0 {
		t.Fatalf("Ticks(0) = %d; want 0", got)
	}
	if got := hz.Duration(32768); got != time.Second {
		t.Fatalf("Duration(32768) = %v; want 1s", got)
	}
	if got := hz.Period(); got != 30517*time.Nanosecond {
		t.Fatalf("Period() = %v; want 30517ns", got)
	}
	if KHz(32) != 32000 || MHz(1) != 1_000_000 {
		t.Fatalf("KHz/MHz constructors wrong: %d, %d", KHz(32), MHz(1))
	}
}
