package gpio

// Out drives one output line. The line is exclusively owned, so the
// read-modify-write in Toggle needs no locking.
type Out struct {
	pin Pin
}

// NewOut wraps an output-capable pin.
func NewOut(pin Pin) *Out { return &Out{pin: pin} }

// Set drives the line to the given level.
func (o *Out) Set(level bool) { o.pin.Set(level) }

// Toggle inverts the line.
func (o *Out) Toggle() { o.pin.Set(!o.pin.Get()) }

// Get reads the driven level back.
func (o *Out) Get() bool { return o.pin.Get() }
