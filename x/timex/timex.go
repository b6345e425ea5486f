// Package timex holds small time arithmetic helpers shared by the
// clock driver and board wiring.
package timex

// PeriodFromHz returns the nanosecond period of one cycle at freqHz.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}
