// Package heading smooths raw compass readings into a stable display heading.
package heading

import "math"

// gain is the smoothing factor applied to every new sample.
const gain = 0.2

// Filter is an exponential filter over compass bearings that always takes
// the short way around 0/360. The zero value is ready to use and starts at 0.
//
// Filter is not safe for concurrent use; the owner serialises Update calls.
type Filter struct {
	last float64
}

// Update feeds a raw bearing in degrees and returns the smoothed bearing in
// [0,360). Non-finite input is ignored and the current value is returned.
func (f *Filter) Update(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return f.last
	}

	diff := Normalize(raw) - f.last
	if diff > 180 {
		diff -= 360
	}
	if diff < -180 {
		diff += 360
	}

	f.last = Normalize(f.last + gain*diff)
	return f.last
}

// Value returns the last smoothed bearing.
func (f *Filter) Value() float64 {
	return f.last
}

// Reset puts the filter back to its initial state.
func (f *Filter) Reset() {
	f.last = 0
}

// Normalize maps any finite angle in degrees into [0,360).
func Normalize(deg float64) float64 {
	n := math.Mod(deg, 360)
	if n < 0 {
		n += 360
	}
	// -1e-17 + 360 rounds to 360
	if n >= 360 {
		n = 0
	}
	return n
}
