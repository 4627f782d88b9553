package ddc

import (
	"fmt"
	"math"
)

// RawRange is the (minimum, current, maximum) triple reported by a backend.
// It is not guaranteed to be (0, x, 100).
type RawRange struct {
	Minimum uint32
	Current uint32
	Maximum uint32
}

// Valid reports whether the range can be normalised.
func (r RawRange) Valid() bool {
	return r.Minimum < r.Maximum
}

// Percent normalises Current to 0-100, rounding half away from zero.
// Values outside [Minimum, Maximum] are clamped.
func (r RawRange) Percent() (int, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("%w: min %d max %d", ErrDegenerateRange, r.Minimum, r.Maximum)
	}
	return ToPercent(float64(r.Minimum), float64(r.Current), float64(r.Maximum)), nil
}

// RawFor converts a 0-100 percentage to a raw value within the range.
func (r RawRange) RawFor(percent int) (uint32, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, percent)
	}
	if !r.Valid() {
		return 0, fmt.Errorf("%w: min %d max %d", ErrDegenerateRange, r.Minimum, r.Maximum)
	}
	return uint32(FromPercent(float64(r.Minimum), float64(r.Maximum), percent)), nil
}

// ToPercent maps current within [minimum, maximum] to 0-100 using
// (current-minimum)/(maximum-minimum)*100. Callers guarantee minimum < maximum.
func ToPercent(minimum, current, maximum float64) int {
	p := math.Round((current - minimum) / (maximum - minimum) * 100)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

// FromPercent is the inverse of ToPercent.
func FromPercent(minimum, maximum float64, percent int) float64 {
	return math.Round(minimum + (maximum-minimum)*float64(percent)/100)
}
