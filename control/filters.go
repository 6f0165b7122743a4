// Package control contains the small signal processing and timing building blocks of the walking
// controller: filters, a PID, motion profiles and the fixed rate loop that ticks the controller.
package control

import (
	"math"

	"github.com/pkg/errors"
)

// SecondOrderFilter is a critically damped second order filter. Its output tracks a reference
// trajectory and smooths out steps in the reference, so the output acceleration stays bounded when
// the reference jumps at a phase boundary.
type SecondOrderFilter struct {
	naturalFrequency float64
	initialized      bool

	position     float64
	velocity     float64
	acceleration float64
}

// NewSecondOrderFilter returns a filter with the given natural frequency in rad/s.
func NewSecondOrderFilter(naturalFrequency float64) (*SecondOrderFilter, error) {
	if naturalFrequency <= 0 || math.IsNaN(naturalFrequency) {
		return nil, errors.Errorf("second order filter needs a positive natural frequency, got %v", naturalFrequency)
	}
	return &SecondOrderFilter{naturalFrequency: naturalFrequency}, nil
}

// Reset makes the next call to Next start from its reference.
func (f *SecondOrderFilter) Reset() {
	f.initialized = false
	f.position, f.velocity, f.acceleration = 0, 0, 0
}

// SetNaturalFrequency changes the natural frequency without touching the filter state.
func (f *SecondOrderFilter) SetNaturalFrequency(naturalFrequency float64) error {
	if naturalFrequency <= 0 || math.IsNaN(naturalFrequency) {
		return errors.Errorf("second order filter needs a positive natural frequency, got %v", naturalFrequency)
	}
	f.naturalFrequency = naturalFrequency
	return nil
}

// ResetTo starts the filter at rest at position.
func (f *SecondOrderFilter) ResetTo(position float64) {
	f.initialized = true
	f.position, f.velocity, f.acceleration = position, 0, 0
}

// Next advances the filter by dt toward the reference position, velocity and acceleration and
// returns the filtered position, velocity and acceleration.
func (f *SecondOrderFilter) Next(ref, refVelocity, refAcceleration, dt float64) (float64, float64, float64) {
	if !f.initialized {
		f.initialized = true
		f.position, f.velocity, f.acceleration = ref, refVelocity, refAcceleration
		return f.position, f.velocity, f.acceleration
	}
	wn := f.naturalFrequency
	f.acceleration = refAcceleration + 2*wn*(refVelocity-f.velocity) + wn*wn*(ref-f.position)
	f.velocity += f.acceleration * dt
	f.position += f.velocity * dt
	return f.position, f.velocity, f.acceleration
}

// Position returns the last filtered position.
func (f *SecondOrderFilter) Position() float64 {
	return f.position
}

// AlphaFilter is a first order low pass filter y = alpha*y + (1-alpha)*x.
type AlphaFilter struct {
	alpha       float64
	value       float64
	initialized bool
}

// AlphaFromBreakFrequency returns the alpha of a first order filter with the given break frequency
// in Hz sampled every dt seconds. A non-positive frequency disables filtering.
func AlphaFromBreakFrequency(breakFrequency, dt float64) float64 {
	if breakFrequency <= 0 {
		return 0
	}
	omega := 2 * math.Pi * breakFrequency
	return math.Max(0, math.Min(1, 1/(1+omega*dt)))
}

// NewAlphaFilter returns a filter with the given alpha in [0, 1].
func NewAlphaFilter(alpha float64) *AlphaFilter {
	return &AlphaFilter{alpha: math.Max(0, math.Min(1, alpha))}
}

// Next filters x.
func (f *AlphaFilter) Next(x float64) float64 {
	if !f.initialized {
		f.initialized = true
		f.value = x
		return x
	}
	f.value = f.alpha*f.value + (1-f.alpha)*x
	return f.value
}

// SetAlpha changes alpha and keeps the filtered value.
func (f *AlphaFilter) SetAlpha(alpha float64) {
	f.alpha = math.Max(0, math.Min(1, alpha))
}

// Reset forgets the filtered value.
func (f *AlphaFilter) Reset() {
	f.initialized = false
	f.value = 0
}
