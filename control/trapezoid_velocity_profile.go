package control

import (
	"math"

	"github.com/pkg/errors"
)

// TrapezoidProfile moves a scalar from 0 to a distance with a symmetric trapezoidal velocity.
type TrapezoidProfile struct {
	distance float64
	maxAcc   float64
	vPeak    float64
	tAcc     float64
	duration float64
}

// NewTrapezoidProfile returns the fastest profile covering distance within maxVel and maxAcc. Short
// distances give a triangular profile.
func NewTrapezoidProfile(distance, maxVel, maxAcc float64) (*TrapezoidProfile, error) {
	if maxVel <= 0 || maxAcc <= 0 {
		return nil, errors.Errorf("trapezoid profile needs positive max_vel and max_acc, got %v and %v", maxVel, maxAcc)
	}
	d := math.Abs(distance)
	vPeak := math.Min(math.Sqrt(d*maxAcc), maxVel)
	p := &TrapezoidProfile{distance: distance, maxAcc: maxAcc, vPeak: vPeak}
	if vPeak == 0 {
		return p, nil
	}
	p.tAcc = vPeak / maxAcc
	p.duration = 2*p.tAcc + (d-vPeak*p.tAcc)/vPeak
	return p, nil
}

// NewTrapezoidProfileForDuration returns a profile covering distance in exactly duration seconds,
// accelerating for the first and last third.
func NewTrapezoidProfileForDuration(distance, duration float64) (*TrapezoidProfile, error) {
	if duration <= 0 {
		return nil, errors.Errorf("trapezoid profile needs a positive duration, got %v", duration)
	}
	tAcc := duration / 3
	vPeak := math.Abs(distance) / (duration - tAcc)
	return &TrapezoidProfile{distance: distance, maxAcc: vPeak / tAcc, vPeak: vPeak, tAcc: tAcc, duration: duration}, nil
}

// Duration returns the time the profile takes.
func (p *TrapezoidProfile) Duration() float64 {
	return p.duration
}

// At returns the position and velocity at t, clamped to the profile.
func (p *TrapezoidProfile) At(t float64) (float64, float64) {
	if p.duration == 0 {
		return p.distance, 0
	}
	t = math.Max(0, math.Min(t, p.duration))
	dir := math.Copysign(1, p.distance)
	var pos, vel float64
	switch {
	case t < p.tAcc:
		vel = p.maxAcc * t
		pos = 0.5 * p.maxAcc * t * t
	case t <= p.duration-p.tAcc:
		vel = p.vPeak
		pos = 0.5*p.vPeak*p.tAcc + p.vPeak*(t-p.tAcc)
	default:
		rem := p.duration - t
		vel = p.maxAcc * rem
		pos = math.Abs(p.distance) - 0.5*p.maxAcc*rem*rem
	}
	return dir * pos, dir * vel
}
