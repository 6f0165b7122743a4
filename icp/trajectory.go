package icp

import (
	"math"

	"github.com/golang/geo/r2"
)

// Exponential returns the ICP and its velocity after t seconds of linear inverted pendulum motion
// about a constant cmp, starting from icp0.
func Exponential(cmp, icp0 r2.Point, omega0, t float64) (r2.Point, r2.Point) {
	icp := cmp.Add(icp0.Sub(cmp).Mul(math.Exp(omega0 * t)))
	return icp, icp.Sub(cmp).Mul(omega0)
}

// ExponentialStart returns the ICP from which duration seconds about cmp end at icpEnd.
func ExponentialStart(cmp, icpEnd r2.Point, omega0, duration float64) r2.Point {
	return cmp.Add(icpEnd.Sub(cmp).Mul(math.Exp(-omega0 * duration)))
}

// Hermite is a cubic Hermite segment between two ICP states.
type Hermite struct {
	P0, V0, P1, V1 r2.Point
	Duration       float64
}

// At returns position and velocity at t seconds, clamped to the segment.
func (h Hermite) At(t float64) (r2.Point, r2.Point) {
	if h.Duration <= 0 {
		return h.P1, h.V1
	}
	s := math.Max(0, math.Min(1, t/h.Duration))
	s2, s3 := s*s, s*s*s
	T := h.Duration

	pos := h.P0.Mul(2*s3 - 3*s2 + 1).
		Add(h.V0.Mul(T * (s3 - 2*s2 + s))).
		Add(h.P1.Mul(-2*s3 + 3*s2)).
		Add(h.V1.Mul(T * (s3 - s2)))
	vel := h.P0.Mul((6*s2 - 6*s) / T).
		Add(h.V0.Mul(3*s2 - 4*s + 1)).
		Add(h.P1.Mul((-6*s2 + 6*s) / T)).
		Add(h.V1.Mul(3*s2 - 2*s))
	return pos, vel
}

// CMPFromICP returns the CMP consistent with an ICP state.
func CMPFromICP(icp, icpVelocity r2.Point, omega0 float64) r2.Point {
	return icp.Sub(icpVelocity.Mul(1 / omega0))
}
