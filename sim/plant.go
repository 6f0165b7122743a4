// Package sim hosts the walking controller on a linear inverted pendulum with kinematic feet.
package sim

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/spatialmath"
)

// Plant is a point mass on a massless telescopic leg. Horizontally it is a linear inverted pendulum
// about the CMP; vertically it follows the commanded acceleration.
type Plant struct {
	mass    float64
	gravity float64

	com r3.Vector
	vel r3.Vector
	acc r3.Vector
	cmp r2.Point
}

// NewPlant returns a plant at rest with its CoM at com.
func NewPlant(com r3.Vector, mass, gravity float64) (*Plant, error) {
	if mass <= 0 || gravity <= 0 {
		return nil, errors.New("plant mass and gravity must be positive")
	}
	if com.Z <= 0 {
		return nil, errors.Errorf("plant CoM must be above the ground, got z=%v", com.Z)
	}
	return &Plant{mass: mass, gravity: gravity, com: com, cmp: spatialmath.Horizontal(com)}, nil
}

// CoM returns the CoM position.
func (p *Plant) CoM() r3.Vector {
	return p.com
}

// Velocity returns the CoM velocity.
func (p *Plant) Velocity() r3.Vector {
	return p.vel
}

// Acceleration returns the CoM acceleration at the start of the last step.
func (p *Plant) Acceleration() r3.Vector {
	return p.acc
}

// Omega0 returns the natural frequency for the current height.
func (p *Plant) Omega0() float64 {
	return math.Sqrt(p.gravity / p.com.Z)
}

// Push changes the CoM velocity instantly.
func (p *Plant) Push(dv r3.Vector) {
	p.vel = p.vel.Add(dv)
}

// Step integrates dt seconds with a constant CMP and vertical acceleration. The horizontal motion is
// the closed form solution of x'' = omega0^2 (x - cmp).
func (p *Plant) Step(cmp r2.Point, verticalAcceleration, dt float64) error {
	if dt <= 0 {
		return errors.Errorf("plant step must be positive, got %v", dt)
	}
	w := p.Omega0()
	c, s := math.Cosh(w*dt), math.Sinh(w*dt)
	x0 := spatialmath.Horizontal(p.com).Sub(cmp)
	v0 := spatialmath.Horizontal(p.vel)
	x := x0.Mul(c).Add(v0.Mul(s / w))
	v := x0.Mul(w * s).Add(v0.Mul(c))
	a := x0.Mul(w * w)

	z := p.com.Z + p.vel.Z*dt + 0.5*verticalAcceleration*dt*dt
	if z <= 0 {
		return errors.Errorf("CoM went through the ground (z=%v)", z)
	}
	p.acc = r3.Vector{X: a.X, Y: a.Y, Z: verticalAcceleration}
	p.com = r3.Vector{X: cmp.X + x.X, Y: cmp.Y + x.Y, Z: z}
	p.vel = r3.Vector{X: v.X, Y: v.Y, Z: p.vel.Z + verticalAcceleration*dt}
	p.cmp = cmp
	return nil
}

// CapturePoint returns the instantaneous capture point.
func (p *Plant) CapturePoint() r2.Point {
	return spatialmath.Horizontal(p.com).Add(spatialmath.Horizontal(p.vel).Mul(1 / p.Omega0()))
}

// GroundReaction returns the ground reaction wrench consistent with the last CMP and acceleration,
// split over centers of pressure at the given contact points.
func (p *Plant) GroundReaction(contacts []r2.Point) (capturepoint.Wrench, []capturepoint.CenterOfPressure) {
	fz := p.mass * (p.gravity + p.acc.Z)
	if fz <= 0 || len(contacts) == 0 {
		return capturepoint.Wrench{}, nil
	}
	// A force through the CMP along the line to the CoM.
	lean := spatialmath.Horizontal(p.com).Sub(p.cmp).Mul(fz / p.com.Z)
	force := r3.Vector{X: lean.X, Y: lean.Y, Z: fz}
	wrench := capturepoint.PointForce(r3.Vector{X: p.cmp.X, Y: p.cmp.Y}, force)

	cops := make([]capturepoint.CenterOfPressure, 0, len(contacts))
	for _, c := range contacts {
		cops = append(cops, capturepoint.CenterOfPressure{
			Point:       r3.Vector{X: c.X, Y: c.Y},
			NormalForce: fz / float64(len(contacts)),
		})
	}
	return wrench, cops
}
