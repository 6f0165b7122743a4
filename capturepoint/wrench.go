package capturepoint

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Wrench is a force and a torque, the torque taken about the world origin.
type Wrench struct {
	Force  r3.Vector `json:"force"`
	Torque r3.Vector `json:"torque"`
}

// Add returns the sum of two wrenches expressed about the same point.
func (w Wrench) Add(o Wrench) Wrench {
	return Wrench{Force: w.Force.Add(o.Force), Torque: w.Torque.Add(o.Torque)}
}

// PointForce returns the wrench of a pure force applied at point.
func PointForce(point, force r3.Vector) Wrench {
	return Wrench{Force: force, Torque: point.Cross(force)}
}

// CenterOfPressure is the center of pressure of one foot with the normal force it carries.
type CenterOfPressure struct {
	Point       r3.Vector `json:"point"`
	NormalForce float64   `json:"normal_force"`
}

// Omega0FromWrench returns omega0 and the CMP for the total ground reaction wrench. The CMP lies on
// the plane at the normal-force-weighted height of the centers of pressure.
func Omega0FromWrench(com r3.Vector, mass float64, cops []CenterOfPressure, wrench Wrench) (float64, r2.Point, error) {
	heights := make([]float64, 0, len(cops))
	weights := make([]float64, 0, len(cops))
	total := 0.
	for _, cop := range cops {
		if cop.NormalForce <= 0 {
			continue
		}
		heights = append(heights, cop.Point.Z)
		weights = append(weights, cop.NormalForce)
		total += cop.NormalForce
	}
	if total <= 0 {
		return 0, r2.Point{}, errors.Wrap(ErrOmega0Invalid, "no loaded center of pressure")
	}
	cmpHeight := stat.Mean(heights, weights)

	fz := wrench.Force.Z
	if fz <= 0 {
		return 0, r2.Point{}, errors.Wrapf(ErrOmega0Invalid, "vertical ground reaction force %v", fz)
	}
	cmp := r2.Point{
		X: (cmpHeight*wrench.Force.X - wrench.Torque.Y) / fz,
		Y: (wrench.Torque.X + cmpHeight*wrench.Force.Y) / fz,
	}

	omega0 := math.Sqrt(fz / (mass * (com.Z - cmpHeight)))
	if err := ValidateOmega0(omega0); err != nil {
		return 0, r2.Point{}, err
	}
	return omega0, cmp, nil
}
