// Package contact tracks which parts of each foot touch the ground and the support polygon they
// form together.
package contact

import (
	"github.com/golang/geo/r2"

	"go.viam.com/biped/spatialmath"
)

// DefaultFrictionCoefficient is used for contacts created without an explicit coefficient.
const DefaultFrictionCoefficient = 0.8

// State is the contact configuration of one foot: the active contact points in the sole frame, the
// friction coefficient and whether the foot bears load at all.
type State struct {
	Points              []r2.Point `json:"points"`
	FrictionCoefficient float64    `json:"friction_coefficient"`
	InContact           bool       `json:"in_contact"`
}

// NewFlatState returns a state with every sole vertex active.
func NewFlatState(sole spatialmath.Polygon, friction float64) State {
	return State{Points: sole.Vertices(), FrictionCoefficient: friction, InContact: true}
}

// NewToesState returns a state with only the front-most sole vertices active.
func NewToesState(sole spatialmath.Polygon, friction, tolerance float64) State {
	return State{
		Points:              sole.VerticesWithin(r2.Point{X: 1}, tolerance),
		FrictionCoefficient: friction,
		InContact:           true,
	}
}

// NewFreeState returns a state without contact.
func NewFreeState() State {
	return State{}
}

// Polygon returns the hull of the active points in the sole frame.
func (s State) Polygon() spatialmath.Polygon {
	if !s.InContact {
		return spatialmath.Polygon{}
	}
	return spatialmath.NewConvexHull(s.Points...)
}

// Copy returns a deep copy so collaborators cannot alias the tracker's points.
func (s State) Copy() State {
	points := make([]r2.Point, len(s.Points))
	copy(points, s.Points)
	return State{Points: points, FrictionCoefficient: s.FrictionCoefficient, InContact: s.InContact}
}

// IsOnToes reports whether the contact is reduced to a line or a point.
func (s State) IsOnToes() bool {
	return s.InContact && len(s.Points) > 0 && len(s.Points) <= 2
}
