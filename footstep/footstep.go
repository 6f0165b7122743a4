// Package footstep defines footsteps and the sources the walking controller consumes them from.
package footstep

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// Frame is the frame a footstep pose is expressed in.
type Frame string

const (
	// WorldFrame poses are absolute.
	WorldFrame Frame = ""
	// StanceFrame poses are relative to the sole of the foot that will support the step.
	StanceFrame Frame = "stance"
)

// Footstep is a target pose for one foot. Side is the foot being placed. Footsteps are values and
// are never modified in place; derived footsteps are copies.
type Footstep struct {
	ID             string              `json:"id"`
	Side           robotside.RobotSide `json:"side"`
	Pose           spatialmath.Pose    `json:"pose"`
	Frame          Frame               `json:"frame,omitempty"`
	SupportPolygon spatialmath.Polygon `json:"-"`
	SwingHeight    float64             `json:"swing_height,omitempty"`
	SwingTime      float64             `json:"swing_time,omitempty"`
	TransferTime   float64             `json:"transfer_time,omitempty"`
}

// New returns a world frame footstep with a fresh ID.
func New(side robotside.RobotSide, pose spatialmath.Pose, polygon spatialmath.Polygon) Footstep {
	return Footstep{ID: uuid.NewString(), Side: side, Pose: pose, SupportPolygon: polygon}
}

// AtCurrentLocation returns a footstep placing side where it already is.
func AtCurrentLocation(side robotside.RobotSide, current spatialmath.Pose, polygon spatialmath.Polygon) Footstep {
	return New(side, current, polygon)
}

// Translated returns a copy moved horizontally by d.
func (f Footstep) Translated(d r2.Point) Footstep {
	f.Pose = f.Pose.Translate(r3.Vector{X: d.X, Y: d.Y})
	return f
}

// InWorld returns the footstep with its pose resolved against the pose of the supporting sole.
func (f Footstep) InWorld(stance spatialmath.Pose) Footstep {
	if f.Frame != StanceFrame {
		return f
	}
	f.Pose = stance.Compose(f.Pose)
	f.Frame = WorldFrame
	return f
}

// WorldPolygon returns the support polygon placed at the footstep pose.
func (f Footstep) WorldPolygon() spatialmath.Polygon {
	return f.SupportPolygon.Transform(f.Pose)
}

// SwingDuration returns the swing time, or def when unset.
func (f Footstep) SwingDuration(def float64) float64 {
	if f.SwingTime > 0 {
		return f.SwingTime
	}
	return def
}

// TransferDuration returns the transfer time, or def when unset.
func (f Footstep) TransferDuration(def float64) float64 {
	if f.TransferTime > 0 {
		return f.TransferTime
	}
	return def
}

func (f Footstep) String() string {
	return fmt.Sprintf("footstep %s (%s) at %s", f.ID, f.Side, f.Pose)
}
