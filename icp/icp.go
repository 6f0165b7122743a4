// Package icp holds the interface to the instantaneous capture point trajectory planner and a
// reference planner that keeps the CMP constant at the footstep centers.
package icp

import (
	"github.com/golang/geo/r2"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// DesiredState is the planner output for one tick.
type DesiredState struct {
	ICP         r2.Point `json:"icp"`
	ICPVelocity r2.Point `json:"icp_velocity"`
	CMP         r2.Point `json:"cmp"`
}

// TransferAndNextFootstepsData is everything a planner needs to start a phase. It is built when a
// phase starts and not kept afterwards.
type TransferAndNextFootstepsData struct {
	// TransferFromFootstep is where the weight comes from, the trailing foot.
	TransferFromFootstep footstep.Footstep
	// TransferToFootstep is where the weight goes, the upcoming stance foot.
	TransferToFootstep footstep.Footstep
	TransferToSide     robotside.RobotSide

	NextFootstep         *footstep.Footstep
	NextNextFootstep     *footstep.Footstep
	NextNextNextFootstep *footstep.Footstep

	SwingTime    float64
	TransferTime float64
	// SwingFootHeld is set when the swing foot is moved to a held pose instead of being placed.
	SwingFootHeld bool

	CurrentICP r2.Point
	Omega0     float64
	// StanceSupportPolygon is the sole polygon of the stance foot in its own frame.
	StanceSupportPolygon spatialmath.Polygon
}

// Footsteps returns the non-nil upcoming footsteps in order.
func (d TransferAndNextFootstepsData) Footsteps() []footstep.Footstep {
	var out []footstep.Footstep
	for _, f := range []*footstep.Footstep{d.NextFootstep, d.NextNextFootstep, d.NextNextNextFootstep} {
		if f == nil {
			break
		}
		out = append(out, *f)
	}
	return out
}

// Planner generates the desired ICP trajectory of the current phase. Times are absolute controller
// times in seconds.
type Planner interface {
	// InitializeDoubleSupport starts a transfer toward data.TransferToSide, or a standing phase
	// centered between the feet when data has no next footstep.
	InitializeDoubleSupport(data TransferAndNextFootstepsData, t0 float64) error
	// InitializeSingleSupport starts the swing of data.NextFootstep over the stance foot.
	InitializeSingleSupport(data TransferAndNextFootstepsData, t0 float64) error
	Compute(actualICP r2.Point, t float64) DesiredState
	IsDone(t float64) bool
	FinalDesiredICP() r2.Point
}
