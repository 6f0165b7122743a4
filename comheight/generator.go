package comheight

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/biped/contact"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/robotside"
)

// PartialDerivatives describe the desired CoM height as a function of the horizontal CoM position.
type PartialDerivatives struct {
	Z       float64 `json:"z"`
	DzDx    float64 `json:"dz_dx"`
	DzDy    float64 `json:"dz_dy"`
	D2zDx2  float64 `json:"d2z_dx2"`
	D2zDy2  float64 `json:"d2z_dy2"`
	D2zDxDy float64 `json:"d2z_dxdy"`
}

// Input is what a generator is solved at.
type Input struct {
	CoM r2.Point
}

// TrajectoryGenerator produces the desired CoM height surface of the current phase.
type TrajectoryGenerator interface {
	Initialize(
		data icp.TransferAndNextFootstepsData,
		supportSide robotside.RobotSide,
		next *footstep.Footstep,
		contacts robotside.SideDependentList[contact.State],
	) error
	Solve(in Input) (PartialDerivatives, error)
}

// GeneratorType selects a reference generator.
type GeneratorType string

const (
	// ConstantGenerator keeps the CoM at a fixed height.
	ConstantGenerator GeneratorType = "constant"
	// FootstepGenerator ramps the height between the stance foot and the next footstep.
	FootstepGenerator GeneratorType = "footstep"
)

// ConstantHeightGenerator returns a flat height surface.
type ConstantHeightGenerator struct {
	Height float64
}

// Initialize implements TrajectoryGenerator.
func (g *ConstantHeightGenerator) Initialize(
	icp.TransferAndNextFootstepsData,
	robotside.RobotSide,
	*footstep.Footstep,
	robotside.SideDependentList[contact.State],
) error {
	return nil
}

// Solve implements TrajectoryGenerator.
func (g *ConstantHeightGenerator) Solve(Input) (PartialDerivatives, error) {
	return PartialDerivatives{Z: g.Height}, nil
}

// FootstepHeightGenerator keeps the CoM at a nominal height above the ground, interpolating the
// ground height linearly along the line from the stance foot to the next footstep.
type FootstepHeightGenerator struct {
	NominalHeight float64

	start, end   r2.Point
	zStart, zEnd float64
	ramp         bool
}

// Initialize implements TrajectoryGenerator.
func (g *FootstepHeightGenerator) Initialize(
	data icp.TransferAndNextFootstepsData,
	supportSide robotside.RobotSide,
	next *footstep.Footstep,
	contacts robotside.SideDependentList[contact.State],
) error {
	stance := data.TransferToFootstep
	if !contacts.Get(supportSide).InContact && contacts.Get(supportSide.Opposite()).InContact {
		stance = data.TransferFromFootstep
	}
	g.start, g.zStart = stance.Pose.XY(), stance.Pose.Point.Z
	g.end, g.zEnd = g.start, g.zStart
	g.ramp = false
	if next != nil && next.Pose.XY().Sub(g.start).Norm() > 1e-6 {
		g.end, g.zEnd = next.Pose.XY(), next.Pose.Point.Z
		g.ramp = true
	}
	return nil
}

// Solve implements TrajectoryGenerator.
func (g *FootstepHeightGenerator) Solve(in Input) (PartialDerivatives, error) {
	if !g.ramp {
		return PartialDerivatives{Z: g.zStart + g.NominalHeight}, nil
	}
	d := g.end.Sub(g.start)
	length2 := d.Dot(d)
	s := in.CoM.Sub(g.start).Dot(d) / length2
	out := PartialDerivatives{}
	if s > 0 && s < 1 {
		slope := (g.zEnd - g.zStart) / length2
		out.DzDx = slope * d.X
		out.DzDy = slope * d.Y
	}
	s = math.Max(0, math.Min(1, s))
	out.Z = g.zStart + s*(g.zEnd-g.zStart) + g.NominalHeight
	return out, nil
}
