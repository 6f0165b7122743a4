package contact

import (
	"github.com/golang/geo/r2"

	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// toeVertexTolerance selects the sole vertices that form the toe line.
const toeVertexTolerance = 0.005

// SupportPolygonTracker owns the per-foot contact states and the combined support polygon. Every
// mutation recomputes the polygon before returning, so a reader can never observe a polygon older
// than the last contact change.
type SupportPolygonTracker struct {
	logger   logging.Logger
	friction float64

	soles     robotside.SideDependentList[spatialmath.Polygon]
	solePoses robotside.SideDependentList[spatialmath.Pose]
	states    robotside.SideDependentList[State]

	footPolygons robotside.SideDependentList[spatialmath.Polygon]
	support      spatialmath.Polygon
	revision     uint64
}

// NewSupportPolygonTracker returns a tracker with both feet flat on the ground at the origin.
func NewSupportPolygonTracker(
	soles robotside.SideDependentList[spatialmath.Polygon],
	friction float64,
	logger logging.Logger,
) *SupportPolygonTracker {
	if friction <= 0 {
		friction = DefaultFrictionCoefficient
	}
	t := &SupportPolygonTracker{logger: logger, friction: friction, soles: soles}
	t.Reset()
	return t
}

// Reset puts both feet flat and recomputes.
func (t *SupportPolygonTracker) Reset() {
	for _, side := range robotside.Values {
		t.states.Set(side, NewFlatState(t.soles.Get(side), t.friction))
	}
	t.recompute()
}

// UpdateSolePoses moves the soles; the world polygons change with them.
func (t *SupportPolygonTracker) UpdateSolePoses(poses robotside.SideDependentList[spatialmath.Pose]) {
	t.solePoses = poses
	t.recompute()
}

// SetContactState replaces the contact state of one foot and recomputes the support polygon.
func (t *SupportPolygonTracker) SetContactState(side robotside.RobotSide, state State) {
	t.states.Set(side, state.Copy())
	t.logger.Debugw("contact state changed", "side", side, "in_contact", state.InContact, "points", len(state.Points))
	t.recompute()
}

// SetFlatFoot puts every sole vertex of side in contact.
func (t *SupportPolygonTracker) SetFlatFoot(side robotside.RobotSide) {
	t.SetContactState(side, NewFlatState(t.soles.Get(side), t.friction))
}

// SetOnToes reduces the contact of side to its toe line.
func (t *SupportPolygonTracker) SetOnToes(side robotside.RobotSide) {
	t.SetContactState(side, NewToesState(t.soles.Get(side), t.friction, toeVertexTolerance))
}

// SetFree removes the contact of side.
func (t *SupportPolygonTracker) SetFree(side robotside.RobotSide) {
	t.SetContactState(side, NewFreeState())
}

func (t *SupportPolygonTracker) recompute() {
	var combined spatialmath.Polygon
	for _, side := range robotside.Values {
		state := t.states.Get(side)
		world := state.Polygon().Transform(t.solePoses.Get(side))
		t.footPolygons.Set(side, world)
		if state.InContact {
			combined = combined.Combine(world)
		}
	}
	t.support = combined
	t.revision++
}

// ContactState returns a copy of the state of side.
func (t *SupportPolygonTracker) ContactState(side robotside.RobotSide) State {
	return t.states.Get(side).Copy()
}

// ContactStates returns copies of both states.
func (t *SupportPolygonTracker) ContactStates() robotside.SideDependentList[State] {
	return robotside.NewSideDependentList(t.ContactState(robotside.Left), t.ContactState(robotside.Right))
}

// InContact reports whether side bears load.
func (t *SupportPolygonTracker) InContact(side robotside.RobotSide) bool {
	return t.states.Get(side).InContact
}

// SupportSide returns the only loaded foot, false when zero or two feet are loaded.
func (t *SupportPolygonTracker) SupportSide() (robotside.RobotSide, bool) {
	left, right := t.InContact(robotside.Left), t.InContact(robotside.Right)
	switch {
	case left && !right:
		return robotside.Left, true
	case right && !left:
		return robotside.Right, true
	}
	return robotside.Left, false
}

// FootPolygon returns the world polygon of the active contact points of side.
func (t *SupportPolygonTracker) FootPolygon(side robotside.RobotSide) spatialmath.Polygon {
	return t.footPolygons.Get(side)
}

// SolePolygon returns the full sole of side in the world, whether or not it is in contact.
func (t *SupportPolygonTracker) SolePolygon(side robotside.RobotSide) spatialmath.Polygon {
	return t.soles.Get(side).Transform(t.solePoses.Get(side))
}

// LocalSole returns the full sole of side in its own frame.
func (t *SupportPolygonTracker) LocalSole(side robotside.RobotSide) spatialmath.Polygon {
	return t.soles.Get(side)
}

// SolePose returns the last pose given for side.
func (t *SupportPolygonTracker) SolePose(side robotside.RobotSide) spatialmath.Pose {
	return t.solePoses.Get(side)
}

// SupportPolygon returns the current combined support polygon in the world.
func (t *SupportPolygonTracker) SupportPolygon() spatialmath.Polygon {
	return t.support
}

// MidFeet returns the midpoint between both sole centers.
func (t *SupportPolygonTracker) MidFeet() r2.Point {
	l := t.SolePolygon(robotside.Left).Centroid()
	r := t.SolePolygon(robotside.Right).Centroid()
	return l.Add(r).Mul(0.5)
}

// Revision increases by one on every recompute.
func (t *SupportPolygonTracker) Revision() uint64 {
	return t.revision
}
