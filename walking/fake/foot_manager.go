package fake

import (
	"math"

	"go.viam.com/biped/control"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// DefaultSwingHeight is the apex of swings whose footstep has no swing height.
const DefaultSwingHeight = 0.05

// groundTolerance is how close to the ground a sole must be to touch it.
const groundTolerance = 1e-4

// FootMode is what the foot manager was last asked to do with a foot.
type FootMode string

const (
	FootFlat  FootMode = "flat"
	FootToes  FootMode = "toes"
	FootSwing FootMode = "swing"
	FootHeld  FootMode = "held"
)

type motion struct {
	from, to spatialmath.Pose
	t0       float64
	height   float64
	profile  *control.TrapezoidProfile
	hold     bool
}

// FootManager moves the feet kinematically: swings follow a trapezoidal progress profile along the
// straight line to the target with a sine shaped apex. Call Update with the controller time before
// every tick.
type FootManager struct {
	logger logging.Logger
	now    float64

	feet    robotside.SideDependentList[spatialmath.Pose]
	motions robotside.SideDependentList[*motion]

	Modes   robotside.SideDependentList[FootMode]
	Swings  []footstep.Footstep
	Replans []footstep.Footstep
	Holds   []footstep.PoseRequest
	Escapes []robotside.RobotSide
	ToeOffs []robotside.RobotSide
}

// NewFootManager returns a manager with the feet at feet.
func NewFootManager(feet robotside.SideDependentList[spatialmath.Pose], logger logging.Logger) *FootManager {
	return &FootManager{
		logger: logger,
		feet:   feet,
		Modes:  robotside.NewSideDependentList(FootFlat, FootFlat),
	}
}

// Feet returns the current sole poses.
func (m *FootManager) Feet() robotside.SideDependentList[spatialmath.Pose] {
	return m.feet
}

// SetFoot teleports a foot and cancels its motion.
func (m *FootManager) SetFoot(side robotside.RobotSide, pose spatialmath.Pose) {
	m.feet.Set(side, pose)
	m.motions.Set(side, nil)
}

// Moving reports whether side is following a motion that has not reached its target.
func (m *FootManager) Moving(side robotside.RobotSide) bool {
	mo := m.motions.Get(side)
	return mo != nil && m.now-mo.t0 < mo.profile.Duration()
}

// OnGround reports whether side has finished moving and rests on the ground.
func (m *FootManager) OnGround(side robotside.RobotSide) bool {
	return !m.Moving(side) && m.feet.Get(side).Point.Z <= groundTolerance
}

// Update advances every motion to time t.
func (m *FootManager) Update(t float64) {
	m.now = t
	for _, side := range robotside.Values {
		mo := m.motions.Get(side)
		if mo == nil {
			continue
		}
		s, _ := mo.profile.At(t - mo.t0)
		pose := spatialmath.Pose{
			Point: mo.from.Point.Add(mo.to.Point.Sub(mo.from.Point).Mul(s)),
			Yaw:   mo.from.Yaw + spatialmath.AngleDiff(mo.to.Yaw, mo.from.Yaw)*s,
		}
		pose.Point.Z += mo.height * math.Sin(math.Pi*s)
		m.feet.Set(side, pose)
		if t-mo.t0 >= mo.profile.Duration() {
			m.feet.Set(side, mo.to)
			if !mo.hold {
				m.motions.Set(side, nil)
			}
		}
	}
}

func (m *FootManager) start(side robotside.RobotSide, to spatialmath.Pose, duration, height float64, hold bool) {
	profile, err := control.NewTrapezoidProfileForDuration(1, math.Max(duration, 1e-3))
	if err != nil {
		m.logger.Errorw("cannot plan foot motion", "side", side, "error", err)
		return
	}
	m.motions.Set(side, &motion{
		from:    m.feet.Get(side),
		to:      to,
		t0:      m.now,
		height:  height,
		profile: profile,
		hold:    hold,
	})
}

// SetFlatFootContactState implements walking.FootManager.
func (m *FootManager) SetFlatFootContactState(side robotside.RobotSide) {
	m.Modes.Set(side, FootFlat)
}

// SetOnToesContactState implements walking.FootManager.
func (m *FootManager) SetOnToesContactState(side robotside.RobotSide) {
	m.Modes.Set(side, FootToes)
	m.ToeOffs = append(m.ToeOffs, side)
}

// RequestSwing implements walking.FootManager.
func (m *FootManager) RequestSwing(step footstep.Footstep, swingTime float64) {
	height := step.SwingHeight
	if height <= 0 {
		height = DefaultSwingHeight
	}
	m.Modes.Set(step.Side, FootSwing)
	m.Swings = append(m.Swings, step)
	m.start(step.Side, step.Pose, swingTime, height, false)
}

// RequestMoveStraight implements walking.FootManager.
func (m *FootManager) RequestMoveStraight(side robotside.RobotSide, pose spatialmath.Pose, duration float64) {
	m.Modes.Set(side, FootHeld)
	m.Holds = append(m.Holds, footstep.PoseRequest{Side: side, Pose: pose, Duration: duration})
	m.start(side, pose, duration, 0, true)
}

// ReplanSwing implements walking.FootManager.
func (m *FootManager) ReplanSwing(step footstep.Footstep, remaining float64) {
	m.Replans = append(m.Replans, step)
	mo := m.motions.Get(step.Side)
	if mo == nil {
		m.RequestSwing(step, remaining)
		return
	}
	// Keep the apex already reached and fly straight to the new target.
	m.start(step.Side, step.Pose, remaining, 0, mo.hold)
}

// RequestSingularityEscape implements walking.FootManager.
func (m *FootManager) RequestSingularityEscape(side robotside.RobotSide) {
	m.Escapes = append(m.Escapes, side)
}
