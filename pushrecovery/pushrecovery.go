// Package pushrecovery decides when the capture point can no longer be kept inside the support
// region and replans footsteps to catch the robot.
package pushrecovery

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// Status is what the module is currently doing.
type Status int

const (
	// Idle means no recovery is in progress.
	Idle Status = iota
	// AdjustingStep means the swing foot landing target was moved.
	AdjustingStep
	// RecoveringFromDoubleSupport means a footstep was synthesized after a fall while standing.
	RecoveringFromDoubleSupport
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case AdjustingStep:
		return "adjusting_step"
	case RecoveringFromDoubleSupport:
		return "recovering_from_double_support"
	default:
		return "unknown"
	}
}

// SingleSupportInput is read once per single support tick.
type SingleSupportInput struct {
	Time               float64
	ICP                r2.Point
	Omega0             float64
	SwingTimeRemaining float64
	StanceSide         robotside.RobotSide
	// StancePolygon is the stance foot contact polygon in the world.
	StancePolygon spatialmath.Polygon
	// Footstep is the current landing target of the swing foot.
	Footstep footstep.Footstep
}

// DoubleSupportInput is read once per double support tick.
type DoubleSupportInput struct {
	Time           float64
	ICP            r2.Point
	Omega0         float64
	SupportPolygon spatialmath.Polygon
	// FootPolygons are the world contact polygons of each foot.
	FootPolygons robotside.SideDependentList[spatialmath.Polygon]
	Feet         robotside.SideDependentList[spatialmath.Pose]
	// Soles are the sole polygons in the sole frame, used for synthesized footsteps.
	Soles robotside.SideDependentList[spatialmath.Polygon]
}

// Fall describes a fall detected in double support.
type Fall struct {
	FallingSide robotside.RobotSide
	// Footstep places the falling side foot; the other foot becomes the stance foot.
	Footstep footstep.Footstep
}

// Module detects falls and replans footsteps. It holds the recovery context of the current
// single support phase; Reset clears it.
type Module struct {
	cfg    Config
	logger logging.Logger

	status      Status
	captureTime float64
	recovery    *footstep.Footstep
	original    *footstep.Footstep
	plan        *RecoveryPlan
}

// NewModule returns a module with the given config.
func NewModule(cfg Config, logger logging.Logger) (*Module, error) {
	if err := cfg.Validate("push_recovery"); err != nil {
		return nil, err
	}
	return &Module{cfg: cfg, logger: logger}, nil
}

// UpdateConfig replaces the config. A recovery in progress keeps its footstep and plan until Reset;
// the new config applies from the next trigger.
func (m *Module) UpdateConfig(cfg Config) error {
	if err := cfg.Validate("push_recovery"); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

// Enabled reports whether the module can trigger.
func (m *Module) Enabled() bool {
	return m.cfg.Enabled
}

// Reset clears the recovery context.
func (m *Module) Reset() {
	m.status = Idle
	m.captureTime = 0
	m.recovery = nil
	m.original = nil
	m.plan = nil
}

// Status returns the current status.
func (m *Module) Status() Status {
	return m.status
}

// IsRecovering reports whether a recovery is in progress.
func (m *Module) IsRecovering() bool {
	return m.status != Idle
}

// IsRecoveringFromDoubleSupportFall reports whether the current single support was forced by a fall
// in double support.
func (m *Module) IsRecoveringFromDoubleSupportFall() bool {
	return m.status == RecoveringFromDoubleSupport
}

// RecoveryFootstep returns the synthesized or adjusted footstep.
func (m *Module) RecoveryFootstep() (footstep.Footstep, bool) {
	if m.recovery == nil {
		return footstep.Footstep{}, false
	}
	return *m.recovery, true
}

// CaptureTime returns when the current recovery started.
func (m *Module) CaptureTime() float64 {
	return m.captureTime
}

// projectedICP returns the ICP after duration seconds about the CMP at the projection of icp onto
// the stance polygon.
func projectedICP(stance spatialmath.Polygon, pt r2.Point, omega0, duration float64) (r2.Point, r2.Point) {
	cmp := stance.Project(pt)
	end, _ := icp.Exponential(cmp, pt, omega0, duration)
	return end, cmp
}

// CheckForDoubleSupportFall reports a fall when the ICP has left the shrunk double support polygon
// and returns the footstep that catches it. Stepping is bounded by MaxStepLength.
func (m *Module) CheckForDoubleSupportFall(in DoubleSupportInput) (Fall, bool) {
	if !m.cfg.Enabled || m.status == RecoveringFromDoubleSupport {
		return Fall{}, false
	}
	if in.SupportPolygon.ContainsWithMargin(in.ICP, m.cfg.SupportPolygonMargin) {
		return Fall{}, false
	}

	center := in.SupportPolygon.Centroid()
	excursion := in.ICP.Sub(center)
	falling := robotside.Left
	best := math.Inf(-1)
	for _, side := range robotside.Values {
		d := in.FootPolygons.Get(side).Centroid().Sub(center).Dot(excursion)
		if d > best {
			best, falling = d, side
		}
	}
	stanceSide := falling.Opposite()

	target, cmp := projectedICP(in.FootPolygons.Get(stanceSide), in.ICP, in.Omega0, m.cfg.RecoverySwingTime)
	current := in.Feet.Get(falling)
	step := target.Sub(current.XY())
	if n := step.Norm(); n > m.cfg.MaxStepLength {
		step = step.Mul(m.cfg.MaxStepLength / n)
	}
	placed := current.XY().Add(step)
	recovery := footstep.New(falling, spatialmath.Pose{
		Point: r3.Vector{X: placed.X, Y: placed.Y, Z: current.Point.Z},
		Yaw:   current.Yaw,
	}, in.Soles.Get(falling))
	recovery.SwingTime = m.cfg.RecoverySwingTime

	m.status = RecoveringFromDoubleSupport
	m.captureTime = in.Time
	m.recovery = &recovery
	m.original = &recovery
	if m.cfg.UseRecoveryICPPlan {
		m.plan = newRecoveryPlan(cmp, in.ICP, in.Omega0, in.Time, m.cfg.RecoverySwingTime, m.cfg.BlendDuration)
	}
	m.logger.Infow("fall detected in double support",
		"falling_side", falling, "icp", in.ICP, "footstep", recovery.Pose.String())
	return Fall{FallingSide: falling, Footstep: recovery}, true
}

// CheckAndAdjustFootstep moves the landing target of the swing foot when the ICP projected to
// touchdown falls outside the support polygon the robot will have after landing. The returned
// footstep is the target to use; the bool reports whether it changed this tick.
func (m *Module) CheckAndAdjustFootstep(in SingleSupportInput) (footstep.Footstep, bool) {
	if !m.cfg.Enabled || in.SwingTimeRemaining < m.cfg.MinSwingTimeForAdjustment {
		return in.Footstep, false
	}
	if m.original == nil || m.original.ID != in.Footstep.ID {
		original := in.Footstep
		m.original = &original
	}

	touchdown, cmp := projectedICP(in.StancePolygon, in.ICP, in.Omega0, in.SwingTimeRemaining)
	future := in.StancePolygon.Combine(in.Footstep.WorldPolygon())
	if future.ContainsWithMargin(touchdown, m.cfg.SupportPolygonMargin) {
		if m.plan != nil {
			m.plan.StartBlending(in.Time)
		}
		return in.Footstep, false
	}

	// Move the foot so the touchdown ICP ends up margin inside its polygon.
	landing := in.Footstep.WorldPolygon()
	needed := touchdown.Sub(landing.Project(touchdown))
	if n := needed.Norm(); n > 0 {
		needed = needed.Mul((n + m.cfg.SupportPolygonMargin) / n)
	}
	total := in.Footstep.Pose.XY().Add(needed).Sub(m.original.Pose.XY())
	if n := total.Norm(); n > m.cfg.MaxStepAdjustment {
		total = total.Mul(m.cfg.MaxStepAdjustment / n)
	}
	adjusted := *m.original
	adjusted = adjusted.Translated(total)
	adjusted.Pose.Point.Z = in.Footstep.Pose.Point.Z
	if adjusted.Pose.Point.Sub(in.Footstep.Pose.Point).Norm() < 1e-6 {
		return in.Footstep, false
	}

	if m.status == Idle {
		m.status = AdjustingStep
		m.captureTime = in.Time
		if m.cfg.UseRecoveryICPPlan {
			m.plan = newRecoveryPlan(cmp, in.ICP, in.Omega0, in.Time, in.SwingTimeRemaining, m.cfg.BlendDuration)
		}
	}
	m.recovery = &adjusted
	m.logger.Infow("footstep adjusted", "side", adjusted.Side, "touchdown_icp", touchdown, "adjustment", total)
	return adjusted, true
}

// DesiredICP returns main, or the recovery plan output while one is active.
func (m *Module) DesiredICP(main icp.DesiredState, t float64) icp.DesiredState {
	if m.plan == nil {
		return main
	}
	if m.plan.Done(t) {
		m.plan = nil
		return main
	}
	return m.plan.Compute(main, t)
}

// HasRecoveryPlan reports whether a recovery plan overrides the main planner.
func (m *Module) HasRecoveryPlan() bool {
	return m.plan != nil
}
