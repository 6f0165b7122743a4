package pushrecovery

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

const testOmega0 = 3.4

var sole = spatialmath.NewRectangle(0.2, 0.1)

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return cfg
}

func standingInput(icpPos r2.Point) DoubleSupportInput {
	feet := robotside.NewSideDependentList(
		spatialmath.NewPose(r3.Vector{Y: 0.1}, 0),
		spatialmath.NewPose(r3.Vector{Y: -0.1}, 0),
	)
	left, right := sole.Transform(feet.Get(robotside.Left)), sole.Transform(feet.Get(robotside.Right))
	return DoubleSupportInput{
		Time:           2,
		ICP:            icpPos,
		Omega0:         testOmega0,
		SupportPolygon: left.Combine(right),
		FootPolygons:   robotside.NewSideDependentList(left, right),
		Feet:           feet,
		Soles:          robotside.NewSideDependentList(sole, sole),
	}
}

func swingInput(icpPos r2.Point, t float64, step footstep.Footstep) SingleSupportInput {
	return SingleSupportInput{
		Time:               t,
		ICP:                icpPos,
		Omega0:             testOmega0,
		SwingTimeRemaining: 0.3,
		StanceSide:         robotside.Right,
		StancePolygon:      sole.Transform(spatialmath.NewPose(r3.Vector{Y: -0.1}, 0)),
		Footstep:           step,
	}
}

func TestDisabledModuleNeverTriggers(t *testing.T) {
	m, err := NewModule(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Enabled(), test.ShouldBeFalse)

	_, fell := m.CheckForDoubleSupportFall(standingInput(r2.Point{Y: 5}))
	test.That(t, fell, test.ShouldBeFalse)

	step := footstep.New(robotside.Left, spatialmath.NewPose(r3.Vector{X: 0.3, Y: 0.1}, 0), sole)
	got, adjusted := m.CheckAndAdjustFootstep(swingInput(r2.Point{Y: 5}, 0, step))
	test.That(t, adjusted, test.ShouldBeFalse)
	test.That(t, got.Pose, test.ShouldResemble, step.Pose)
	test.That(t, m.IsRecovering(), test.ShouldBeFalse)

	main := icp.DesiredState{ICP: r2.Point{X: 1}}
	test.That(t, m.DesiredICP(main, 0), test.ShouldResemble, main)
}

func TestDoubleSupportFallSynthesizesFootstep(t *testing.T) {
	m, err := NewModule(enabledConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, fell := m.CheckForDoubleSupportFall(standingInput(r2.Point{X: 0.02}))
	test.That(t, fell, test.ShouldBeFalse)

	fall, fell := m.CheckForDoubleSupportFall(standingInput(r2.Point{Y: 0.25}))
	test.That(t, fell, test.ShouldBeTrue)
	test.That(t, fall.FallingSide, test.ShouldEqual, robotside.Left)
	test.That(t, fall.Footstep.Side, test.ShouldEqual, robotside.Left)
	test.That(t, fall.Footstep.Pose.Point.X, test.ShouldAlmostEqual, 0.)
	test.That(t, fall.Footstep.Pose.Point.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, fall.Footstep.SwingTime, test.ShouldEqual, DefaultConfig().RecoverySwingTime)

	test.That(t, m.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	test.That(t, m.Status().String(), test.ShouldEqual, "recovering_from_double_support")
	test.That(t, m.CaptureTime(), test.ShouldEqual, 2.)
	recovery, ok := m.RecoveryFootstep()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, recovery.ID, test.ShouldEqual, fall.Footstep.ID)

	_, fell = m.CheckForDoubleSupportFall(standingInput(r2.Point{Y: 0.25}))
	test.That(t, fell, test.ShouldBeFalse)

	m.Reset()
	test.That(t, m.IsRecovering(), test.ShouldBeFalse)
	_, ok = m.RecoveryFootstep()
	test.That(t, ok, test.ShouldBeFalse)

	fall, fell = m.CheckForDoubleSupportFall(standingInput(r2.Point{X: 0.05, Y: -0.3}))
	test.That(t, fell, test.ShouldBeTrue)
	test.That(t, fall.FallingSide, test.ShouldEqual, robotside.Right)
}

func TestUpdateConfigKeepsTheRecovery(t *testing.T) {
	m, err := NewModule(enabledConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	fall, fell := m.CheckForDoubleSupportFall(standingInput(r2.Point{Y: 0.25}))
	test.That(t, fell, test.ShouldBeTrue)

	wider := enabledConfig()
	wider.SupportPolygonMargin = 0.03
	test.That(t, m.UpdateConfig(wider), test.ShouldBeNil)
	test.That(t, m.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	recovery, ok := m.RecoveryFootstep()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, recovery.ID, test.ShouldEqual, fall.Footstep.ID)
	test.That(t, m.CaptureTime(), test.ShouldEqual, 2.)

	broken := enabledConfig()
	broken.MaxStepLength = 0
	test.That(t, m.UpdateConfig(broken), test.ShouldNotBeNil)
	test.That(t, m.Enabled(), test.ShouldBeTrue)
}

func TestSwingFootstepAdjustmentIsBounded(t *testing.T) {
	m, err := NewModule(enabledConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	step := footstep.New(robotside.Left, spatialmath.NewPose(r3.Vector{X: 0.3, Y: 0.1}, 0), sole)

	got, adjusted := m.CheckAndAdjustFootstep(swingInput(r2.Point{X: 0.05, Y: -0.1}, 1, step))
	test.That(t, adjusted, test.ShouldBeFalse)
	test.That(t, got.ID, test.ShouldEqual, step.ID)

	pushed := r2.Point{X: 0.2, Y: 0.3}
	got, adjusted = m.CheckAndAdjustFootstep(swingInput(pushed, 1, step))
	test.That(t, adjusted, test.ShouldBeTrue)
	test.That(t, got.ID, test.ShouldEqual, step.ID)
	test.That(t, got.Pose.Point.X, test.ShouldAlmostEqual, 0.3)
	test.That(t, got.Pose.Point.Y, test.ShouldAlmostEqual, 0.25)
	test.That(t, m.Status(), test.ShouldEqual, AdjustingStep)
	test.That(t, m.IsRecoveringFromDoubleSupportFall(), test.ShouldBeFalse)

	// The total adjustment stays bounded across ticks.
	again, adjusted := m.CheckAndAdjustFootstep(swingInput(pushed, 1.01, got))
	test.That(t, adjusted, test.ShouldBeFalse)
	test.That(t, again.Pose.Point.Y, test.ShouldAlmostEqual, 0.25)

	late := swingInput(pushed, 1.2, step)
	late.SwingTimeRemaining = 0.05
	_, adjusted = m.CheckAndAdjustFootstep(late)
	test.That(t, adjusted, test.ShouldBeFalse)
}

func TestRecoveryPlanBlendsBack(t *testing.T) {
	cfg := enabledConfig()
	cfg.UseRecoveryICPPlan = true
	m, err := NewModule(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	step := footstep.New(robotside.Left, spatialmath.NewPose(r3.Vector{X: 0.3, Y: 0.1}, 0), sole)

	_, adjusted := m.CheckAndAdjustFootstep(swingInput(r2.Point{X: 0.2, Y: 0.3}, 1, step))
	test.That(t, adjusted, test.ShouldBeTrue)
	test.That(t, m.HasRecoveryPlan(), test.ShouldBeTrue)

	main := icp.DesiredState{}
	rec := m.DesiredICP(main, 1)
	test.That(t, rec.CMP.X, test.ShouldAlmostEqual, 0.1)
	test.That(t, rec.CMP.Y, test.ShouldAlmostEqual, -0.05)
	test.That(t, rec.ICP.Y, test.ShouldAlmostEqual, 0.3)

	// Back inside: blending starts.
	_, adjusted = m.CheckAndAdjustFootstep(swingInput(r2.Point{X: 0.05, Y: -0.08}, 1.1, step))
	test.That(t, adjusted, test.ShouldBeFalse)
	half := m.DesiredICP(main, 1.2)
	test.That(t, half.CMP.X, test.ShouldAlmostEqual, 0.05, 1e-6)
	test.That(t, half.CMP.Y, test.ShouldAlmostEqual, -0.025, 1e-6)

	test.That(t, m.DesiredICP(main, 1.31), test.ShouldResemble, main)
	test.That(t, m.HasRecoveryPlan(), test.ShouldBeFalse)
	test.That(t, m.IsRecovering(), test.ShouldBeTrue)
}

func TestConfigValidate(t *testing.T) {
	disabled := Config{}
	test.That(t, disabled.Validate("push_recovery"), test.ShouldBeNil)

	for _, mutate := range []func(*Config){
		func(c *Config) { c.SupportPolygonMargin = -1 },
		func(c *Config) { c.MaxStepAdjustment = 0 },
		func(c *Config) { c.MaxStepLength = 0 },
		func(c *Config) { c.RecoverySwingTime = 0 },
		func(c *Config) { c.UseRecoveryICPPlan, c.BlendDuration = true, 0 },
	} {
		cfg := enabledConfig()
		mutate(&cfg)
		test.That(t, cfg.Validate("push_recovery"), test.ShouldNotBeNil)
		_, err := NewModule(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldNotBeNil)
	}

	m, err := NewModule(enabledConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.UpdateConfig(Config{}), test.ShouldBeNil)
	test.That(t, m.Enabled(), test.ShouldBeFalse)
}
