package walking_test

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/metric/noop"
	"go.viam.com/test"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/contact"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/pushrecovery"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/walking"
	"go.viam.com/biped/walking/fake"
)

const tickTolerance = 0.011

func standingFeet() robotside.SideDependentList[spatialmath.Pose] {
	return robotside.NewSideDependentList(
		spatialmath.NewPose(r3.Vector{Y: 0.1}, 0),
		spatialmath.NewPose(r3.Vector{Y: -0.1}, 0),
	)
}

func stepAt(cfg walking.Config, side robotside.RobotSide, x float64) footstep.Footstep {
	return footstep.New(side, spatialmath.NewPose(r3.Vector{X: x, Y: 0.1 * side.Sign()}, 0), cfg.Sole.Polygon())
}

// recordingPlanner wraps the reference planner and calls onCall before every planner call.
type recordingPlanner struct {
	*icp.ConstantCMPPlanner
	onCall func(call string)
	last   icp.DesiredState
}

func (p *recordingPlanner) InitializeDoubleSupport(data icp.TransferAndNextFootstepsData, t0 float64) error {
	if p.onCall != nil {
		p.onCall("double")
	}
	return p.ConstantCMPPlanner.InitializeDoubleSupport(data, t0)
}

func (p *recordingPlanner) InitializeSingleSupport(data icp.TransferAndNextFootstepsData, t0 float64) error {
	if p.onCall != nil {
		p.onCall("single")
	}
	return p.ConstantCMPPlanner.InitializeSingleSupport(data, t0)
}

func (p *recordingPlanner) Compute(actual r2.Point, t float64) icp.DesiredState {
	if p.onCall != nil {
		p.onCall("compute")
	}
	p.last = p.ConstantCMPPlanner.Compute(actual, t)
	return p.last
}

type visit struct {
	state walking.State
	start float64
	end   float64
}

// harness ticks a controller against kinematic fakes. The CoM is put on the desired capture point
// after every tick, so the robot tracks the plan perfectly unless a test pushes it.
type harness struct {
	t       *testing.T
	cfg     walking.Config
	ctrl    *walking.Controller
	feet    *fake.FootManager
	solver  *fake.MomentumSolver
	steps   *footstep.ListProvider
	poses   *footstep.PoseMailbox
	planner *recordingPlanner

	ticks  int
	com    r3.Vector
	comVel r3.Vector
	visits []visit
	outs   []walking.Output
	// onTick runs after every tick.
	onTick func(walking.Output)
}

func newHarness(t *testing.T, cfg walking.Config, steps ...footstep.Footstep) *harness {
	t.Helper()
	logger := logging.NewTestLogger(t)
	h := &harness{
		t:      t,
		cfg:    cfg,
		feet:   fake.NewFootManager(standingFeet(), logger),
		solver: &fake.MomentumSolver{Mass: cfg.Omega0.Mass, Gravity: cfg.Omega0.Gravity},
		steps:  footstep.NewListProvider(steps...),
		poses:  footstep.NewPoseMailbox(),
		com:    r3.Vector{Z: cfg.CoMHeight.NominalHeight},
	}
	h.planner = &recordingPlanner{ConstantCMPPlanner: icp.NewConstantCMPPlanner(cfg.ICPLookahead, logger)}
	ctrl, err := walking.NewController(cfg, walking.Dependencies{
		Solver:       h.solver,
		FootManager:  h.feet,
		Footsteps:    h.steps,
		FootSwitches: h.feet.FootSwitches(),
	}, logger,
		walking.WithMeter(noop.NewMeterProvider().Meter("test")),
		walking.WithICPPlanner(h.planner),
		walking.WithPoseProvider(h.poses),
	)
	test.That(t, err, test.ShouldBeNil)
	h.ctrl = ctrl
	return h
}

func (h *harness) now() float64 {
	return float64(h.ticks) * h.cfg.ControlDt
}

func (h *harness) tick() walking.Output {
	h.t.Helper()
	now := h.now()
	h.feet.Update(now)
	out, err := h.ctrl.DoControl(context.Background(), walking.RobotState{
		Time:            now,
		CoM:             h.com,
		CoMVelocity:     h.comVel,
		Feet:            h.feet.Feet(),
		LegLengthRatios: robotside.NewSideDependentList(0.9, 0.9),
	})
	test.That(h.t, err, test.ShouldBeNil)
	h.com = r3.Vector{X: out.Desired.ICP.X, Y: out.Desired.ICP.Y, Z: h.com.Z}
	h.comVel = r3.Vector{}
	if n := len(h.visits); n == 0 || h.visits[n-1].state != out.State {
		h.visits = append(h.visits, visit{state: out.State, start: now})
	}
	h.visits[len(h.visits)-1].end = now
	h.outs = append(h.outs, out)
	h.ticks++
	if h.onTick != nil {
		h.onTick(out)
	}
	return out
}

// runUntil ticks until done returns true or seconds have passed, and reports whether done was
// reached.
func (h *harness) runUntil(seconds float64, done func(walking.Output) bool) bool {
	h.t.Helper()
	limit := h.ticks + int(seconds/h.cfg.ControlDt)
	for h.ticks < limit {
		if done(h.tick()) {
			return true
		}
	}
	return false
}

func (h *harness) run(seconds float64) {
	h.runUntil(seconds, func(walking.Output) bool { return false })
}

func (h *harness) states() []walking.State {
	out := make([]walking.State, 0, len(h.visits))
	for _, v := range h.visits {
		out = append(out, v.state)
	}
	return out
}

// duration of a finished visit, from its first tick to the first tick of the next one.
func (h *harness) duration(i int) float64 {
	return h.visits[i+1].start - h.visits[i].start
}

func standingAgain(h *harness) func(walking.Output) bool {
	return func(out walking.Output) bool {
		return len(h.visits) > 1 && out.State == walking.DoubleSupport
	}
}

func TestWalksTwoFootstepsForward(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))

	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.states(), test.ShouldResemble, []walking.State{
		walking.DoubleSupport,
		walking.TransferToRight,
		walking.RightSupport,
		walking.TransferToLeft,
		walking.LeftSupport,
		walking.DoubleSupport,
	})
	test.That(t, h.duration(0), test.ShouldAlmostEqual, cfg.Timing.MinDoubleSupportTime, tickTolerance)
	test.That(t, h.duration(1), test.ShouldAlmostEqual, cfg.Timing.TransferTime, tickTolerance)
	test.That(t, h.duration(2), test.ShouldAlmostEqual, cfg.Timing.SwingTime, tickTolerance)
	test.That(t, h.duration(3), test.ShouldAlmostEqual, cfg.Timing.TransferTime, tickTolerance)
	test.That(t, h.duration(4), test.ShouldAlmostEqual, cfg.Timing.SwingTime, tickTolerance)

	feet := h.feet.Feet()
	test.That(t, feet.Get(robotside.Left).Point.X, test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, feet.Get(robotside.Right).Point.X, test.ShouldAlmostEqual, 0.6, 1e-9)
	test.That(t, h.steps.Completed(), test.ShouldHaveLength, 2)
	test.That(t, h.ctrl.Status().CompletedFootsteps, test.ShouldEqual, 2)
	test.That(t, h.ctrl.Status().Footstep, test.ShouldBeNil)
}

func TestFirstRightFootstepTransfersToTheLeft(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Right, 0.3), stepAt(cfg, robotside.Left, 0.6))

	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.states(), test.ShouldResemble, []walking.State{
		walking.DoubleSupport,
		walking.TransferToLeft,
		walking.LeftSupport,
		walking.TransferToRight,
		walking.RightSupport,
		walking.DoubleSupport,
	})
}

func TestSameFootTwiceKeepsTheStanceFoot(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.2), stepAt(cfg, robotside.Left, 0.3))

	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.states(), test.ShouldResemble, []walking.State{
		walking.DoubleSupport,
		walking.TransferToRight,
		walking.RightSupport,
		walking.TransferToRight,
		walking.RightSupport,
		walking.DoubleSupport,
	})
	test.That(t, h.feet.Feet().Get(robotside.Left).Point.X, test.ShouldAlmostEqual, 0.3, 1e-9)
}

func TestTimeInStateIsMonotonic(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)

	for i := 1; i < len(h.outs); i++ {
		prev, cur := h.outs[i-1], h.outs[i]
		if cur.State != prev.State {
			test.That(t, cur.TimeInState, test.ShouldEqual, 0.0)
			continue
		}
		test.That(t, cur.TimeInState, test.ShouldBeGreaterThanOrEqualTo, prev.TimeInState)
	}
}

func TestCapturePointFollowsDefinition(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg)
	h.com = r3.Vector{X: 0.01, Y: -0.02, Z: 0.9}
	h.comVel = r3.Vector{X: 0.1, Y: 0.05}
	out := h.tick()
	omega0 := cfg.Omega0.ConstantOmega0
	test.That(t, out.CapturePoint.Omega0, test.ShouldAlmostEqual, omega0)
	test.That(t, out.CapturePoint.Position.X, test.ShouldAlmostEqual, 0.01+0.1/omega0, 1e-12)
	test.That(t, out.CapturePoint.Position.Y, test.ShouldAlmostEqual, -0.02+0.05/omega0, 1e-12)
}

func TestContactsChangeBeforeThePlannerIsQueried(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	soleArea := cfg.Sole.Polygon().Area()
	singles := 0
	h.planner.onCall = func(call string) {
		status := h.ctrl.Status()
		feet := h.feet.Feet()
		var want spatialmath.Polygon
		for _, side := range robotside.Values {
			if c := status.Contacts.Get(side); c.InContact {
				want = want.Combine(c.Polygon().Transform(feet.Get(side)))
			}
		}
		got := spatialmath.NewConvexHull(status.SupportPolygon...)
		test.That(t, got.Area(), test.ShouldAlmostEqual, want.Area(), 1e-9)

		if call != "single" {
			return
		}
		singles++
		stance, ok := status.State.SupportSide()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, status.Contacts.Get(stance.Opposite()).InContact, test.ShouldBeFalse)
		test.That(t, got.Area(), test.ShouldAlmostEqual, soleArea, 1e-9)
	}
	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, singles, test.ShouldEqual, 2)
}

func TestSingleSupportAlwaysHasATarget(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	prev := walking.DoubleSupport
	entered := 0
	h.onTick = func(out walking.Output) {
		if out.State.IsSingleSupport() && out.State != prev {
			entered++
			status := h.ctrl.Status()
			test.That(t, status.Footstep != nil || status.FlamingoPose != nil, test.ShouldBeTrue)
		}
		prev = out.State
	}
	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, entered, test.ShouldEqual, 2)
}

func TestInitializeIsIdempotent(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	test.That(t, h.runUntil(2, func(out walking.Output) bool { return out.State == walking.RightSupport }), test.ShouldBeTrue)

	h.ctrl.Initialize()
	once := h.ctrl.Status()
	h.ctrl.Initialize()
	twice := h.ctrl.Status()

	test.That(t, cmp.Diff(once, twice, cmpopts.IgnoreUnexported(spatialmath.Polygon{})), test.ShouldBeEmpty)
	test.That(t, once.State, test.ShouldEqual, walking.DoubleSupport)
	test.That(t, once.TimeInState, test.ShouldEqual, 0.0)
	test.That(t, once.Footstep, test.ShouldBeNil)
	for _, side := range robotside.Values {
		test.That(t, once.Contacts.Get(side).InContact, test.ShouldBeTrue)
		test.That(t, h.feet.Modes.Get(side), test.ShouldEqual, fake.FootFlat)
	}
}

func TestFlamingoStance(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg)
	h.tick()
	raised := spatialmath.NewPose(r3.Vector{Y: 0.1, Z: 0.15}, 0)
	h.poses.Request(robotside.Left, raised, 0.4)

	inSupport := func(out walking.Output) bool { return out.State == walking.RightSupport }
	test.That(t, h.runUntil(2, inSupport), test.ShouldBeTrue)
	test.That(t, h.states(), test.ShouldResemble, []walking.State{
		walking.DoubleSupport, walking.TransferToRight, walking.RightSupport,
	})
	status := h.ctrl.Status()
	test.That(t, status.FlamingoPose, test.ShouldNotBeNil)
	test.That(t, status.FlamingoPose.Pose, test.ShouldResemble, raised)
	test.That(t, status.Contacts.Get(robotside.Left).InContact, test.ShouldBeFalse)

	// The foot stays up as long as it is held in the air.
	h.run(1)
	test.That(t, h.ctrl.State(), test.ShouldEqual, walking.RightSupport)
	test.That(t, h.feet.Feet().Get(robotside.Left).Point.Z, test.ShouldAlmostEqual, 0.15, 1e-9)

	lowered := spatialmath.NewPose(r3.Vector{X: 0.05, Y: 0.1}, 0)
	h.poses.Request(robotside.Left, lowered, 0.3)
	retargeted := h.now()
	test.That(t, h.runUntil(2, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.feet.Holds, test.ShouldHaveLength, 2)
	test.That(t, h.now()-retargeted, test.ShouldBeGreaterThanOrEqualTo, 0.3)
	test.That(t, h.feet.Feet().Get(robotside.Left).AlmostEqual(lowered, 1e-9), test.ShouldBeTrue)
	test.That(t, h.steps.Completed(), test.ShouldBeEmpty)
}

func TestStandsStillWithoutFootstepsOrRecovery(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.PushRecovery.Enabled = false
	h := newHarness(t, cfg)
	// Keep the capture point well outside the feet on every tick.
	h.comVel = r3.Vector{Y: 1}
	h.onTick = func(walking.Output) { h.comVel = r3.Vector{Y: 1} }
	h.run(2)

	test.That(t, h.states(), test.ShouldResemble, []walking.State{walking.DoubleSupport})
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeFalse)
	test.That(t, h.ctrl.Status().Footstep, test.ShouldBeNil)
}

func TestFallInDoubleSupportForcesAStep(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.PushRecovery.Enabled = true
	h := newHarness(t, cfg)
	h.run(0.2)
	test.That(t, h.ctrl.State(), test.ShouldEqual, walking.DoubleSupport)

	// A push to the left puts the capture point far outside the feet.
	h.comVel = r3.Vector{Y: 1}
	out := h.tick()
	test.That(t, out.State, test.ShouldEqual, walking.RightSupport)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	status := h.ctrl.Status()
	test.That(t, status.Footstep, test.ShouldNotBeNil)
	test.That(t, status.Footstep.Side, test.ShouldEqual, robotside.Left)
	test.That(t, status.Synthesized, test.ShouldBeTrue)
	test.That(t, h.feet.Swings, test.ShouldHaveLength, 1)
	test.That(t, h.feet.Swings[0].Pose.Point.Y, test.ShouldBeGreaterThan, 0.1)

	test.That(t, h.runUntil(2, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeFalse)
	test.That(t, h.steps.Completed(), test.ShouldBeEmpty)
}

func TestConfigUpdateKeepsTheRecovery(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.PushRecovery.Enabled = true
	h := newHarness(t, cfg)
	h.run(0.2)

	h.comVel = r3.Vector{Y: 1}
	out := h.tick()
	test.That(t, out.State, test.ShouldEqual, walking.RightSupport)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)

	tuned := cfg
	tuned.ICPFeedback.Kp = 4
	test.That(t, h.ctrl.UpdateConfig(tuned), test.ShouldBeNil)
	test.That(t, h.ctrl.State(), test.ShouldEqual, walking.RightSupport)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	status := h.ctrl.Status()
	test.That(t, status.PushRecovery, test.ShouldNotEqual, pushrecovery.Idle)
	test.That(t, status.Synthesized, test.ShouldBeTrue)

	h.tick()
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	test.That(t, h.runUntil(2, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeFalse)
}

func TestFallAfterToeOffPutsTheStanceFootFlat(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.ToeOff.Strategy = walking.ToeOffOnICP
	cfg.PushRecovery.Enabled = true
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	pushed := false
	h.onTick = func(out walking.Output) {
		if !pushed && out.State == walking.TransferToLeft && h.ctrl.Status().ToeOff {
			test.That(t, out.Contacts.Get(robotside.Right).IsOnToes(), test.ShouldBeTrue)
			pushed = true
			h.comVel = r3.Vector{Y: 1}
		}
	}
	inSupport := func(out walking.Output) bool { return out.State.IsSingleSupport() }
	test.That(t, h.runUntil(5, inSupport), test.ShouldBeTrue)
	test.That(t, pushed, test.ShouldBeTrue)

	out := h.outs[len(h.outs)-1]
	test.That(t, out.State, test.ShouldEqual, walking.RightSupport)
	test.That(t, h.ctrl.IsRecoveringFromDoubleSupportFall(), test.ShouldBeTrue)
	stance := out.Contacts.Get(robotside.Right)
	test.That(t, stance.InContact, test.ShouldBeTrue)
	test.That(t, stance.IsOnToes(), test.ShouldBeFalse)
	test.That(t, out.Contacts.Get(robotside.Left).InContact, test.ShouldBeFalse)
}

func TestLandingModeNeedsMatchingSwitches(t *testing.T) {
	logger := logging.NewTestLogger(t)
	feet := fake.NewFootManager(standingFeet(), logger)
	deps := walking.Dependencies{
		Solver:       &fake.MomentumSolver{},
		FootManager:  feet,
		Footsteps:    footstep.NewListProvider(),
		FootSwitches: feet.FootSwitches(),
	}
	cfg := walking.DefaultConfig()
	cfg.LandingMode = contact.LandOnToe
	_, err := walking.NewController(cfg, deps, logger)
	test.That(t, errors.Is(err, contact.ErrLandingSensorMismatch), test.ShouldBeTrue)

	deps.FootSwitches = feet.ToeHeelSwitches()
	ctrl, err := walking.NewController(cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)

	deps.FootSwitches = feet.FootSwitches()
	flat, err := walking.NewController(walking.DefaultConfig(), deps, logger)
	test.That(t, err, test.ShouldBeNil)
	err = flat.UpdateConfig(cfg)
	test.That(t, errors.Is(err, contact.ErrLandingSensorMismatch), test.ShouldBeTrue)
	test.That(t, ctrl.State(), test.ShouldEqual, walking.DoubleSupport)
}

func TestToeOffOnTheTrailingFoot(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.ToeOff.Strategy = walking.ToeOffOnICP
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	sawToes := false
	h.onTick = func(out walking.Output) {
		if out.State == walking.TransferToLeft && h.ctrl.Status().ToeOff {
			sawToes = true
			test.That(t, out.Contacts.Get(robotside.Right).IsOnToes(), test.ShouldBeTrue)
		}
		if out.State == walking.LeftSupport {
			test.That(t, out.Contacts.Get(robotside.Right).InContact, test.ShouldBeFalse)
		}
	}
	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, sawToes, test.ShouldBeTrue)
	// The first step starts from feet side by side, so there is no trailing foot.
	test.That(t, h.feet.ToeOffs, test.ShouldResemble, []robotside.RobotSide{robotside.Right})
}

func TestInsideFootShiftIsBounded(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.InsideFootShift.Enabled = true
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3), stepAt(cfg, robotside.Right, 0.6))
	lateShifts := 0
	h.onTick = func(out walking.Output) {
		shift := out.Desired.ICP.Sub(h.planner.last.ICP)
		test.That(t, shift.Norm(), test.ShouldBeLessThanOrEqualTo, cfg.InsideFootShift.MaxLateralShift+1e-12)
		if out.State == walking.DoubleSupport {
			test.That(t, shift.Norm(), test.ShouldEqual, 0.0)
		}
		if out.State == walking.RightSupport && out.TimeInState > 0.75*cfg.Timing.SwingTime {
			lateShifts++
			test.That(t, shift.Y, test.ShouldBeGreaterThan, 0.0)
			test.That(t, math.Abs(shift.X), test.ShouldBeLessThan, 1e-12)
		}
	}
	test.That(t, h.runUntil(5, standingAgain(h)), test.ShouldBeTrue)
	test.That(t, lateShifts, test.ShouldBeGreaterThan, 0)
}

func TestFootstepAdjustedAfterPushInSingleSupport(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.PushRecovery.Enabled = true
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.2))
	inSupport := func(out walking.Output) bool { return out.State == walking.RightSupport }
	test.That(t, h.runUntil(2, inSupport), test.ShouldBeTrue)
	h.run(0.1)

	h.comVel = r3.Vector{X: 1.5}
	h.tick()
	test.That(t, h.feet.Replans, test.ShouldNotBeEmpty)
	adjusted := h.ctrl.Status().Footstep
	test.That(t, adjusted, test.ShouldNotBeNil)
	test.That(t, adjusted.Pose.Point.X, test.ShouldBeGreaterThan, 0.2)
	test.That(t, adjusted.Pose.Point.X, test.ShouldBeLessThanOrEqualTo, 0.2+cfg.PushRecovery.MaxStepAdjustment+1e-9)
}

func TestDoControlErrors(t *testing.T) {
	cfg := walking.DefaultConfig()

	t.Run("solver", func(t *testing.T) {
		h := newHarness(t, cfg)
		h.solver.SolveFunc = func(context.Context, walking.MomentumRateCommand) (walking.Solution, error) {
			return walking.Solution{}, errors.New("qp infeasible")
		}
		_, err := h.ctrl.DoControl(context.Background(), walking.RobotState{CoM: r3.Vector{Z: 0.9}, Feet: standingFeet()})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "momentum solver failed")
	})

	t.Run("time going backwards", func(t *testing.T) {
		h := newHarness(t, cfg)
		h.run(0.1)
		_, err := h.ctrl.DoControl(context.Background(), walking.RobotState{CoM: r3.Vector{Z: 0.9}, Feet: standingFeet()})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "backwards")
	})

	t.Run("invalid omega0", func(t *testing.T) {
		wrench := walking.DefaultConfig()
		wrench.Omega0.Mode = capturepoint.WrenchOmega0
		h := newHarness(t, wrench)
		_, err := h.ctrl.DoControl(context.Background(), walking.RobotState{CoM: r3.Vector{Z: 0.9}, Feet: standingFeet()})
		test.That(t, errors.Is(err, capturepoint.ErrOmega0Invalid), test.ShouldBeTrue)
	})
}

func TestUpdateConfig(t *testing.T) {
	cfg := walking.DefaultConfig()
	h := newHarness(t, cfg)
	h.run(0.05)

	tuned := cfg
	tuned.ICPFeedback.Kp = 5
	tuned.HeldJoints = []string{"neck_pitch"}
	test.That(t, h.ctrl.UpdateConfig(tuned), test.ShouldBeNil)
	h.tick()
	test.That(t, h.solver.HeldJoints, test.ShouldResemble, []string{"neck_pitch"})

	bigger := tuned
	bigger.Sole.Length = 0.3
	test.That(t, h.ctrl.UpdateConfig(bigger), test.ShouldNotBeNil)

	broken := tuned
	broken.Timing.SwingTime = 0
	test.That(t, h.ctrl.UpdateConfig(broken), test.ShouldNotBeNil)
}

func TestOrbitalEnergy(t *testing.T) {
	e := walking.OrbitalEnergy(r2.Point{}, r2.Point{X: 0.5}, r2.Point{X: 0.1}, 3)
	test.That(t, e, test.ShouldAlmostEqual, 0.5*0.25-0.5*9*0.01, 1e-12)
	test.That(t, math.IsInf(walking.OrbitalEnergy(r2.Point{}, r2.Point{X: -0.5}, r2.Point{X: 0.1}, 3), -1), test.ShouldBeTrue)
}

func TestOrbitalEnergyRelease(t *testing.T) {
	cfg := walking.DefaultConfig()
	cfg.Transfer.Release = walking.ReleaseOnOrbitalEnergy
	cfg.Transfer.OrbitalEnergyThreshold = -0.05
	h := newHarness(t, cfg, stepAt(cfg, robotside.Left, 0.3))
	test.That(t, h.runUntil(1, func(out walking.Output) bool { return out.State == walking.TransferToRight }), test.ShouldBeTrue)

	// Moving toward the right foot with enough speed to pass over it.
	h.com = r3.Vector{Y: 0.05, Z: 0.9}
	h.comVel = r3.Vector{Y: -1}
	out := h.tick()
	test.That(t, out.State, test.ShouldEqual, walking.RightSupport)
}
