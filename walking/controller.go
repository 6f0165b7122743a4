// Package walking implements the walking controller of a biped: a state machine over double
// support, transfer and single support states that drives an ICP planner, a CoM height planner,
// push recovery and a whole body momentum solver once per control tick.
package walking

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/metric"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/comheight"
	"go.viam.com/biped/contact"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/pushrecovery"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// Dependencies are the collaborators the controller drives every tick.
type Dependencies struct {
	Solver       MomentumSolver
	FootManager  FootManager
	Footsteps    footstep.Provider
	FootSwitches robotside.SideDependentList[contact.FootSwitch]
}

type options struct {
	meter           metric.Meter
	planner         icp.Planner
	heightGenerator comheight.TrajectoryGenerator
	poses           footstep.PoseProvider
}

// Option configures optional parts of a Controller.
type Option func(*options)

// WithMeter records metrics on m instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithICPPlanner replaces the constant CMP planner.
func WithICPPlanner(p icp.Planner) Option {
	return func(o *options) {
		o.planner = p
	}
}

// WithHeightGenerator replaces the generator selected by the CoM height config.
func WithHeightGenerator(g comheight.TrajectoryGenerator) Option {
	return func(o *options) {
		o.heightGenerator = g
	}
}

// WithPoseProvider enables flamingo stance requests from p.
func WithPoseProvider(p footstep.PoseProvider) Option {
	return func(o *options) {
		o.poses = p
	}
}

type noPoses struct{}

func (noPoses) CheckForNewPose() (footstep.PoseRequest, bool) { return footstep.PoseRequest{}, false }
func (noPoses) HasPending() bool                              { return false }

// walkingContext is everything the state machine remembers between ticks.
type walkingContext struct {
	initialized bool
	ticked      bool

	state      State
	time       float64
	stateStart float64

	phaseInitialized  bool
	phaseDuration     float64
	standingReplanned bool

	swingStart    float64
	swingDuration float64
	synthesized   bool
	toeOff        bool

	flamingo        *footstep.PoseRequest
	pendingPose     *footstep.PoseRequest
	pendingRecovery *pushrecovery.Fall

	lastDesired icp.DesiredState
}

// tickContext holds what one tick has read and decided so far.
type tickContext struct {
	ctx context.Context
	rs  RobotState
	cp  capturepoint.State

	ssDone *bool
}

// Controller is the walking state machine. It is not safe for concurrent use; the host calls
// DoControl from a single goroutine.
type Controller struct {
	cfg    Config
	logger logging.Logger
	deps   Dependencies
	poses  footstep.PoseProvider

	tracker     *contact.SupportPolygonTracker
	queue       *footstep.Queue
	planner     icp.Planner
	estimator   *capturepoint.Estimator
	push        *pushrecovery.Module
	height      *comheight.Planner
	heightGen   comheight.TrajectoryGenerator
	metrics     *metrics
	transitions []transition

	wc walkingContext
}

// NewController validates cfg, checks the foot switches against the landing mode and returns a
// controller standing in double support.
func NewController(cfg Config, deps Dependencies, logger logging.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate("walking"); err != nil {
		return nil, err
	}
	if deps.Solver == nil || deps.FootManager == nil || deps.Footsteps == nil {
		return nil, errors.New("walking controller needs a momentum solver, a foot manager and a footstep provider")
	}
	if err := checkLandingSensors(cfg.LandingMode, deps.FootSwitches); err != nil {
		return nil, err
	}
	o := options{meter: defaultMeter(), poses: noPoses{}}
	for _, opt := range opts {
		opt(&o)
	}
	m, err := newMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	soles := robotside.NewSideDependentList(cfg.Sole.Polygon(), cfg.Sole.Polygon())
	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		deps:      deps,
		poses:     o.poses,
		tracker:   contact.NewSupportPolygonTracker(soles, cfg.Sole.FrictionCoefficient, logger.Sublogger("support_polygon")),
		queue:     footstep.NewQueue(deps.Footsteps, logger.Sublogger("footsteps")),
		planner:   o.planner,
		heightGen: o.heightGenerator,
		metrics:   m,
	}
	if c.planner == nil {
		c.planner = icp.NewConstantCMPPlanner(cfg.ICPLookahead, logger.Sublogger("icp"))
	}
	if err := c.buildModules(cfg); err != nil {
		return nil, err
	}
	c.transitions = c.transitionTable()
	c.Initialize()
	return c, nil
}

func (c *Controller) buildModules(cfg Config) error {
	estimator, err := capturepoint.NewEstimator(cfg.Omega0, cfg.CoMHeight.NominalHeight, cfg.ControlDt, c.logger.Sublogger("capture_point"))
	if err != nil {
		return err
	}
	push, err := pushrecovery.NewModule(cfg.PushRecovery, c.logger.Sublogger("push_recovery"))
	if err != nil {
		return err
	}
	gen := c.heightGen
	if gen == nil {
		gen = comheight.NewGenerator(cfg.CoMHeight)
	}
	height, err := comheight.NewPlanner(cfg.CoMHeight, gen, c.deps.FootManager, c.logger.Sublogger("com_height"))
	if err != nil {
		return err
	}
	c.estimator, c.push, c.height = estimator, push, height
	return nil
}

// updateModules applies cfg to the live modules so the state of the current phase survives.
func (c *Controller) updateModules(cfg Config) error {
	if err := c.estimator.UpdateConfig(cfg.Omega0, cfg.CoMHeight.NominalHeight, cfg.ControlDt); err != nil {
		return err
	}
	if err := c.push.UpdateConfig(cfg.PushRecovery); err != nil {
		return err
	}
	gen := c.heightGen
	if gen == nil {
		gen = comheight.NewGenerator(cfg.CoMHeight)
	}
	return c.height.UpdateConfig(cfg.CoMHeight, gen)
}

func checkLandingSensors(mode contact.LandingMode, switches robotside.SideDependentList[contact.FootSwitch]) error {
	for _, side := range robotside.Values {
		if err := contact.CheckLandingSensor(mode, switches.Get(side)); err != nil {
			return errors.Wrapf(err, "%s foot", side)
		}
	}
	return nil
}

// Initialize puts the controller back in double support with both feet flat and forgets the
// latched footstep, the recovery context and the planner state. Calling it twice is the same as
// calling it once.
func (c *Controller) Initialize() {
	c.queue.Clear()
	c.push.Reset()
	c.height.Reset()
	c.estimator.Reset(c.cfg.CoMHeight.NominalHeight)
	if r, ok := c.planner.(interface{ Reset() }); ok {
		r.Reset()
	}
	c.tracker.Reset()
	c.wc = walkingContext{initialized: true, state: DoubleSupport}
	for _, side := range robotside.Values {
		c.setFlatFoot(side)
	}
}

// UpdateConfig replaces the configuration. The sole geometry cannot change at runtime.
func (c *Controller) UpdateConfig(cfg Config) error {
	if err := cfg.Validate("walking"); err != nil {
		return err
	}
	if cfg.Sole != c.cfg.Sole {
		return errors.New("sole geometry cannot change while the controller runs")
	}
	if err := checkLandingSensors(cfg.LandingMode, c.deps.FootSwitches); err != nil {
		return err
	}
	if err := c.updateModules(cfg); err != nil {
		return err
	}
	c.cfg = cfg
	if c.wc.phaseInitialized {
		data := c.transferData(capturepoint.State{Omega0: c.estimator.Omega0()})
		if err := c.height.Initialize(data, data.TransferToSide, data.NextFootstep, c.tracker.ContactStates()); err != nil {
			return errors.Wrap(err, "initializing the CoM height after a config update")
		}
	}
	c.logger.Infow("walking config updated", "state", c.wc.state)
	return nil
}

// State returns the current walking state.
func (c *Controller) State() State {
	return c.wc.state
}

// TimeInCurrentState returns the seconds since the current state was entered, zero on the tick of
// a transition.
func (c *Controller) TimeInCurrentState() float64 {
	return c.wc.time - c.wc.stateStart
}

// IsRecoveringFromDoubleSupportFall reports whether the current single support was forced by a
// fall detected in double support.
func (c *Controller) IsRecoveringFromDoubleSupportFall() bool {
	return c.push.IsRecoveringFromDoubleSupportFall()
}

// Status is a snapshot of the walking context.
type Status struct {
	State              State                                      `json:"state"`
	TimeInState        float64                                    `json:"time_in_state"`
	Footstep           *footstep.Footstep                         `json:"footstep,omitempty"`
	Synthesized        bool                                       `json:"synthesized"`
	FlamingoPose       *footstep.PoseRequest                      `json:"flamingo_pose,omitempty"`
	PushRecovery       pushrecovery.Status                        `json:"push_recovery"`
	ToeOff             bool                                       `json:"toe_off"`
	Contacts           robotside.SideDependentList[contact.State] `json:"contacts"`
	SupportPolygon     []r2.Point                                 `json:"support_polygon"`
	CompletedFootsteps int                                        `json:"completed_footsteps"`
}

// Status returns a snapshot of the walking context.
func (c *Controller) Status() Status {
	s := Status{
		State:              c.wc.state,
		TimeInState:        c.TimeInCurrentState(),
		Synthesized:        c.wc.synthesized,
		PushRecovery:       c.push.Status(),
		ToeOff:             c.wc.toeOff,
		Contacts:           c.tracker.ContactStates(),
		SupportPolygon:     c.tracker.SupportPolygon().Vertices(),
		CompletedFootsteps: c.queue.Completed(),
	}
	if step, ok := c.queue.PeekNext(); ok {
		s.Footstep = &step
	}
	if c.wc.flamingo != nil {
		req := *c.wc.flamingo
		s.FlamingoPose = &req
	}
	return s
}

// DoControl runs one control tick: state transitions, then the action of the resulting state,
// ending with a synchronous momentum solve.
func (c *Controller) DoControl(ctx context.Context, rs RobotState) (Output, error) {
	if !c.wc.initialized {
		c.Initialize()
	}
	if err := checkLandingSensors(c.cfg.LandingMode, c.deps.FootSwitches); err != nil {
		return Output{}, err
	}
	dt := c.cfg.ControlDt
	if c.wc.ticked {
		if rs.Time < c.wc.time {
			return Output{}, errors.Errorf("robot state time went backwards from %v to %v", c.wc.time, rs.Time)
		}
		if rs.Time > c.wc.time {
			dt = rs.Time - c.wc.time
		}
	} else {
		c.wc.stateStart = rs.Time
		c.wc.ticked = true
	}
	c.wc.time = rs.Time
	c.tracker.UpdateSolePoses(rs.Feet)

	if _, err := c.estimator.UpdateOmega0(rs.CoM, rs.CentersOfPressure, rs.Wrench); err != nil {
		return Output{}, err
	}
	cp, err := c.estimator.Compute(rs.CoM, rs.CoMVelocity)
	if err != nil {
		return Output{}, err
	}
	tc := &tickContext{ctx: ctx, rs: rs, cp: cp}

	if err := c.evaluateTransitions(tc); err != nil {
		return Output{}, err
	}
	return c.doAction(tc, dt)
}

func (c *Controller) setFlatFoot(side robotside.RobotSide) {
	c.tracker.SetFlatFoot(side)
	c.deps.FootManager.SetFlatFootContactState(side)
	c.deps.Solver.SetPlaneContactState(side, c.tracker.ContactState(side))
}

func (c *Controller) setOnToes(side robotside.RobotSide) {
	c.tracker.SetOnToes(side)
	c.deps.FootManager.SetOnToesContactState(side)
	c.deps.Solver.SetPlaneContactState(side, c.tracker.ContactState(side))
}

func (c *Controller) setFree(side robotside.RobotSide) {
	c.tracker.SetFree(side)
	c.deps.Solver.SetPlaneContactState(side, c.tracker.ContactState(side))
}

func (c *Controller) onExit(prev State) {
	switch {
	case prev.IsSingleSupport():
		stance, _ := prev.SupportSide()
		c.queue.NotifyComplete(c.wc.synthesized)
		c.wc.synthesized = false
		c.wc.flamingo = nil
		c.push.Reset()
		c.setFlatFoot(stance.Opposite())
	case prev.IsTransfer():
		c.wc.toeOff = false
	}
}

func (c *Controller) onEnter(tc *tickContext, next State) error {
	switch {
	case next.IsStanding():
		for _, side := range robotside.Values {
			c.setFlatFoot(side)
		}
	case next.IsTransfer():
		to, _ := next.SupportSide()
		for _, side := range robotside.Values {
			c.setFlatFoot(side)
		}
		if c.wc.pendingPose != nil {
			c.wc.flamingo, c.wc.pendingPose = c.wc.pendingPose, nil
			return nil
		}
		if _, ok := c.queue.CheckForFootsteps(true, to, tc.rs.Feet); !ok {
			c.logger.Warnw("transfer started without a footstep", "state", next)
		}
	case next.IsSingleSupport():
		return c.startSwing(tc, next)
	}
	return nil
}

func (c *Controller) startSwing(tc *tickContext, next State) error {
	stance, _ := next.SupportSide()
	swing := stance.Opposite()
	// A fall caught after toe-off can leave the new stance foot on its toe line.
	c.setFlatFoot(stance)
	if fall := c.wc.pendingRecovery; fall != nil {
		if step, ok := c.queue.PeekNext(); ok {
			c.logger.Warnw("footstep dropped for push recovery", "footstep", step.ID)
		}
		c.queue.Clear()
		c.queue.Latch(fall.Footstep)
		c.wc.synthesized = true
		c.wc.flamingo = nil
		c.wc.pendingRecovery = nil
		c.metrics.pushRecovery(tc.ctx, "double_support_fall")
	}

	c.setFree(swing)
	c.wc.swingStart = c.wc.time
	if req := c.wc.flamingo; req != nil {
		c.wc.swingDuration = c.poseDuration(*req)
		c.deps.FootManager.RequestMoveStraight(swing, req.Pose, c.wc.swingDuration)
		return nil
	}
	step, ok := c.queue.PeekNext()
	if !ok {
		return errors.Errorf("entered %v without a footstep or a foot pose", next)
	}
	c.wc.swingDuration = step.SwingDuration(c.cfg.Timing.SwingTime)
	c.deps.FootManager.RequestSwing(step, c.wc.swingDuration)
	return nil
}

func (c *Controller) poseDuration(req footstep.PoseRequest) float64 {
	if req.Duration > 0 {
		return req.Duration
	}
	return c.cfg.Timing.SwingTime
}

// transferData builds the planner input of the current phase.
func (c *Controller) transferData(cp capturepoint.State) icp.TransferAndNextFootstepsData {
	to, ok := c.wc.state.SupportSide()
	if !ok {
		to = robotside.Right
	}
	from := to.Opposite()
	data := icp.TransferAndNextFootstepsData{
		TransferFromFootstep: footstep.AtCurrentLocation(from, c.tracker.SolePose(from), c.tracker.LocalSole(from)),
		TransferToFootstep:   footstep.AtCurrentLocation(to, c.tracker.SolePose(to), c.tracker.LocalSole(to)),
		TransferToSide:       to,
		SwingTime:            c.cfg.Timing.SwingTime,
		TransferTime:         c.cfg.Timing.TransferTime,
		CurrentICP:           cp.Position,
		Omega0:               cp.Omega0,
		StanceSupportPolygon: c.tracker.LocalSole(to),
	}
	if c.wc.state.IsStanding() {
		return data
	}
	if req := c.wc.flamingo; req != nil {
		data.SwingFootHeld = true
		data.SwingTime = c.poseDuration(*req)
		return data
	}
	step, ok := c.queue.PeekNext()
	if !ok {
		return data
	}
	data.NextFootstep = &step
	data.SwingTime = step.SwingDuration(c.cfg.Timing.SwingTime)
	data.TransferTime = step.TransferDuration(c.cfg.Timing.TransferTime)
	c.queue.UpdateLookahead()
	upcoming := c.queue.Upcoming()
	if len(upcoming) > 0 {
		data.NextNextFootstep = &upcoming[0]
	}
	if len(upcoming) > 1 {
		data.NextNextNextFootstep = &upcoming[1]
	}
	return data
}

func (c *Controller) initializePhase(cp capturepoint.State) error {
	state := c.wc.state
	data := c.transferData(cp)
	var err error
	if state.IsSingleSupport() {
		err = c.planner.InitializeSingleSupport(data, c.wc.time)
		c.wc.phaseDuration = data.SwingTime
	} else {
		err = c.planner.InitializeDoubleSupport(data, c.wc.time)
		c.wc.phaseDuration = data.TransferTime
	}
	if err != nil {
		return errors.Wrapf(err, "initializing the ICP plan of %v", state)
	}
	if err := c.height.Initialize(data, data.TransferToSide, data.NextFootstep, c.tracker.ContactStates()); err != nil {
		return errors.Wrapf(err, "initializing the CoM height of %v", state)
	}
	c.wc.phaseInitialized = true
	c.wc.standingReplanned = false
	return nil
}

func (c *Controller) doAction(tc *tickContext, dt float64) (Output, error) {
	state := c.wc.state
	t := c.wc.time
	timeInState := c.TimeInCurrentState()
	cp := tc.cp

	if c.wc.phaseDuration > 0 && timeInState >= c.cfg.Timing.LookaheadFraction*c.wc.phaseDuration {
		c.queue.UpdateLookahead()
	}
	switch {
	case state.IsTransfer():
		if to, _ := state.SupportSide(); !c.queue.HasLatched() && c.wc.flamingo == nil {
			if _, ok := c.queue.CheckForFootsteps(true, to, tc.rs.Feet); ok {
				c.wc.phaseInitialized = false
			}
		}
	case state.IsSingleSupport():
		c.retargetFlamingo()
	}

	switch {
	case !c.wc.phaseInitialized:
		if err := c.initializePhase(cp); err != nil {
			return Output{}, err
		}
	case state.IsStanding() && !c.wc.standingReplanned && c.planner.IsDone(t):
		// Re-center once the standing plan ended, the feet may have moved since it started.
		if err := c.initializePhase(cp); err != nil {
			return Output{}, err
		}
		c.wc.standingReplanned = true
	}

	desired := c.planner.Compute(cp.Position, t)
	if state.IsSingleSupport() && c.wc.flamingo == nil {
		c.adjustFootstep(tc)
	}
	desired = c.push.DesiredICP(desired, t)
	desired.ICP = desired.ICP.Add(c.insideFootShift(timeInState))
	c.checkToeOff(tc, desired, timeInState)

	legs := robotside.SideDependentList[comheight.LegState]{}
	for _, side := range robotside.Values {
		legs.Set(side, comheight.LegState{LengthRatio: tc.rs.LegLengthRatios.Get(side), Loaded: c.tracker.InContact(side)})
	}
	height, err := c.height.Compute(comheight.PlannerInput{
		Dt:                 dt,
		CoM:                tc.rs.CoM,
		CoMVelocity:        tc.rs.CoMVelocity,
		DesiredICPVelocity: desired.ICPVelocity,
		DesiredCMP:         desired.CMP,
		Omega0:             cp.Omega0,
		Legs:               legs,
	})
	if err != nil {
		return Output{}, err
	}

	support := c.tracker.SupportPolygon()
	gain := 1 + c.cfg.ICPFeedback.Kp/cp.Omega0
	cmp := support.Project(desired.CMP.Add(cp.Position.Sub(desired.ICP).Mul(gain)))
	mass, w2 := c.cfg.Omega0.Mass, cp.Omega0*cp.Omega0
	cmd := MomentumRateCommand{
		Linear: r3.Vector{
			X: mass * w2 * (tc.rs.CoM.X - cmp.X),
			Y: mass * w2 * (tc.rs.CoM.Y - cmp.Y),
			Z: mass * (c.cfg.Omega0.Gravity + height.DesiredAcceleration),
		},
		CMP: cmp,
	}
	c.deps.Solver.SetDesiredRateOfChangeOfMomentum(cmd)
	if len(c.cfg.HeldJoints) > 0 {
		c.deps.Solver.DoPDControl(c.cfg.HeldJoints, c.cfg.HeldJointGains)
	}
	sol, err := c.deps.Solver.Solve(tc.ctx)
	if err != nil {
		return Output{}, errors.Wrap(err, "momentum solver failed")
	}

	c.wc.lastDesired = desired
	icpError := cp.Position.Sub(desired.ICP).Norm()
	c.metrics.icpError.Record(tc.ctx, icpError)
	c.logger.Debugw("tick", "state", state, "time", t, "icp", cp.Position, "desired_icp", desired.ICP, "cmp", cmp)
	return Output{
		State:          state,
		Time:           t,
		TimeInState:    timeInState,
		CapturePoint:   cp,
		Desired:        desired,
		CommandedCMP:   cmp,
		SupportPolygon: support.Vertices(),
		CoMHeight:      height,
		MomentumRate:   cmd,
		Solution:       sol,
		PushRecovery:   c.push.Status().String(),
		Contacts:       c.tracker.ContactStates(),
	}, nil
}

// retargetFlamingo moves the held foot when a new pose for it arrives.
func (c *Controller) retargetFlamingo() {
	if c.wc.flamingo == nil {
		return
	}
	req, ok := c.poses.CheckForNewPose()
	if !ok {
		return
	}
	stance, _ := c.wc.state.SupportSide()
	if req.Side != stance.Opposite() {
		c.logger.Warnw("ignoring foot pose for the stance foot", "side", req.Side)
		return
	}
	c.wc.flamingo = &req
	c.wc.swingStart = c.wc.time
	c.wc.swingDuration = c.poseDuration(req)
	c.deps.FootManager.RequestMoveStraight(req.Side, req.Pose, c.wc.swingDuration)
	c.logger.Infow("held foot retargeted", "side", req.Side, "pose", req.Pose.String())
}

func (c *Controller) adjustFootstep(tc *tickContext) {
	step, ok := c.queue.PeekNext()
	if !ok {
		return
	}
	stance, _ := c.wc.state.SupportSide()
	remaining := c.wc.swingDuration - (c.wc.time - c.wc.swingStart)
	wasIdle := c.push.Status() == pushrecovery.Idle
	adjusted, changed := c.push.CheckAndAdjustFootstep(pushrecovery.SingleSupportInput{
		Time:               c.wc.time,
		ICP:                tc.cp.Position,
		Omega0:             tc.cp.Omega0,
		SwingTimeRemaining: remaining,
		StanceSide:         stance,
		StancePolygon:      c.tracker.FootPolygon(stance),
		Footstep:           step,
	})
	if !changed {
		return
	}
	c.queue.Latch(adjusted)
	c.deps.FootManager.ReplanSwing(adjusted, remaining)
	if wasIdle {
		c.metrics.pushRecovery(tc.ctx, "footstep_adjustment")
	}
}

// insideFootShift moves the desired ICP toward the midline, ramping from RampStartFraction of the
// phase to its end.
func (c *Controller) insideFootShift(timeInState float64) r2.Point {
	cfg := c.cfg.InsideFootShift
	stance, ok := c.wc.state.SupportSide()
	if !cfg.Enabled || !ok || c.wc.phaseDuration <= 0 {
		return r2.Point{}
	}
	progress := timeInState / c.wc.phaseDuration
	if progress <= cfg.RampStartFraction {
		return r2.Point{}
	}
	ramp := lo.Clamp((progress-cfg.RampStartFraction)/(1-cfg.RampStartFraction), 0, 1)
	inward := c.tracker.SolePose(stance).Left().Mul(-stance.Sign())
	return inward.Mul(cfg.MaxLateralShift * ramp)
}

// checkToeOff puts the trailing foot on its toes once the ICP or the desired CMP has passed its
// toe line.
func (c *Controller) checkToeOff(tc *tickContext, desired icp.DesiredState, timeInState float64) {
	cfg := c.cfg.ToeOff
	state := c.wc.state
	if cfg.Strategy == ToeOffDisabled || c.wc.toeOff || !state.IsTransfer() || !c.queue.HasLatched() {
		return
	}
	if c.wc.phaseDuration <= 0 || timeInState < cfg.MinPhaseFraction*c.wc.phaseDuration {
		return
	}
	leading, _ := state.SupportSide()
	trailing := leading.Opposite()
	pose := c.tracker.SolePose(trailing)
	if pose.InverseTransform(c.tracker.SolePose(leading).XY()).X <= 0 {
		return
	}
	_, toe := c.tracker.LocalSole(trailing).Extent(r2.Point{X: 1})
	var past float64
	switch cfg.Strategy {
	case ToeOffOnICP:
		past = pose.InverseTransform(tc.cp.Position).X - toe - cfg.ICPForwardMargin
	case ToeOffOnCMP:
		past = pose.InverseTransform(desired.CMP).X - toe - cfg.CMPForwardMargin
	}
	if past <= 0 {
		return
	}
	c.setOnToes(trailing)
	c.wc.toeOff = true
	c.metrics.toeOffs.Add(tc.ctx, 1)
	c.logger.Debugw("toe-off", "side", trailing, "strategy", cfg.Strategy, "time", c.wc.time)
}

// OrbitalEnergy returns the orbital energy of the CoM about pivot along the direction to the
// pivot. It is negative infinity when the CoM moves away from the pivot.
func OrbitalEnergy(com, comVelocity, pivot r2.Point, omega float64) float64 {
	d := pivot.Sub(com)
	dist := d.Norm()
	if dist < 1e-9 {
		return 0.5 * comVelocity.Dot(comVelocity)
	}
	v := comVelocity.Dot(d.Mul(1 / dist))
	if v <= 0 {
		return math.Inf(-1)
	}
	return 0.5*v*v - 0.5*omega*omega*dist*dist
}

func (c *Controller) orbitalEnergy(tc *tickContext, to robotside.RobotSide) float64 {
	com := spatialmath.Horizontal(tc.rs.CoM)
	omega := tc.cp.Omega0
	if pd, err := c.height.Height(com); err == nil && pd.Z > 0 {
		omega = math.Sqrt(c.cfg.Omega0.Gravity / pd.Z)
	}
	pivot := c.tracker.SolePolygon(to).Centroid()
	return OrbitalEnergy(com, spatialmath.Horizontal(tc.rs.CoMVelocity), pivot, omega)
}
