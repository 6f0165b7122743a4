package walking

import (
	"go.viam.com/biped/contact"
	"go.viam.com/biped/pushrecovery"
	"go.viam.com/biped/robotside"
)

// transition is one row of the transition table. Rows are evaluated in order and the first guard
// that passes wins.
type transition struct {
	name  string
	from  func(State) bool
	guard func(*tickContext) (State, bool)
}

func (c *Controller) transitionTable() []transition {
	return []transition{
		{name: "stop_walking", from: State.IsSingleSupport, guard: c.stopWalking},
		{name: "transfer_done", from: State.IsTransfer, guard: c.finishTransfer},
		{name: "switch_support_foot", from: State.IsSingleSupport, guard: c.switchSupportFoot},
		{name: "keep_support_foot", from: State.IsSingleSupport, guard: c.keepSupportFoot},
		{name: "start_walking", from: State.IsStanding, guard: c.startWalking},
		{name: "double_support_fall", from: State.IsDoubleSupport, guard: c.catchFall},
		{name: "flamingo", from: State.IsStanding, guard: c.startFlamingo},
	}
}

func (c *Controller) evaluateTransitions(tc *tickContext) error {
	for _, tr := range c.transitions {
		if !tr.from(c.wc.state) {
			continue
		}
		next, ok := tr.guard(tc)
		if !ok {
			continue
		}
		return c.transitionTo(tc, next, tr.name)
	}
	return nil
}

func (c *Controller) transitionTo(tc *tickContext, next State, rule string) error {
	prev := c.wc.state
	c.onExit(prev)
	c.wc.state = next
	c.wc.stateStart = c.wc.time
	c.wc.phaseInitialized = false
	c.wc.phaseDuration = 0
	c.logger.Infow("walking state transition", "from", prev, "to", next, "rule", rule, "time", c.wc.time)
	c.metrics.transition(tc.ctx, prev, next, rule)
	return c.onEnter(tc, next)
}

// stopWalking goes back to standing once the last swing has landed.
func (c *Controller) stopWalking(tc *tickContext) (State, bool) {
	if !c.queue.IsEmpty() || (c.wc.flamingo != nil && c.poses.HasPending()) {
		return DoubleSupport, false
	}
	if _, ok := c.wc.state.SupportSide(); ok && !c.doneWithSingleSupport(tc) {
		return DoubleSupport, false
	}
	return DoubleSupport, true
}

func (c *Controller) finishTransfer(tc *tickContext) (State, bool) {
	to, _ := c.wc.state.SupportSide()
	if !c.queue.HasLatched() && c.wc.flamingo == nil {
		return c.wc.state, false
	}
	if !c.doneWithTransfer(tc, to) {
		return c.wc.state, false
	}
	return SupportOn(to), true
}

// switchSupportFoot handles a next-next footstep placing the current stance foot: the weight goes
// to the foot that is landing.
func (c *Controller) switchSupportFoot(tc *tickContext) (State, bool) {
	stance, _ := c.wc.state.SupportSide()
	next, ok := c.queue.PeekNextNext()
	if !ok || next.Side != stance || !c.doneWithSingleSupport(tc) {
		return c.wc.state, false
	}
	return TransferTo(stance.Opposite()), true
}

// keepSupportFoot handles the same foot stepping twice: the weight returns to the stance foot.
func (c *Controller) keepSupportFoot(tc *tickContext) (State, bool) {
	stance, _ := c.wc.state.SupportSide()
	next, ok := c.queue.PeekNextNext()
	if !ok || next.Side == stance || !c.doneWithSingleSupport(tc) {
		return c.wc.state, false
	}
	return TransferTo(stance), true
}

func (c *Controller) startWalking(*tickContext) (State, bool) {
	next, ok := c.queue.PeekNextNext()
	if !ok || c.TimeInCurrentState() < c.cfg.Timing.MinDoubleSupportTime {
		return c.wc.state, false
	}
	return TransferTo(next.Side.Opposite()), true
}

func (c *Controller) catchFall(tc *tickContext) (State, bool) {
	if !c.push.Enabled() {
		return c.wc.state, false
	}
	feet := robotside.NewSideDependentList(c.tracker.SolePose(robotside.Left), c.tracker.SolePose(robotside.Right))
	fall, ok := c.push.CheckForDoubleSupportFall(pushrecovery.DoubleSupportInput{
		Time:           c.wc.time,
		ICP:            tc.cp.Position,
		Omega0:         tc.cp.Omega0,
		SupportPolygon: c.tracker.SupportPolygon(),
		FootPolygons: robotside.NewSideDependentList(
			c.tracker.FootPolygon(robotside.Left), c.tracker.FootPolygon(robotside.Right)),
		Feet: feet,
		Soles: robotside.NewSideDependentList(
			c.tracker.LocalSole(robotside.Left), c.tracker.LocalSole(robotside.Right)),
	})
	if !ok {
		return c.wc.state, false
	}
	c.wc.pendingRecovery = &fall
	return SupportOn(fall.FallingSide.Opposite()), true
}

func (c *Controller) startFlamingo(*tickContext) (State, bool) {
	if !c.poses.HasPending() {
		return c.wc.state, false
	}
	req, ok := c.poses.CheckForNewPose()
	if !ok {
		return c.wc.state, false
	}
	c.wc.pendingPose = &req
	return TransferTo(req.Side.Opposite()), true
}

// doneWithTransfer applies the configured release strategy.
func (c *Controller) doneWithTransfer(tc *tickContext, to robotside.RobotSide) bool {
	if !c.wc.phaseInitialized {
		return false
	}
	switch c.cfg.Transfer.Release {
	case ReleaseOnOrbitalEnergy:
		return c.orbitalEnergy(tc, to) > c.cfg.Transfer.OrbitalEnergyThreshold
	default:
		return c.planner.IsDone(c.wc.time) &&
			tc.cp.Position.Sub(c.wc.lastDesired.ICP).Norm() < c.cfg.Transfer.ICPTolerance
	}
}

// doneWithSingleSupport is evaluated at most once per tick.
func (c *Controller) doneWithSingleSupport(tc *tickContext) bool {
	if tc.ssDone == nil {
		done := c.singleSupportDone()
		tc.ssDone = &done
	}
	return *tc.ssDone
}

func (c *Controller) singleSupportDone() bool {
	stance, ok := c.wc.state.SupportSide()
	if !ok {
		return true
	}
	if c.cfg.Timing.FinishSingleSupportWhenICPPlannerIsDone && c.wc.flamingo == nil &&
		c.wc.phaseInitialized && c.planner.IsDone(c.wc.time) {
		return true
	}
	if c.wc.time-c.wc.swingStart < c.cfg.Timing.MinSwingFraction*c.wc.swingDuration {
		return false
	}
	landed, err := contact.HasLanded(c.cfg.LandingMode, c.deps.FootSwitches.Get(stance.Opposite()))
	if err != nil {
		c.logger.Errorw("cannot read the landing sensor", "error", err)
		return false
	}
	return landed
}
