package icp

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
)

// DefaultMaxLookahead is how many upcoming footsteps the reference planner plans over.
const DefaultMaxLookahead = 3

type phaseKind int

const (
	phaseNone phaseKind = iota
	phaseStanding
	phaseTransfer
	phaseSingleSupport
)

func (k phaseKind) String() string {
	switch k {
	case phaseStanding:
		return "standing"
	case phaseTransfer:
		return "transfer"
	case phaseSingleSupport:
		return "single_support"
	default:
		return "none"
	}
}

// ConstantCMPPlanner plans the ICP with the CMP held at the center of each footstep. Single support
// follows the exact pendulum solution backward from the end-of-step ICP; transfers are cubic
// segments from the current desired ICP to the start of the next single support.
type ConstantCMPPlanner struct {
	logger       logging.Logger
	maxLookahead int

	phase    phaseKind
	t0       float64
	duration float64
	omega0   float64

	stanceCMP r2.Point
	ssStart   r2.Point
	transfer  Hermite
	final     r2.Point

	last    DesiredState
	hasLast bool
}

// NewConstantCMPPlanner returns a planner looking at most maxLookahead footsteps ahead.
func NewConstantCMPPlanner(maxLookahead int, logger logging.Logger) *ConstantCMPPlanner {
	if maxLookahead <= 0 {
		maxLookahead = DefaultMaxLookahead
	}
	return &ConstantCMPPlanner{logger: logger, maxLookahead: maxLookahead}
}

// Reset forgets the current phase and the last desired state.
func (p *ConstantCMPPlanner) Reset() {
	p.phase = phaseNone
	p.hasLast = false
	p.last = DesiredState{}
}

func footstepCenter(f footstep.Footstep) r2.Point {
	if f.SupportPolygon.IsEmpty() {
		return f.Pose.XY()
	}
	return f.WorldPolygon().Centroid()
}

// plan returns the stance CMP and the ICP the single support on it must end at.
func (p *ConstantCMPPlanner) plan(data TransferAndNextFootstepsData) (r2.Point, r2.Point) {
	stance := footstepCenter(data.TransferToFootstep)
	steps := data.Footsteps()
	if data.SwingFootHeld || len(steps) == 0 {
		return stance, stance
	}
	truncated := len(steps) == 3
	if len(steps) > p.maxLookahead {
		steps = steps[:p.maxLookahead]
		truncated = true
	}

	cmps := []r2.Point{stance}
	durations := []float64{0}
	for _, f := range steps {
		cmps = append(cmps, footstepCenter(f))
		durations = append(durations, f.SwingDuration(data.SwingTime)+f.TransferDuration(data.TransferTime))
	}

	last := len(cmps) - 1
	final := cmps[last]
	if !truncated {
		final = cmps[last-1].Add(cmps[last]).Mul(0.5)
	}
	icp := final
	for i := last - 1; i >= 1; i-- {
		icp = ExponentialStart(cmps[i], icp, data.Omega0, durations[i])
	}
	return stance, icp
}

func (p *ConstantCMPPlanner) startState(data TransferAndNextFootstepsData) (r2.Point, r2.Point) {
	if p.hasLast {
		return p.last.ICP, p.last.ICPVelocity
	}
	return data.CurrentICP, r2.Point{}
}

// InitializeDoubleSupport implements Planner.
func (p *ConstantCMPPlanner) InitializeDoubleSupport(data TransferAndNextFootstepsData, t0 float64) error {
	if err := capturepoint.ValidateOmega0(data.Omega0); err != nil {
		return err
	}
	if data.TransferTime < 0 {
		return errors.Errorf("negative transfer time %v", data.TransferTime)
	}
	p0, v0 := p.startState(data)
	p.t0, p.duration, p.omega0 = t0, data.TransferTime, data.Omega0

	if data.NextFootstep == nil && !data.SwingFootHeld {
		from := footstepCenter(data.TransferFromFootstep)
		to := footstepCenter(data.TransferToFootstep)
		p.phase = phaseStanding
		p.final = from.Add(to).Mul(0.5)
		p.transfer = Hermite{P0: p0, V0: v0, P1: p.final, Duration: data.TransferTime}
		p.logger.Debugw("icp plan initialized", "phase", p.phase, "final", p.final)
		return nil
	}

	stance, ssEnd := p.plan(data)
	ssStart := ExponentialStart(stance, ssEnd, data.Omega0, data.SwingTime)
	p.phase = phaseTransfer
	p.stanceCMP = stance
	p.final = ssStart
	p.transfer = Hermite{
		P0:       p0,
		V0:       v0,
		P1:       ssStart,
		V1:       ssStart.Sub(stance).Mul(data.Omega0),
		Duration: data.TransferTime,
	}
	p.logger.Debugw("icp plan initialized", "phase", p.phase, "to", data.TransferToSide, "final", p.final)
	return nil
}

// InitializeSingleSupport implements Planner.
func (p *ConstantCMPPlanner) InitializeSingleSupport(data TransferAndNextFootstepsData, t0 float64) error {
	if err := capturepoint.ValidateOmega0(data.Omega0); err != nil {
		return err
	}
	if data.SwingTime <= 0 {
		return errors.Errorf("swing time must be positive, got %v", data.SwingTime)
	}
	stance, ssEnd := p.plan(data)
	p.phase = phaseSingleSupport
	p.t0, p.duration, p.omega0 = t0, data.SwingTime, data.Omega0
	p.stanceCMP = stance
	p.ssStart = ExponentialStart(stance, ssEnd, data.Omega0, data.SwingTime)
	p.final = ssEnd
	p.logger.Debugw("icp plan initialized", "phase", p.phase, "stance", data.TransferToSide, "final", p.final)
	return nil
}

// Compute implements Planner. Before any initialization the actual ICP is returned as desired.
func (p *ConstantCMPPlanner) Compute(actualICP r2.Point, t float64) DesiredState {
	tau := math.Max(0, math.Min(t-p.t0, p.duration))
	var out DesiredState
	switch p.phase {
	case phaseSingleSupport:
		icp, vel := Exponential(p.stanceCMP, p.ssStart, p.omega0, tau)
		out = DesiredState{ICP: icp, ICPVelocity: vel, CMP: p.stanceCMP}
	case phaseTransfer, phaseStanding:
		icp, vel := p.transfer.At(tau)
		out = DesiredState{ICP: icp, ICPVelocity: vel, CMP: CMPFromICP(icp, vel, p.omega0)}
	default:
		out = DesiredState{ICP: actualICP, CMP: actualICP}
	}
	p.last, p.hasLast = out, true
	return out
}

// IsDone implements Planner.
func (p *ConstantCMPPlanner) IsDone(t float64) bool {
	return p.phase == phaseNone || t-p.t0 >= p.duration
}

// FinalDesiredICP implements Planner.
func (p *ConstantCMPPlanner) FinalDesiredICP() r2.Point {
	return p.final
}
