// Package comheight computes the desired vertical motion of the center of mass.
package comheight

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/biped/contact"
	"go.viam.com/biped/control"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
)

// SingularityEscaper bends a leg out of a kinematic singularity.
type SingularityEscaper interface {
	RequestSingularityEscape(side robotside.RobotSide)
}

// LegState is what the planner needs to know about one leg.
type LegState struct {
	// LengthRatio is the hip to ankle distance over the fully extended leg length.
	LengthRatio float64
	Loaded      bool
}

// PlannerInput is read once per tick.
type PlannerInput struct {
	Dt                 float64
	CoM                r3.Vector
	CoMVelocity        r3.Vector
	DesiredICPVelocity r2.Point
	DesiredCMP         r2.Point
	Omega0             float64
	Legs               robotside.SideDependentList[LegState]
}

// Output is the vertical command of one tick.
type Output struct {
	DesiredHeight       float64 `json:"desired_height"`
	DesiredVelocity     float64 `json:"desired_velocity"`
	DesiredAcceleration float64 `json:"desired_acceleration"`
	SingularityActive   bool    `json:"singularity_active"`
}

// Planner smooths the generator output, tracks it with a PD and applies the corrections and limits
// that keep the vertical command feasible.
type Planner struct {
	cfg       Config
	logger    logging.Logger
	generator TrajectoryGenerator
	escaper   SingularityEscaper

	filter   *control.SecondOrderFilter
	tracking *control.PID
	escaping robotside.SideDependentList[bool]
}

// NewPlanner returns a planner over generator. escaper may be nil unless the singularity mode is
// Escape.
func NewPlanner(cfg Config, generator TrajectoryGenerator, escaper SingularityEscaper, logger logging.Logger) (*Planner, error) {
	if err := cfg.Validate("com_height"); err != nil {
		return nil, err
	}
	if cfg.SingularityMode == Escape && escaper == nil {
		return nil, errors.New("singularity escape mode needs a foot manager")
	}
	filter, err := control.NewSecondOrderFilter(cfg.FilterFrequency)
	if err != nil {
		return nil, err
	}
	return &Planner{
		cfg:       cfg,
		logger:    logger,
		generator: generator,
		escaper:   escaper,
		filter:    filter,
		tracking:  control.NewPID(cfg.Gains),
	}, nil
}

// UpdateConfig replaces the config and the generator. The smoothing filter keeps its state so the
// height command stays continuous; the tracking gains change and the integral restarts.
func (p *Planner) UpdateConfig(cfg Config, generator TrajectoryGenerator) error {
	if err := cfg.Validate("com_height"); err != nil {
		return err
	}
	if cfg.SingularityMode == Escape && p.escaper == nil {
		return errors.New("singularity escape mode needs a foot manager")
	}
	if err := p.filter.SetNaturalFrequency(cfg.FilterFrequency); err != nil {
		return err
	}
	p.cfg = cfg
	p.generator = generator
	p.tracking.UpdateConfig(cfg.Gains)
	return nil
}

// Reset clears the filter, the tracker and the singularity state.
func (p *Planner) Reset() {
	p.filter.Reset()
	p.tracking.Reset()
	p.escaping = robotside.SideDependentList[bool]{}
}

// Initialize starts a new phase of the generator.
func (p *Planner) Initialize(
	data icp.TransferAndNextFootstepsData,
	supportSide robotside.RobotSide,
	next *footstep.Footstep,
	contacts robotside.SideDependentList[contact.State],
) error {
	return p.generator.Initialize(data, supportSide, next, contacts)
}

// Height returns the generator surface at the horizontal position com.
func (p *Planner) Height(com r2.Point) (PartialDerivatives, error) {
	return p.generator.Solve(Input{CoM: com})
}

// Compute returns the vertical command for this tick.
func (p *Planner) Compute(in PlannerInput) (Output, error) {
	pd, err := p.Height(r2.Point{X: in.CoM.X, Y: in.CoM.Y})
	if err != nil {
		return Output{}, errors.Wrap(err, "height trajectory generator failed")
	}

	// Chain rule through the horizontal pendulum motion.
	vx, vy := in.CoMVelocity.X, in.CoMVelocity.Y
	w2 := in.Omega0 * in.Omega0
	ax, ay := w2*(in.CoM.X-in.DesiredCMP.X), w2*(in.CoM.Y-in.DesiredCMP.Y)
	zRef := pd.Z
	zdRef := pd.DzDx*vx + pd.DzDy*vy
	zddRef := pd.DzDx*ax + pd.DzDy*ay + pd.D2zDx2*vx*vx + 2*pd.D2zDxDy*vx*vy + pd.D2zDy2*vy*vy

	z, zd, zdd := p.filter.Next(zRef, zdRef, zddRef, in.Dt)
	feedback, _ := p.tracking.Next(z-in.CoM.Z, zd-in.CoMVelocity.Z, in.Dt)
	acc := zdd + feedback

	dvx := in.DesiredICPVelocity.X - vx
	dvy := in.DesiredICPVelocity.Y - vy
	acc += p.cfg.ICPVelocityCorrectionGain * in.Omega0 * (pd.DzDx*dvx + pd.DzDy*dvy)

	singular := false
	for _, side := range robotside.Values {
		leg := in.Legs.Get(side)
		near := leg.Loaded && leg.LengthRatio > p.cfg.SingularityLegLengthRatio
		if !near {
			p.escaping.Set(side, false)
			continue
		}
		singular = true
		if p.cfg.SingularityMode == Escape && !p.escaping.Get(side) {
			p.escaping.Set(side, true)
			p.escaper.RequestSingularityEscape(side)
			p.logger.Infow("leg near singularity, escaping", "side", side, "length_ratio", leg.LengthRatio)
		}
	}
	if singular {
		switch p.cfg.SingularityMode {
		case ZeroAcceleration:
			acc = 0
		case Escape:
			acc = math.Min(acc, 0)
		}
	}

	acc = math.Max(acc, -p.cfg.Gravity+p.cfg.FreeFallMargin)
	if math.IsNaN(acc) {
		return Output{}, errors.New("desired CoM height acceleration is NaN")
	}
	return Output{
		DesiredHeight:       z,
		DesiredVelocity:     zd,
		DesiredAcceleration: acc,
		SingularityActive:   singular,
	}, nil
}
