package sim

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/biped/control"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/walking"
	"go.viam.com/biped/walking/fake"
)

var (
	// ErrFell is returned once the capture point is too far outside the double support polygon.
	ErrFell = errors.New("robot fell")
	// ErrNotSettled is returned by Run when the robot is still busy after the tick budget.
	ErrNotSettled = errors.New("simulation did not settle")
)

// Sample is the state of one simulated tick.
type Sample struct {
	Tick         int                                           `json:"tick"`
	Time         float64                                       `json:"time"`
	State        walking.State                                 `json:"state"`
	TimeInState  float64                                       `json:"time_in_state"`
	CoM          r3.Vector                                     `json:"com"`
	CoMVelocity  r3.Vector                                     `json:"com_velocity"`
	ICP          r2.Point                                      `json:"icp"`
	DesiredICP   r2.Point                                      `json:"desired_icp"`
	CMP          r2.Point                                      `json:"cmp"`
	Feet         robotside.SideDependentList[spatialmath.Pose] `json:"feet"`
	PushRecovery string                                        `json:"push_recovery"`
}

// ICPError is the distance between the capture point and its desired value.
func (s Sample) ICPError() float64 {
	return s.ICP.Sub(s.DesiredICP).Norm()
}

// A Sink receives every sample as it is produced.
type Sink interface {
	Record(ctx context.Context, sample Sample) error
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSink forwards samples to sink.
func WithSink(sink Sink) Option {
	return func(s *Simulation) {
		s.sink = sink
	}
}

// WithControllerOptions passes options to the walking controller.
func WithControllerOptions(opts ...walking.Option) Option {
	return func(s *Simulation) {
		s.ctrlOpts = append(s.ctrlOpts, opts...)
	}
}

// Simulation runs the walking controller against kinematic feet and a pendulum plant. It is a
// control.Stepper and is not safe for concurrent use.
type Simulation struct {
	cfg    Config
	logger logging.Logger
	dt     float64

	ctrl     *walking.Controller
	ctrlOpts []walking.Option
	feet     *fake.FootManager
	solver   *fake.MomentumSolver
	plant    *Plant
	steps    footstep.Provider
	poses    *footstep.PoseMailbox

	// estimators filter the measured CoM in x and y when CoMNoise is set.
	estimators [2]*control.KalmanFilter
	rng        *rand.Rand

	pushes  []Push
	tick    int
	last    walking.Output
	samples []Sample
	sink    Sink
}

// New builds a standing robot that will walk the footsteps of steps.
func New(cfg Config, steps footstep.Provider, logger logging.Logger, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate("sim"); err != nil {
		return nil, err
	}
	wc := cfg.Walking
	half := cfg.StanceWidth / 2
	feet := robotside.NewSideDependentList(
		spatialmath.NewPose(r3.Vector{Y: half}, 0),
		spatialmath.NewPose(r3.Vector{Y: -half}, 0),
	)
	plant, err := NewPlant(r3.Vector{Z: wc.CoMHeight.NominalHeight}, wc.Omega0.Mass, wc.Omega0.Gravity)
	if err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:    cfg,
		logger: logger,
		dt:     wc.ControlDt,
		feet:   fake.NewFootManager(feet, logger.Sublogger("feet")),
		solver: &fake.MomentumSolver{Mass: wc.Omega0.Mass, Gravity: wc.Omega0.Gravity},
		plant:  plant,
		steps:  steps,
		poses:  footstep.NewPoseMailbox(),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pushes = append([]Push(nil), cfg.Pushes...)
	sort.SliceStable(s.pushes, func(i, j int) bool { return s.pushes[i].Time < s.pushes[j].Time })

	if cfg.CoMNoise > 0 {
		for i := range s.estimators {
			kf, err := control.NewKalmanFilter(cfg.EstimatorAccelVariance, cfg.CoMNoise*cfg.CoMNoise)
			if err != nil {
				return nil, err
			}
			s.estimators[i] = kf
		}
	}

	ctrlOpts := append([]walking.Option{walking.WithPoseProvider(s.poses)}, s.ctrlOpts...)
	s.ctrl, err = walking.NewController(wc, walking.Dependencies{
		Solver:       s.solver,
		FootManager:  s.feet,
		Footsteps:    steps,
		FootSwitches: s.feet.ToeHeelSwitches(),
	}, logger.Sublogger("walking"), ctrlOpts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Controller returns the controller under simulation.
func (s *Simulation) Controller() *walking.Controller {
	return s.ctrl
}

// Feet returns the foot manager.
func (s *Simulation) Feet() *fake.FootManager {
	return s.feet
}

// Plant returns the pendulum.
func (s *Simulation) Plant() *Plant {
	return s.plant
}

// Poses returns the mailbox for flamingo pose requests.
func (s *Simulation) Poses() *footstep.PoseMailbox {
	return s.poses
}

// Samples returns the samples recorded so far.
func (s *Simulation) Samples() []Sample {
	return s.samples
}

// Time returns the time of the next tick.
func (s *Simulation) Time() float64 {
	return float64(s.tick) * s.dt
}

// Push schedules an extra push.
func (s *Simulation) Push(p Push) {
	s.pushes = append(s.pushes, p)
	sort.SliceStable(s.pushes, func(i, j int) bool { return s.pushes[i].Time < s.pushes[j].Time })
}

func (s *Simulation) measure() (r3.Vector, r3.Vector) {
	com, vel := s.plant.CoM(), s.plant.Velocity()
	if s.estimators[0] == nil {
		return com, vel
	}
	acc := s.plant.Acceleration()
	measured := [2]float64{com.X, com.Y}
	accel := [2]float64{acc.X, acc.Y}
	for i, kf := range s.estimators {
		if s.tick == 0 {
			kf.Reset(measured[i], 0)
			continue
		}
		kf.Predict(s.dt, accel[i])
		kf.Update(measured[i] + s.rng.NormFloat64()*s.cfg.CoMNoise)
	}
	com.X, com.Y = s.estimators[0].Position(), s.estimators[1].Position()
	vel.X, vel.Y = s.estimators[0].Velocity(), s.estimators[1].Velocity()
	return com, vel
}

func (s *Simulation) legLengthRatios() robotside.SideDependentList[float64] {
	var ratios robotside.SideDependentList[float64]
	com := s.plant.CoM()
	for _, side := range robotside.Values {
		ratios.Set(side, com.Sub(s.feet.Feet().Get(side).Point).Norm()/s.cfg.LegLength)
	}
	return ratios
}

func (s *Simulation) groundContacts() []r2.Point {
	var out []r2.Point
	for _, side := range robotside.Values {
		if s.feet.OnGround(side) {
			out = append(out, s.feet.Feet().Get(side).XY())
		}
	}
	return out
}

// Step implements control.Stepper. It advances the simulation by one controller tick; the loop
// period is ignored.
func (s *Simulation) Step(ctx context.Context, _ time.Duration) error {
	now := s.Time()
	for len(s.pushes) > 0 && s.pushes[0].Time <= now+s.dt/2 {
		s.plant.Push(s.pushes[0].DeltaV)
		s.logger.Infow("push", "time", now, "delta_v", s.pushes[0].DeltaV)
		s.pushes = s.pushes[1:]
	}

	s.feet.Update(now)
	com, vel := s.measure()
	wrench, cops := s.plant.GroundReaction(s.groundContacts())
	out, err := s.ctrl.DoControl(ctx, walking.RobotState{
		Time:              now,
		CoM:               com,
		CoMVelocity:       vel,
		Feet:              s.feet.Feet(),
		LegLengthRatios:   s.legLengthRatios(),
		CentersOfPressure: cops,
		Wrench:            wrench,
	})
	if err != nil {
		return errors.Wrapf(err, "tick %d", s.tick)
	}
	if err := s.plant.Step(out.Solution.CMP, out.Solution.CoMAcceleration.Z, s.dt); err != nil {
		return errors.Wrapf(err, "tick %d", s.tick)
	}
	s.last = out

	sample := Sample{
		Tick:         s.tick,
		Time:         now,
		State:        out.State,
		TimeInState:  out.TimeInState,
		CoM:          s.plant.CoM(),
		CoMVelocity:  s.plant.Velocity(),
		ICP:          s.plant.CapturePoint(),
		DesiredICP:   out.Desired.ICP,
		CMP:          out.Solution.CMP,
		Feet:         s.feet.Feet(),
		PushRecovery: out.PushRecovery,
	}
	s.samples = append(s.samples, sample)
	s.tick++
	if s.sink != nil {
		if err := s.sink.Record(ctx, sample); err != nil {
			return errors.Wrap(err, "cannot record sample")
		}
	}

	// A swing may still catch the capture point, so only double support is checked.
	if !out.State.IsDoubleSupport() {
		return nil
	}
	support := spatialmath.NewConvexHull(out.SupportPolygon...)
	if d := support.SignedDistance(sample.ICP); d > s.cfg.FallDistance {
		return errors.Wrapf(ErrFell, "capture point %.3f m outside the support polygon at t=%.3f", d, now)
	}
	return nil
}

// Idle reports whether the robot stands still with nothing left to do.
func (s *Simulation) Idle() bool {
	if s.tick == 0 || s.last.State != walking.DoubleSupport || len(s.pushes) > 0 {
		return false
	}
	if !s.steps.IsEmpty() || s.poses.HasPending() || s.ctrl.Status().Footstep != nil {
		return false
	}
	for _, side := range robotside.Values {
		if s.feet.Moving(side) {
			return false
		}
	}
	return s.last.TimeInState >= s.cfg.Walking.Timing.MinDoubleSupportTime
}

// Run steps until the robot is idle, fails or maxTicks ticks have run.
func (s *Simulation) Run(ctx context.Context, maxTicks int) error {
	period := time.Duration(s.dt * float64(time.Second))
	for i := 0; i < maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(ctx, period); err != nil {
			return err
		}
		if s.Idle() {
			s.logger.Debugw("simulation settled", "tick", s.tick, "time", s.Time())
			return nil
		}
	}
	return errors.Wrapf(ErrNotSettled, "still %s after %d ticks", s.last.State, maxTicks)
}

// NewLoop returns a loop that steps the simulation at the controller rate on clk.
func (s *Simulation) NewLoop(clk clock.Clock) (*control.Loop, error) {
	return control.NewLoop(s.logger.Sublogger("loop"), control.LoopConfig{Frequency: 1 / s.dt}, s, clk)
}
