// Package capturepoint estimates the instantaneous capture point of the robot and the natural
// frequency of its linear inverted pendulum.
package capturepoint

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/biped/control"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/spatialmath"
)

// ErrOmega0Invalid is returned when omega0 is NaN, infinite or not positive. The balance command
// computed from such a value is meaningless and must not reach the robot.
var ErrOmega0Invalid = errors.New("omega0 must be finite and positive")

// Omega0Mode selects how omega0 is obtained.
type Omega0Mode string

const (
	// ConstantOmega0 holds omega0 at a configured value.
	ConstantOmega0 Omega0Mode = "constant"
	// WrenchOmega0 recomputes omega0 every tick from the ground reaction wrench.
	WrenchOmega0 Omega0Mode = "wrench"
)

// Config configures an Estimator.
type Config struct {
	Mode           Omega0Mode `json:"mode"`
	ConstantOmega0 float64    `json:"constant_omega0"`
	Mass           float64    `json:"mass_kg"`
	Gravity        float64    `json:"gravity"`
	// BreakFrequency low pass filters omega0 in wrench mode, in Hz. Zero disables filtering.
	BreakFrequency float64 `json:"break_frequency_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	switch cfg.Mode {
	case ConstantOmega0:
		if err := ValidateOmega0(cfg.ConstantOmega0); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	case WrenchOmega0:
		if cfg.Mass <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "mass_kg")
		}
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "mode")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown omega0 mode %q", cfg.Mode))
	}
	if cfg.Gravity <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "gravity")
	}
	return nil
}

// State is the capture point and the omega0 it was computed with.
type State struct {
	Position r2.Point `json:"position"`
	Omega0   float64  `json:"omega0"`
}

// ValidateOmega0 returns ErrOmega0Invalid unless omega0 is finite and positive.
func ValidateOmega0(omega0 float64) error {
	if math.IsNaN(omega0) || math.IsInf(omega0, 0) || omega0 <= 0 {
		return errors.Wrapf(ErrOmega0Invalid, "got %v", omega0)
	}
	return nil
}

// Compute returns com_xy + comVelocity_xy / omega0.
func Compute(com, comVelocity r3.Vector, omega0 float64) (State, error) {
	if err := ValidateOmega0(omega0); err != nil {
		return State{}, err
	}
	position := spatialmath.Horizontal(com).Add(spatialmath.Horizontal(comVelocity).Mul(1 / omega0))
	if !spatialmath.IsFinite(position) {
		return State{}, errors.Errorf("capture point is not finite: com %v, velocity %v", com, comVelocity)
	}
	return State{Position: position, Omega0: omega0}, nil
}

// Estimator tracks omega0 and computes the capture point once per tick.
type Estimator struct {
	cfg    Config
	logger logging.Logger
	omega0 float64
	cmp    r2.Point
	filter *control.AlphaFilter
}

// NewEstimator returns an estimator seeded with the configured constant omega0, or with
// sqrt(g/height) in wrench mode until the first wrench arrives. dt is the control period.
func NewEstimator(cfg Config, nominalCoMHeight, dt float64, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate("omega0"); err != nil {
		return nil, err
	}
	e := &Estimator{
		cfg:    cfg,
		logger: logger,
		filter: control.NewAlphaFilter(control.AlphaFromBreakFrequency(cfg.BreakFrequency, dt)),
	}
	e.Reset(nominalCoMHeight)
	return e, nil
}

// Reset re-seeds omega0.
func (e *Estimator) Reset(nominalCoMHeight float64) {
	e.cmp = r2.Point{}
	e.filter.Reset()
	if e.cfg.Mode == ConstantOmega0 {
		e.omega0 = e.cfg.ConstantOmega0
		return
	}
	e.omega0 = math.Sqrt(e.cfg.Gravity / nominalCoMHeight)
}

// UpdateConfig replaces the config. omega0 is re-seeded when the mode changes or the mode is
// constant; a running wrench estimate is kept.
func (e *Estimator) UpdateConfig(cfg Config, nominalCoMHeight, dt float64) error {
	if err := cfg.Validate("omega0"); err != nil {
		return err
	}
	reseed := cfg.Mode != e.cfg.Mode || cfg.Mode == ConstantOmega0
	e.cfg = cfg
	e.filter.SetAlpha(control.AlphaFromBreakFrequency(cfg.BreakFrequency, dt))
	if reseed {
		e.Reset(nominalCoMHeight)
	}
	return nil
}

// Omega0 returns the last valid omega0.
func (e *Estimator) Omega0() float64 {
	return e.omega0
}

// CMP returns the centroidal moment pivot found by the last wrench update.
func (e *Estimator) CMP() r2.Point {
	return e.cmp
}

// UpdateOmega0 recomputes omega0 from the wrench in wrench mode and is a no-op otherwise. The
// previous omega0 is kept when the update fails.
func (e *Estimator) UpdateOmega0(com r3.Vector, cops []CenterOfPressure, wrench Wrench) (float64, error) {
	if e.cfg.Mode != WrenchOmega0 {
		return e.omega0, nil
	}
	omega0, cmp, err := Omega0FromWrench(com, e.cfg.Mass, cops, wrench)
	if err != nil {
		return e.omega0, err
	}
	e.omega0 = e.filter.Next(omega0)
	e.cmp = cmp
	return e.omega0, nil
}

// Compute returns the capture point for the current omega0.
func (e *Estimator) Compute(com, comVelocity r3.Vector) (State, error) {
	return Compute(com, comVelocity, e.omega0)
}
