package comheight

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/biped/control"
)

// SingularityMode is what the planner does when a loaded leg is near full extension.
type SingularityMode string

const (
	// ZeroAcceleration stops tracking height and commands no vertical acceleration.
	ZeroAcceleration SingularityMode = "zero_acceleration"
	// Escape asks the foot manager to bend the knee out of the singularity.
	Escape SingularityMode = "escape"
)

// Config configures the Planner.
type Config struct {
	Generator     GeneratorType `json:"generator"`
	NominalHeight float64       `json:"nominal_height"`
	// FilterFrequency is the natural frequency of the smoothing filter in rad/s.
	FilterFrequency float64           `json:"filter_frequency"`
	Gains           control.PIDConfig `json:"gains"`
	// ICPVelocityCorrectionGain scales the ICP velocity error coupling term.
	ICPVelocityCorrectionGain float64         `json:"icp_velocity_correction_gain"`
	SingularityLegLengthRatio float64         `json:"singularity_leg_length_ratio"`
	SingularityMode           SingularityMode `json:"singularity_mode"`
	// FreeFallMargin keeps the commanded acceleration above -gravity by this much.
	FreeFallMargin float64 `json:"free_fall_margin"`
	Gravity        float64 `json:"gravity"`
}

// DefaultConfig returns a constant height of 0.9 m.
func DefaultConfig() Config {
	return Config{
		Generator:                 ConstantGenerator,
		NominalHeight:             0.9,
		FilterFrequency:           15,
		Gains:                     control.PIDConfig{Kp: 50, Kd: 14},
		ICPVelocityCorrectionGain: 0.5,
		SingularityLegLengthRatio: 0.97,
		SingularityMode:           ZeroAcceleration,
		FreeFallMargin:            0.5,
		Gravity:                   9.81,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	switch cfg.Generator {
	case ConstantGenerator, FootstepGenerator:
	default:
		err = multierr.Append(err, errors.Errorf("unknown height generator %q", cfg.Generator))
	}
	switch cfg.SingularityMode {
	case ZeroAcceleration, Escape:
	default:
		err = multierr.Append(err, errors.Errorf("unknown singularity mode %q", cfg.SingularityMode))
	}
	if cfg.NominalHeight <= 0 {
		err = multierr.Append(err, errors.New("nominal_height must be positive"))
	}
	if cfg.FilterFrequency <= 0 {
		err = multierr.Append(err, errors.New("filter_frequency must be positive"))
	}
	if cfg.SingularityLegLengthRatio <= 0 || cfg.SingularityLegLengthRatio > 1 {
		err = multierr.Append(err, errors.New("singularity_leg_length_ratio must be in (0, 1]"))
	}
	if cfg.Gravity <= 0 {
		err = multierr.Append(err, errors.New("gravity must be positive"))
	}
	if cfg.FreeFallMargin <= 0 || cfg.FreeFallMargin >= cfg.Gravity {
		err = multierr.Append(err, errors.New("free_fall_margin must be in (0, gravity)"))
	}
	err = multierr.Append(err, cfg.Gains.Validate(path+".gains"))
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// NewGenerator returns the reference generator selected by cfg.
func NewGenerator(cfg Config) TrajectoryGenerator {
	if cfg.Generator == FootstepGenerator {
		return &FootstepHeightGenerator{NominalHeight: cfg.NominalHeight}
	}
	return &ConstantHeightGenerator{Height: cfg.NominalHeight}
}
