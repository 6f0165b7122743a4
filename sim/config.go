package sim

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/biped/walking"
)

// Push is an instantaneous change of the CoM velocity at Time.
type Push struct {
	Time   float64   `json:"time"`
	DeltaV r3.Vector `json:"delta_v"`
}

// Config configures a Simulation.
type Config struct {
	Walking walking.Config `json:"walking"`

	// StanceWidth is the lateral distance between the soles when standing.
	StanceWidth float64 `json:"stance_width"`
	// LegLength converts the hip to sole distance into a leg length ratio.
	LegLength float64 `json:"leg_length"`

	// CoMNoise is the standard deviation of the measured CoM position. Zero feeds the controller
	// the true state.
	CoMNoise               float64 `json:"com_noise"`
	EstimatorAccelVariance float64 `json:"estimator_accel_variance"`
	Seed                   uint64  `json:"seed"`

	// FallDistance is how far the capture point may leave the double support polygon before the
	// robot is considered fallen.
	FallDistance float64 `json:"fall_distance"`
	Pushes       []Push  `json:"pushes,omitempty"`
}

// DefaultConfig returns a noiseless simulation of the default walking config.
func DefaultConfig() Config {
	return Config{
		Walking:                walking.DefaultConfig(),
		StanceWidth:            0.2,
		LegLength:              1.1,
		EstimatorAccelVariance: 4,
		Seed:                   1,
		FallDistance:           0.3,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	err := cfg.Walking.Validate(path + ".walking")
	if cfg.StanceWidth <= cfg.Walking.Sole.Width {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.Errorf("stance_width %v must exceed the sole width %v", cfg.StanceWidth, cfg.Walking.Sole.Width)))
	}
	if cfg.LegLength <= cfg.Walking.CoMHeight.NominalHeight {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("leg_length must exceed the nominal CoM height")))
	}
	if cfg.CoMNoise < 0 || cfg.EstimatorAccelVariance <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("com_noise cannot be negative and estimator_accel_variance must be positive")))
	}
	if cfg.FallDistance <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "fall_distance"))
	}
	for i, p := range cfg.Pushes {
		if p.Time < 0 {
			err = multierr.Append(err, utils.NewConfigValidationError(path,
				errors.Errorf("push %d happens before the start", i)))
		}
	}
	return err
}
