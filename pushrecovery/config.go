package pushrecovery

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Config configures the Module. A disabled module never triggers.
type Config struct {
	Enabled bool `json:"enabled"`
	// SupportPolygonMargin shrinks support polygons before the capture point is checked.
	SupportPolygonMargin float64 `json:"support_polygon_margin"`
	// MaxStepAdjustment bounds the total displacement of a footstep during one swing.
	MaxStepAdjustment float64 `json:"max_step_adjustment"`
	// MaxStepLength bounds footsteps synthesized after a fall from double support.
	MaxStepLength float64 `json:"max_step_length"`
	// MinSwingTimeForAdjustment disables adjustments this close to touchdown.
	MinSwingTimeForAdjustment float64 `json:"min_swing_time_for_adjustment"`
	// RecoverySwingTime is the swing time of synthesized footsteps.
	RecoverySwingTime float64 `json:"recovery_swing_time"`
	// UseRecoveryICPPlan replaces the desired ICP with a dedicated recovery plan while recovering.
	UseRecoveryICPPlan bool    `json:"use_recovery_icp_plan"`
	BlendDuration      float64 `json:"blend_duration"`
}

// DefaultConfig returns a disabled module with usable tuning.
func DefaultConfig() Config {
	return Config{
		SupportPolygonMargin:      0.01,
		MaxStepAdjustment:         0.15,
		MaxStepLength:             0.4,
		MinSwingTimeForAdjustment: 0.1,
		RecoverySwingTime:         0.5,
		BlendDuration:             0.2,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SupportPolygonMargin < 0 {
		return utils.NewConfigValidationError(path, errors.New("support_polygon_margin cannot be negative"))
	}
	if cfg.MaxStepAdjustment <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_step_adjustment")
	}
	if cfg.MaxStepLength <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_step_length")
	}
	if cfg.RecoverySwingTime <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "recovery_swing_time")
	}
	if cfg.UseRecoveryICPPlan && cfg.BlendDuration <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "blend_duration")
	}
	return nil
}
