package walking

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/comheight"
	"go.viam.com/biped/contact"
	"go.viam.com/biped/control"
	"go.viam.com/biped/pushrecovery"
	"go.viam.com/biped/spatialmath"
)

// ConfigVersion is the config layout this package reads.
const ConfigVersion = 1

// TransferReleaseStrategy decides when a transfer is finished.
type TransferReleaseStrategy string

const (
	// ReleaseOnICPConvergence ends a transfer when the planner is done and the ICP is within
	// ICPTolerance of the desired ICP.
	ReleaseOnICPConvergence TransferReleaseStrategy = "icp_convergence"
	// ReleaseOnOrbitalEnergy ends a transfer when the orbital energy toward the upcoming stance
	// foot exceeds OrbitalEnergyThreshold.
	ReleaseOnOrbitalEnergy TransferReleaseStrategy = "orbital_energy"
)

// ToeOffStrategy selects what triggers toe-off of the trailing foot.
type ToeOffStrategy string

const (
	// ToeOffDisabled keeps the trailing foot flat for the whole transfer.
	ToeOffDisabled ToeOffStrategy = "disabled"
	// ToeOffOnICP rolls onto the toes once the measured ICP is ICPForwardMargin past the trailing
	// toe line.
	ToeOffOnICP ToeOffStrategy = "icp"
	// ToeOffOnCMP rolls onto the toes once the desired CMP is CMPForwardMargin past the trailing
	// toe line.
	ToeOffOnCMP ToeOffStrategy = "cmp"
)

// SoleConfig describes the rectangular sole shared by both feet.
type SoleConfig struct {
	Length              float64 `json:"length"`
	Width               float64 `json:"width"`
	FrictionCoefficient float64 `json:"friction_coefficient"`
}

// Polygon returns the sole polygon in the sole frame.
func (cfg SoleConfig) Polygon() spatialmath.Polygon {
	return spatialmath.NewRectangle(cfg.Length, cfg.Width)
}

// TimingConfig holds the default phase durations. Footsteps may override swing and transfer times.
type TimingConfig struct {
	SwingTime            float64 `json:"swing_time"`
	TransferTime         float64 `json:"transfer_time"`
	MinDoubleSupportTime float64 `json:"min_double_support_time"`
	// MinSwingFraction of the swing time must pass before a foot switch may end single support.
	MinSwingFraction float64 `json:"min_swing_fraction"`
	// FinishSingleSupportWhenICPPlannerIsDone ends single support on the planner clock alone.
	FinishSingleSupportWhenICPPlannerIsDone bool `json:"finish_single_support_when_icp_planner_is_done"`
	// LookaheadFraction of a phase after which the footstep lookahead is refreshed every tick.
	LookaheadFraction float64 `json:"lookahead_fraction"`
}

// TransferConfig selects how transfers are released.
type TransferConfig struct {
	Release                TransferReleaseStrategy `json:"release"`
	ICPTolerance           float64                 `json:"icp_tolerance"`
	OrbitalEnergyThreshold float64                 `json:"orbital_energy_threshold"`
}

// ICPFeedbackConfig is the proportional capture point feedback on the CMP.
type ICPFeedbackConfig struct {
	Kp float64 `json:"kp"`
}

// InsideFootShiftConfig shifts the desired ICP toward the midline late in each phase.
type InsideFootShiftConfig struct {
	Enabled           bool    `json:"enabled"`
	RampStartFraction float64 `json:"ramp_start_fraction"`
	MaxLateralShift   float64 `json:"max_lateral_shift"`
}

// ToeOffConfig configures toe-off of the trailing foot during transfers.
type ToeOffConfig struct {
	Strategy ToeOffStrategy `json:"strategy"`
	// ICPForwardMargin is how far past the trailing toe line the ICP must be.
	ICPForwardMargin float64 `json:"icp_forward_margin"`
	// CMPForwardMargin is how far past the trailing toe line the desired CMP must be.
	CMPForwardMargin float64 `json:"cmp_forward_margin"`
	MinPhaseFraction float64 `json:"min_phase_fraction"`
}

// Config configures the Controller. Mass and gravity are read from Omega0.
type Config struct {
	Version   int     `json:"version"`
	ControlDt float64 `json:"control_dt"`

	Sole        SoleConfig          `json:"sole"`
	LandingMode contact.LandingMode `json:"landing_mode"`

	Timing          TimingConfig          `json:"timing"`
	Transfer        TransferConfig        `json:"transfer"`
	ICPFeedback     ICPFeedbackConfig     `json:"icp_feedback"`
	InsideFootShift InsideFootShiftConfig `json:"inside_foot_shift"`
	ToeOff          ToeOffConfig          `json:"toe_off"`
	// ICPLookahead is how many footsteps the default ICP planner plans over.
	ICPLookahead int `json:"icp_lookahead"`

	Omega0       capturepoint.Config `json:"omega0"`
	PushRecovery pushrecovery.Config `json:"push_recovery"`
	CoMHeight    comheight.Config    `json:"com_height"`

	// HeldJoints are PD controlled in place by the momentum solver.
	HeldJoints     []string          `json:"held_joints,omitempty"`
	HeldJointGains control.PIDConfig `json:"held_joint_gains"`
}

// DefaultConfig returns a config for a 40 kg robot with its CoM at 0.9 m.
func DefaultConfig() Config {
	height := comheight.DefaultConfig()
	return Config{
		Version:   ConfigVersion,
		ControlDt: 0.005,
		Sole: SoleConfig{
			Length:              0.22,
			Width:               0.1,
			FrictionCoefficient: contact.DefaultFrictionCoefficient,
		},
		LandingMode: contact.LandFlat,
		Timing: TimingConfig{
			SwingTime:            0.6,
			TransferTime:         0.25,
			MinDoubleSupportTime: 0.1,
			MinSwingFraction:     0.5,
			LookaheadFraction:    0.8,
		},
		Transfer: TransferConfig{
			Release:      ReleaseOnICPConvergence,
			ICPTolerance: 0.02,
		},
		ICPFeedback: ICPFeedbackConfig{Kp: 3},
		InsideFootShift: InsideFootShiftConfig{
			RampStartFraction: 0.5,
			MaxLateralShift:   0.02,
		},
		ToeOff: ToeOffConfig{
			Strategy:         ToeOffDisabled,
			ICPForwardMargin: 0.02,
			MinPhaseFraction: 0.3,
		},
		ICPLookahead: 3,
		Omega0: capturepoint.Config{
			Mode:           capturepoint.ConstantOmega0,
			ConstantOmega0: math.Sqrt(height.Gravity / height.NominalHeight),
			Mass:           40,
			Gravity:        height.Gravity,
			BreakFrequency: 10,
		},
		PushRecovery:   pushrecovery.DefaultConfig(),
		CoMHeight:      height,
		HeldJointGains: control.PIDConfig{Kp: 100, Kd: 20},
	}
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.Version != ConfigVersion {
		err = multierr.Append(err, errors.Errorf("unsupported config version %d, want %d", cfg.Version, ConfigVersion))
	}
	if cfg.ControlDt <= 0 {
		err = multierr.Append(err, errors.New("control_dt must be positive"))
	}
	if cfg.Sole.Length <= 0 || cfg.Sole.Width <= 0 {
		err = multierr.Append(err, errors.New("sole length and width must be positive"))
	}
	if cfg.Sole.FrictionCoefficient <= 0 {
		err = multierr.Append(err, errors.New("sole friction_coefficient must be positive"))
	}
	err = multierr.Append(err, cfg.LandingMode.Validate())

	t := cfg.Timing
	if t.SwingTime <= 0 || t.TransferTime <= 0 {
		err = multierr.Append(err, errors.New("swing_time and transfer_time must be positive"))
	}
	if t.MinDoubleSupportTime < 0 {
		err = multierr.Append(err, errors.New("min_double_support_time cannot be negative"))
	}
	if !fraction(t.MinSwingFraction) || !fraction(t.LookaheadFraction) {
		err = multierr.Append(err, errors.New("min_swing_fraction and lookahead_fraction must be in [0, 1]"))
	}

	switch cfg.Transfer.Release {
	case ReleaseOnICPConvergence:
		if cfg.Transfer.ICPTolerance <= 0 {
			err = multierr.Append(err, errors.New("transfer icp_tolerance must be positive"))
		}
	case ReleaseOnOrbitalEnergy:
	default:
		err = multierr.Append(err, errors.Errorf("unknown transfer release strategy %q", cfg.Transfer.Release))
	}

	if cfg.ICPFeedback.Kp < 0 {
		err = multierr.Append(err, errors.New("icp_feedback kp cannot be negative"))
	}
	if s := cfg.InsideFootShift; s.Enabled && (!fraction(s.RampStartFraction) || s.RampStartFraction == 1 || s.MaxLateralShift < 0) {
		err = multierr.Append(err, errors.New("inside_foot_shift needs ramp_start_fraction in [0, 1) and a non-negative max_lateral_shift"))
	}
	switch cfg.ToeOff.Strategy {
	case ToeOffDisabled, ToeOffOnICP, ToeOffOnCMP:
	default:
		err = multierr.Append(err, errors.Errorf("unknown toe-off strategy %q", cfg.ToeOff.Strategy))
	}
	if !fraction(cfg.ToeOff.MinPhaseFraction) {
		err = multierr.Append(err, errors.New("toe_off min_phase_fraction must be in [0, 1]"))
	}
	if cfg.ICPLookahead < 1 {
		err = multierr.Append(err, errors.New("icp_lookahead must be at least 1"))
	}

	err = multierr.Append(err, cfg.Omega0.Validate(path+".omega0"))
	if cfg.Omega0.Mass <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path+".omega0", "mass_kg"))
	}
	err = multierr.Append(err, cfg.PushRecovery.Validate(path+".push_recovery"))
	err = multierr.Append(err, cfg.CoMHeight.Validate(path+".com_height"))
	if cfg.CoMHeight.Gravity != cfg.Omega0.Gravity {
		err = multierr.Append(err, errors.New("com_height and omega0 gravity differ"))
	}
	if len(cfg.HeldJoints) > 0 {
		err = multierr.Append(err, cfg.HeldJointGains.Validate(path+".held_joint_gains"))
	}
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}
