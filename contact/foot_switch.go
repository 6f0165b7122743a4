package contact

import (
	"github.com/pkg/errors"
)

// LandingMode is which part of the foot is expected to touch down first.
type LandingMode string

const (
	// LandFlat lands on the whole sole.
	LandFlat LandingMode = "flat"
	// LandOnToe lands on the toes.
	LandOnToe LandingMode = "toe"
	// LandOnHeel lands on the heel.
	LandOnHeel LandingMode = "heel"
)

// ErrLandingSensorMismatch is returned when the configured landing mode needs a toe or heel
// switch the robot does not provide.
var ErrLandingSensorMismatch = errors.New("landing mode does not match the available foot switch")

// FootSwitch reports whether a foot touches the ground.
type FootSwitch interface {
	HasFootHitGround() bool
}

// ToeSwitch is a foot switch that can tell a toe contact apart.
type ToeSwitch interface {
	FootSwitch
	HasToeHitGround() bool
}

// HeelSwitch is a foot switch that can tell a heel contact apart.
type HeelSwitch interface {
	FootSwitch
	HasHeelHitGround() bool
}

// Validate checks the landing mode is known.
func (m LandingMode) Validate() error {
	switch m {
	case LandFlat, LandOnToe, LandOnHeel:
		return nil
	}
	return errors.Errorf("unknown landing mode %q", m)
}

// CheckLandingSensor fails when sw cannot report the contact mode needs.
func CheckLandingSensor(mode LandingMode, sw FootSwitch) error {
	if sw == nil {
		return errors.Wrap(ErrLandingSensorMismatch, "no foot switch")
	}
	switch mode {
	case LandOnToe:
		if _, ok := sw.(ToeSwitch); !ok {
			return errors.Wrapf(ErrLandingSensorMismatch, "landing mode %q needs a toe switch, got %T", mode, sw)
		}
	case LandOnHeel:
		if _, ok := sw.(HeelSwitch); !ok {
			return errors.Wrapf(ErrLandingSensorMismatch, "landing mode %q needs a heel switch, got %T", mode, sw)
		}
	case LandFlat:
	default:
		return mode.Validate()
	}
	return nil
}

// HasLanded reads the switch matching mode.
func HasLanded(mode LandingMode, sw FootSwitch) (bool, error) {
	if err := CheckLandingSensor(mode, sw); err != nil {
		return false, err
	}
	switch mode {
	case LandOnToe:
		return sw.(ToeSwitch).HasToeHitGround(), nil
	case LandOnHeel:
		return sw.(HeelSwitch).HasHeelHitGround(), nil
	default:
		return sw.HasFootHitGround(), nil
	}
}
