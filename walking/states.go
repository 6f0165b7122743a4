package walking

import (
	"go.viam.com/biped/robotside"
)

// State is the walking state. Exactly one is active.
type State int

const (
	// DoubleSupport is standing on both feet.
	DoubleSupport State = iota
	// TransferToLeft shifts the weight onto the left foot.
	TransferToLeft
	// TransferToRight shifts the weight onto the right foot.
	TransferToRight
	// LeftSupport stands on the left foot while the right one swings.
	LeftSupport
	// RightSupport stands on the right foot while the left one swings.
	RightSupport
)

// States lists every state.
var States = []State{DoubleSupport, TransferToLeft, TransferToRight, LeftSupport, RightSupport}

// TransferTo returns the transfer state toward side.
func TransferTo(side robotside.RobotSide) State {
	if side == robotside.Left {
		return TransferToLeft
	}
	return TransferToRight
}

// SupportOn returns the single support state on side.
func SupportOn(side robotside.RobotSide) State {
	if side == robotside.Left {
		return LeftSupport
	}
	return RightSupport
}

func (s State) String() string {
	switch s {
	case DoubleSupport:
		return "DOUBLE_SUPPORT"
	case TransferToLeft:
		return "TRANSFER_TO_LEFT"
	case TransferToRight:
		return "TRANSFER_TO_RIGHT"
	case LeftSupport:
		return "LEFT_SUPPORT"
	case RightSupport:
		return "RIGHT_SUPPORT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsStanding reports whether s is the plain double support state.
func (s State) IsStanding() bool {
	return s == DoubleSupport
}

// IsTransfer reports whether s is a transfer state.
func (s State) IsTransfer() bool {
	return s == TransferToLeft || s == TransferToRight
}

// IsDoubleSupport reports whether both feet are loaded in s, transfers included.
func (s State) IsDoubleSupport() bool {
	return s == DoubleSupport || s.IsTransfer()
}

// IsSingleSupport reports whether one foot swings in s.
func (s State) IsSingleSupport() bool {
	return s == LeftSupport || s == RightSupport
}

// SupportSide returns the stance foot in single support and the foot receiving the weight in a
// transfer. It is undefined for DoubleSupport.
func (s State) SupportSide() (robotside.RobotSide, bool) {
	switch s {
	case TransferToLeft, LeftSupport:
		return robotside.Left, true
	case TransferToRight, RightSupport:
		return robotside.Right, true
	default:
		return robotside.Left, false
	}
}
