// Package robotside defines the left/right discriminator every per-leg quantity is indexed by.
package robotside

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// RobotSide is either Left or Right.
type RobotSide int

const (
	// Left side of the robot.
	Left RobotSide = iota
	// Right side of the robot.
	Right
)

// Values lists both sides in a stable order.
var Values = [2]RobotSide{Left, Right}

// Opposite returns the other side.
func (s RobotSide) Opposite() RobotSide {
	if s == Left {
		return Right
	}
	return Left
}

// Sign is +1 for Left and -1 for Right, matching a y-left body frame.
func (s RobotSide) Sign() float64 {
	if s == Left {
		return 1
	}
	return -1
}

func (s RobotSide) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// FromString parses "left" or "right", case-insensitive.
func FromString(inp string) (RobotSide, error) {
	switch strings.ToLower(inp) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return Left, errors.Errorf("unknown robot side %q", inp)
}

// MarshalJSON encodes the side as its name.
func (s RobotSide) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a side name.
func (s *RobotSide) UnmarshalJSON(data []byte) (err error) {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s, err = FromString(str)
	return
}

// SideDependentList holds one value per side.
type SideDependentList[T any] [2]T

// NewSideDependentList returns a list holding left and right.
func NewSideDependentList[T any](left, right T) SideDependentList[T] {
	return SideDependentList[T]{left, right}
}

// Get returns the value for a side.
func (l SideDependentList[T]) Get(side RobotSide) T {
	return l[side]
}

// Set replaces the value for a side.
func (l *SideDependentList[T]) Set(side RobotSide, v T) {
	l[side] = v
}
