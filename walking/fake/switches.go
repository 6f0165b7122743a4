package fake

import (
	"go.viam.com/biped/contact"
	"go.viam.com/biped/robotside"
)

// FootSwitch reports ground contact from the foot manager kinematics. It only implements
// contact.FootSwitch.
type FootSwitch struct {
	feet *FootManager
	side robotside.RobotSide
}

// HasFootHitGround implements contact.FootSwitch.
func (s *FootSwitch) HasFootHitGround() bool {
	return s.feet.OnGround(s.side)
}

// ToeHeelSwitch adds toe and heel contact to FootSwitch. The fake sole is rigid, so all three agree.
type ToeHeelSwitch struct {
	FootSwitch
}

// HasToeHitGround implements contact.ToeSwitch.
func (s *ToeHeelSwitch) HasToeHitGround() bool {
	return s.HasFootHitGround()
}

// HasHeelHitGround implements contact.HeelSwitch.
func (s *ToeHeelSwitch) HasHeelHitGround() bool {
	return s.HasFootHitGround()
}

// FootSwitches returns switches that only detect flat contact.
func (m *FootManager) FootSwitches() robotside.SideDependentList[contact.FootSwitch] {
	var out robotside.SideDependentList[contact.FootSwitch]
	for _, side := range robotside.Values {
		out.Set(side, &FootSwitch{feet: m, side: side})
	}
	return out
}

// ToeHeelSwitches returns switches that also detect toe and heel contact.
func (m *FootManager) ToeHeelSwitches() robotside.SideDependentList[contact.FootSwitch] {
	var out robotside.SideDependentList[contact.FootSwitch]
	for _, side := range robotside.Values {
		out.Set(side, &ToeHeelSwitch{FootSwitch{feet: m, side: side}})
	}
	return out
}
