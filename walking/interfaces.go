package walking

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/biped/capturepoint"
	"go.viam.com/biped/comheight"
	"go.viam.com/biped/contact"
	"go.viam.com/biped/control"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/icp"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// MomentumRateCommand is the centroidal momentum objective of one tick.
type MomentumRateCommand struct {
	// Linear is the desired rate of change of linear momentum in the world frame.
	Linear r3.Vector `json:"linear"`
	// CMP is the commanded centroidal moment pivot that Linear was derived from.
	CMP r2.Point `json:"cmp"`
}

// Solution is what the momentum solver achieved.
type Solution struct {
	CMP                r2.Point           `json:"cmp"`
	CoMAcceleration    r3.Vector          `json:"com_acceleration"`
	JointAccelerations map[string]float64 `json:"joint_accelerations,omitempty"`
}

// MomentumSolver turns the momentum objective and the contact states into joint commands. Solve is
// synchronous: the objectives set before it are the ones solved for.
type MomentumSolver interface {
	SetPlaneContactState(side robotside.RobotSide, state contact.State)
	SetDesiredRateOfChangeOfMomentum(cmd MomentumRateCommand)
	DoPDControl(joints []string, gains control.PIDConfig)
	Solve(ctx context.Context) (Solution, error)
}

// FootManager drives the feet: contact modes, swings and held poses.
type FootManager interface {
	comheight.SingularityEscaper

	SetFlatFootContactState(side robotside.RobotSide)
	SetOnToesContactState(side robotside.RobotSide)
	// RequestSwing swings the foot of step.Side to step.Pose in swingTime seconds.
	RequestSwing(step footstep.Footstep, swingTime float64)
	// RequestMoveStraight moves the foot to pose along a straight line and holds it there.
	RequestMoveStraight(side robotside.RobotSide, pose spatialmath.Pose, duration float64)
	// ReplanSwing changes the landing target of the swing in progress.
	ReplanSwing(step footstep.Footstep, remaining float64)
}

// RobotState is the estimated robot state read once per tick.
type RobotState struct {
	// Time is the controller clock in seconds. It must not decrease.
	Time        float64   `json:"time"`
	CoM         r3.Vector `json:"com"`
	CoMVelocity r3.Vector `json:"com_velocity"`
	// Feet are the sole frame poses.
	Feet robotside.SideDependentList[spatialmath.Pose] `json:"feet"`
	// LegLengthRatios are hip to ankle distances over the extended leg lengths.
	LegLengthRatios robotside.SideDependentList[float64] `json:"leg_length_ratios"`
	// CentersOfPressure and Wrench feed omega0 in wrench mode.
	CentersOfPressure []capturepoint.CenterOfPressure `json:"centers_of_pressure,omitempty"`
	Wrench            capturepoint.Wrench             `json:"wrench"`
}

// Output is the result of one tick.
type Output struct {
	State          State               `json:"state"`
	Time           float64             `json:"time"`
	TimeInState    float64             `json:"time_in_state"`
	CapturePoint   capturepoint.State  `json:"capture_point"`
	Desired        icp.DesiredState    `json:"desired"`
	CommandedCMP   r2.Point            `json:"commanded_cmp"`
	SupportPolygon []r2.Point          `json:"support_polygon"`
	CoMHeight      comheight.Output    `json:"com_height"`
	MomentumRate   MomentumRateCommand `json:"momentum_rate"`
	Solution       Solution            `json:"solution"`
	PushRecovery   string              `json:"push_recovery"`

	Contacts robotside.SideDependentList[contact.State] `json:"contacts"`
}
