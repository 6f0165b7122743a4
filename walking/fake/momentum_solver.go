// Package fake contains in-memory collaborators of the walking controller for tests and
// simulation.
package fake

import (
	"context"

	"go.viam.com/biped/contact"
	"go.viam.com/biped/control"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/walking"
)

// MomentumSolver achieves exactly the commanded momentum rate.
type MomentumSolver struct {
	// Mass and Gravity convert the momentum rate into a CoM acceleration. Zero mass leaves the
	// acceleration unset.
	Mass    float64
	Gravity float64
	// SolveFunc, when set, replaces the default solution.
	SolveFunc func(ctx context.Context, cmd walking.MomentumRateCommand) (walking.Solution, error)

	Contacts   robotside.SideDependentList[contact.State]
	Command    walking.MomentumRateCommand
	HeldJoints []string
	HeldGains  control.PIDConfig
	Solves     int
	// ContactUpdates counts SetPlaneContactState calls.
	ContactUpdates int
}

// SetPlaneContactState implements walking.MomentumSolver.
func (s *MomentumSolver) SetPlaneContactState(side robotside.RobotSide, state contact.State) {
	s.Contacts.Set(side, state.Copy())
	s.ContactUpdates++
}

// SetDesiredRateOfChangeOfMomentum implements walking.MomentumSolver.
func (s *MomentumSolver) SetDesiredRateOfChangeOfMomentum(cmd walking.MomentumRateCommand) {
	s.Command = cmd
}

// DoPDControl implements walking.MomentumSolver.
func (s *MomentumSolver) DoPDControl(joints []string, gains control.PIDConfig) {
	s.HeldJoints = append(s.HeldJoints[:0], joints...)
	s.HeldGains = gains
}

// Solve implements walking.MomentumSolver.
func (s *MomentumSolver) Solve(ctx context.Context) (walking.Solution, error) {
	s.Solves++
	if s.SolveFunc != nil {
		return s.SolveFunc(ctx, s.Command)
	}
	sol := walking.Solution{CMP: s.Command.CMP}
	if s.Mass > 0 {
		sol.CoMAcceleration = s.Command.Linear.Mul(1 / s.Mass)
		sol.CoMAcceleration.Z -= s.Gravity
	}
	return sol, nil
}
