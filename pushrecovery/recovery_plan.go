package pushrecovery

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/biped/icp"
)

// RecoveryPlan is a short ICP plan used instead of the main planner while recovering. It follows
// the pendulum about the stance CMP until touchdown; once the robot is stable again its output is
// blended back into the main plan.
type RecoveryPlan struct {
	cmp       r2.Point
	icp0      r2.Point
	omega0    float64
	t0        float64
	touchdown float64

	blendStart    float64
	blendDuration float64
	blending      bool
}

func newRecoveryPlan(cmp, icp0 r2.Point, omega0, t0, duration, blendDuration float64) *RecoveryPlan {
	return &RecoveryPlan{
		cmp:           cmp,
		icp0:          icp0,
		omega0:        omega0,
		t0:            t0,
		touchdown:     t0 + duration,
		blendDuration: blendDuration,
	}
}

// StartBlending starts handing control back to the main plan at t.
func (p *RecoveryPlan) StartBlending(t float64) {
	if p.blending {
		return
	}
	p.blending = true
	p.blendStart = t
}

// Done reports whether blending finished at t.
func (p *RecoveryPlan) Done(t float64) bool {
	return p.blending && t-p.blendStart >= p.blendDuration
}

// Compute returns the recovery desired state at t, blended with main once blending started.
func (p *RecoveryPlan) Compute(main icp.DesiredState, t float64) icp.DesiredState {
	tau := math.Max(0, math.Min(t, p.touchdown)-p.t0)
	pos, vel := icp.Exponential(p.cmp, p.icp0, p.omega0, tau)
	rec := icp.DesiredState{ICP: pos, ICPVelocity: vel, CMP: p.cmp}
	if !p.blending {
		return rec
	}
	alpha := 1.
	if p.blendDuration > 0 {
		alpha = math.Max(0, math.Min(1, (t-p.blendStart)/p.blendDuration))
	}
	return icp.DesiredState{
		ICP:         lerp(rec.ICP, main.ICP, alpha),
		ICPVelocity: lerp(rec.ICPVelocity, main.ICPVelocity, alpha),
		CMP:         lerp(rec.CMP, main.CMP, alpha),
	}
}

func lerp(a, b r2.Point, alpha float64) r2.Point {
	return a.Mul(1 - alpha).Add(b.Mul(alpha))
}
