package sim

import (
	"github.com/golang/geo/r3"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/spatialmath"
)

// StraightWalk returns count footsteps along +x starting with the left foot. Each footstep
// advances length past the previous one except the last, which brings the feet side by side.
func StraightWalk(cfg Config, count int, length float64) *footstep.StreamProvider {
	sole := cfg.Walking.Sole.Polygon()
	half := cfg.StanceWidth / 2
	seed := footstep.New(robotside.Right, spatialmath.NewPose(r3.Vector{Y: -half}, 0), sole)
	made := 0
	return footstep.NewStreamProvider(seed, func(prev footstep.Footstep) (footstep.Footstep, bool) {
		if made >= count {
			return footstep.Footstep{}, false
		}
		made++
		side := prev.Side.Opposite()
		x := prev.Pose.Point.X
		if made < count {
			x += length
		}
		y := half
		if side == robotside.Right {
			y = -half
		}
		return footstep.New(side, spatialmath.NewPose(r3.Vector{X: x, Y: y}, 0), sole), true
	})
}
