package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Pose is a world position with a heading about the world +z axis. Feet, footsteps and soles are
// described with it; roll and pitch of a sole are not tracked.
type Pose struct {
	Point r3.Vector `json:"point"`
	Yaw   float64   `json:"yaw"`
}

// NewPose returns a pose at point with the given heading in radians.
func NewPose(point r3.Vector, yaw float64) Pose {
	return Pose{Point: point, Yaw: yaw}
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{}
}

// XY returns the horizontal position.
func (p Pose) XY() r2.Point {
	return r2.Point{X: p.Point.X, Y: p.Point.Y}
}

// Forward returns the unit heading direction in the horizontal plane.
func (p Pose) Forward() r2.Point {
	return r2.Point{X: math.Cos(p.Yaw), Y: math.Sin(p.Yaw)}
}

// Left returns the unit direction 90 degrees counter-clockwise from Forward.
func (p Pose) Left() r2.Point {
	return p.Forward().Ortho()
}

// Transform maps a point expressed in the pose's local (sole) frame to the world plane.
func (p Pose) Transform(local r2.Point) r2.Point {
	c, s := math.Cos(p.Yaw), math.Sin(p.Yaw)
	return r2.Point{
		X: p.Point.X + c*local.X - s*local.Y,
		Y: p.Point.Y + s*local.X + c*local.Y,
	}
}

// InverseTransform maps a world point into the pose's local frame.
func (p Pose) InverseTransform(world r2.Point) r2.Point {
	c, s := math.Cos(p.Yaw), math.Sin(p.Yaw)
	d := world.Sub(p.XY())
	return r2.Point{X: c*d.X + s*d.Y, Y: -s*d.X + c*d.Y}
}

// Translate returns the pose moved by d.
func (p Pose) Translate(d r3.Vector) Pose {
	return Pose{Point: p.Point.Add(d), Yaw: p.Yaw}
}

// Compose returns local, expressed in the frame of p, as a world pose.
func (p Pose) Compose(local Pose) Pose {
	xy := p.Transform(local.XY())
	return Pose{
		Point: r3.Vector{X: xy.X, Y: xy.Y, Z: p.Point.Z + local.Point.Z},
		Yaw:   math.Remainder(p.Yaw+local.Yaw, 2*math.Pi),
	}
}

// AlmostEqual compares positions and headings within epsilon.
func (p Pose) AlmostEqual(o Pose, epsilon float64) bool {
	return p.Point.Sub(o.Point).Norm() <= epsilon && math.Abs(AngleDiff(p.Yaw, o.Yaw)) <= epsilon
}

func (p Pose) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Yaw:%.3f}", p.Point.X, p.Point.Y, p.Point.Z, p.Yaw)
}

// AngleDiff returns a-b wrapped to (-pi, pi].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// Horizontal drops the z component of a vector.
func Horizontal(v r3.Vector) r2.Point {
	return r2.Point{X: v.X, Y: v.Y}
}

// IsFinite reports whether both coordinates are finite numbers.
func IsFinite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// ClosestPointSegmentPoint returns the closest point on segment ab to pt.
func ClosestPointSegmentPoint(a, b, pt r2.Point) r2.Point {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return a
	}
	t := pt.Sub(a).Dot(ab) / lenSq
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return a.Add(ab.Mul(t))
}
