package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPoseTransforms(t *testing.T) {
	pose := NewPose(r3.Vector{X: 1, Y: 2, Z: 0.1}, math.Pi/2)
	world := pose.Transform(r2.Point{X: 1, Y: 0})
	test.That(t, world.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, world.Y, test.ShouldAlmostEqual, 3.0)
	back := pose.InverseTransform(world)
	test.That(t, back.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0.0)

	test.That(t, AngleDiff(math.Pi-0.1, -math.Pi+0.1), test.ShouldAlmostEqual, -0.2)
	test.That(t, pose.AlmostEqual(pose.Translate(r3.Vector{Z: 1e-9}), 1e-6), test.ShouldBeTrue)
	test.That(t, IsFinite(r2.Point{X: math.NaN()}), test.ShouldBeFalse)
}

func TestPoseCompose(t *testing.T) {
	base := NewPose(r3.Vector{X: 1, Y: 1, Z: 0.1}, math.Pi/2)
	got := base.Compose(NewPose(r3.Vector{X: 0.3, Y: -0.2, Z: 0.05}, math.Pi/2))
	test.That(t, got.Point.X, test.ShouldAlmostEqual, 1.2)
	test.That(t, got.Point.Y, test.ShouldAlmostEqual, 1.3)
	test.That(t, got.Point.Z, test.ShouldAlmostEqual, 0.15)
	test.That(t, got.Yaw, test.ShouldAlmostEqual, math.Pi)
}

func TestPoseDirections(t *testing.T) {
	pose := NewPose(r3.Vector{}, math.Pi/4)
	fwd, left := pose.Forward(), pose.Left()
	test.That(t, fwd.Norm(), test.ShouldAlmostEqual, 1.0)
	test.That(t, fwd.Dot(left), test.ShouldAlmostEqual, 0.0)
	test.That(t, fwd.Cross(left), test.ShouldAlmostEqual, 1.0)
	test.That(t, NewZeroPose().XY(), test.ShouldResemble, r2.Point{})
}

func TestClosestPointSegmentPoint(t *testing.T) {
	a, b := r2.Point{}, r2.Point{X: 2}
	for _, tc := range []struct {
		pt   r2.Point
		want r2.Point
	}{
		{r2.Point{X: -1, Y: 1}, a},
		{r2.Point{X: 1, Y: 1}, r2.Point{X: 1}},
		{r2.Point{X: 3, Y: -1}, b},
	} {
		got := ClosestPointSegmentPoint(a, b, tc.pt)
		test.That(t, got.X, test.ShouldAlmostEqual, tc.want.X)
		test.That(t, got.Y, test.ShouldAlmostEqual, tc.want.Y)
	}
	test.That(t, ClosestPointSegmentPoint(a, a, b), test.ShouldResemble, a)
}
