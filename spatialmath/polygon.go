package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	geom "github.com/peterstace/simplefeatures/geom"
)

const vertexMergeEpsilon = 1e-9

// Polygon is a convex polygon in the plane. Vertices are stored counter-clockwise. A polygon may
// be degenerate: empty, a single point or a segment.
type Polygon struct {
	vertices []r2.Point
}

// NewConvexHull returns the convex hull of the given points.
func NewConvexHull(points ...r2.Point) Polygon {
	unique := dedupe(points)
	if len(unique) < 3 {
		return Polygon{vertices: unique}
	}

	flat := make([]float64, 0, 2*len(unique))
	for _, pt := range unique {
		flat = append(flat, pt.X, pt.Y)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return Polygon{vertices: farthestPair(unique)}
	}
	seq := ls.ConvexHull().DumpCoordinates()
	hullPoints := make([]r2.Point, 0, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		hullPoints = append(hullPoints, r2.Point{X: xy.X, Y: xy.Y})
	}

	vertices := dedupe(hullPoints)
	if len(vertices) < 3 || math.Abs(signedArea(vertices)) < vertexMergeEpsilon {
		// collinear input: the hull is the segment between the extreme points
		return Polygon{vertices: farthestPair(unique)}
	}
	if signedArea(vertices) < 0 {
		for i, j := 0, len(vertices)-1; i < j; i, j = i+1, j-1 {
			vertices[i], vertices[j] = vertices[j], vertices[i]
		}
	}
	return Polygon{vertices: vertices}
}

func farthestPair(points []r2.Point) []r2.Point {
	if len(points) < 2 {
		return points
	}
	a, b := points[0], points[1]
	best := a.Sub(b).Norm()
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].Sub(points[j]).Norm(); d > best {
				a, b, best = points[i], points[j], d
			}
		}
	}
	return []r2.Point{a, b}
}

// dedupe removes repeated points, including the closing point of a ring.
func dedupe(points []r2.Point) []r2.Point {
	out := make([]r2.Point, 0, len(points))
	for _, pt := range points {
		duplicate := false
		for _, o := range out {
			if pt.Sub(o).Norm() < vertexMergeEpsilon {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, pt)
		}
	}
	return out
}

func signedArea(vertices []r2.Point) float64 {
	area := 0.
	for i := range vertices {
		j := (i + 1) % len(vertices)
		area += vertices[i].Cross(vertices[j])
	}
	return area / 2
}

// Vertices returns a copy of the counter-clockwise vertices.
func (p Polygon) Vertices() []r2.Point {
	out := make([]r2.Point, len(p.vertices))
	copy(out, p.vertices)
	return out
}

// NumVertices returns the number of vertices.
func (p Polygon) NumVertices() int {
	return len(p.vertices)
}

// IsEmpty is true when the polygon has no vertex.
func (p Polygon) IsEmpty() bool {
	return len(p.vertices) == 0
}

// Area returns the enclosed area; degenerate polygons have none.
func (p Polygon) Area() float64 {
	if len(p.vertices) < 3 {
		return 0
	}
	return signedArea(p.vertices)
}

// Centroid returns the area centroid, or the vertex mean for degenerate polygons.
func (p Polygon) Centroid() r2.Point {
	if len(p.vertices) == 0 {
		return r2.Point{}
	}
	area := p.Area()
	if area < vertexMergeEpsilon {
		var sum r2.Point
		for _, v := range p.vertices {
			sum = sum.Add(v)
		}
		return sum.Mul(1 / float64(len(p.vertices)))
	}
	var c r2.Point
	for i := range p.vertices {
		a, b := p.vertices[i], p.vertices[(i+1)%len(p.vertices)]
		cross := a.Cross(b)
		c = c.Add(a.Add(b).Mul(cross))
	}
	return c.Mul(1 / (6 * area))
}

// Transform maps a polygon expressed in pose's local frame into the world plane.
func (p Polygon) Transform(pose Pose) Polygon {
	out := make([]r2.Point, len(p.vertices))
	for i, v := range p.vertices {
		out[i] = pose.Transform(v)
	}
	return Polygon{vertices: out}
}

// Translate moves every vertex by d.
func (p Polygon) Translate(d r2.Point) Polygon {
	out := make([]r2.Point, len(p.vertices))
	for i, v := range p.vertices {
		out[i] = v.Add(d)
	}
	return Polygon{vertices: out}
}

// Combine returns the convex hull of both polygons.
func (p Polygon) Combine(o Polygon) Polygon {
	all := make([]r2.Point, 0, len(p.vertices)+len(o.vertices))
	all = append(all, p.vertices...)
	all = append(all, o.vertices...)
	return NewConvexHull(all...)
}

// SignedDistance returns the distance from pt to the polygon boundary, negative inside. Degenerate
// polygons have no inside; the distance to their points or segment is returned.
func (p Polygon) SignedDistance(pt r2.Point) float64 {
	switch len(p.vertices) {
	case 0:
		return math.Inf(1)
	case 1:
		return pt.Sub(p.vertices[0]).Norm()
	case 2:
		return pt.Sub(ClosestPointSegmentPoint(p.vertices[0], p.vertices[1], pt)).Norm()
	}

	inside := true
	best := math.Inf(1)
	for i := range p.vertices {
		a, b := p.vertices[i], p.vertices[(i+1)%len(p.vertices)]
		if b.Sub(a).Cross(pt.Sub(a)) < 0 {
			inside = false
		}
		if d := pt.Sub(ClosestPointSegmentPoint(a, b, pt)).Norm(); d < best {
			best = d
		}
	}
	if inside {
		return -best
	}
	return best
}

// Contains reports whether pt lies inside or on the boundary.
func (p Polygon) Contains(pt r2.Point) bool {
	return p.SignedDistance(pt) <= vertexMergeEpsilon
}

// ContainsWithMargin reports whether pt lies inside the polygon shrunk by margin.
func (p Polygon) ContainsWithMargin(pt r2.Point, margin float64) bool {
	return p.SignedDistance(pt) <= -margin
}

// Project returns pt if it is inside, otherwise the closest boundary point.
func (p Polygon) Project(pt r2.Point) r2.Point {
	switch len(p.vertices) {
	case 0:
		return pt
	case 1:
		return p.vertices[0]
	}
	if len(p.vertices) > 2 && p.Contains(pt) {
		return pt
	}
	best := p.vertices[0]
	bestDist := math.Inf(1)
	for i := range p.vertices {
		a, b := p.vertices[i], p.vertices[(i+1)%len(p.vertices)]
		c := ClosestPointSegmentPoint(a, b, pt)
		if d := pt.Sub(c).Norm(); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Extent returns the minimum and maximum of the vertices projected on the unit direction dir.
func (p Polygon) Extent(dir r2.Point) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range p.vertices {
		d := v.Dot(dir)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// VerticesWithin returns the vertices whose projection on dir is within tolerance of the maximum
// projection, e.g. the toe line of a sole with dir = forward.
func (p Polygon) VerticesWithin(dir r2.Point, tolerance float64) []r2.Point {
	_, hi := p.Extent(dir)
	var out []r2.Point
	for _, v := range p.vertices {
		if v.Dot(dir) >= hi-tolerance {
			out = append(out, v)
		}
	}
	return out
}

// NewRectangle returns an axis aligned rectangle centered on the origin, typically a sole.
func NewRectangle(length, width float64) Polygon {
	hl, hw := length/2, width/2
	return NewConvexHull(
		r2.Point{X: hl, Y: hw},
		r2.Point{X: -hl, Y: hw},
		r2.Point{X: -hl, Y: -hw},
		r2.Point{X: hl, Y: -hw},
	)
}
