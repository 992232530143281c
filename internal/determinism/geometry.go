package determinism

// Vec2 is a two-dimensional vector shared by every geometry predicate
// and the fixed-step integrator. All arithmetic here uses float64 in a
// fixed order of operations so that results are bit-identical across
// peers running the same Go runtime semantics: Go defines float64 as
// IEEE-754 binary64 with no implicit extended precision, so a fixed
// expression order is sufficient for cross-platform determinism
// without resorting to integer fixed-point.
type Vec2 struct {
	X, Y float64
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Dot returns the dot product of v and other.
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Rect is an axis-aligned rectangle given by its center and
// half-extents.
type Rect struct {
	Center Vec2
	HalfW  float64
	HalfH  float64
}

// Circle is a circle given by its center and radius.
type Circle struct {
	Center Vec2
	Radius float64
}

// RectOverlap reports whether two axis-aligned rectangles overlap,
// including edge-touching as overlap.
func RectOverlap(a, b Rect) bool {
	dx := absf(a.Center.X - b.Center.X)
	dy := absf(a.Center.Y - b.Center.Y)
	return dx <= a.HalfW+b.HalfW && dy <= a.HalfH+b.HalfH
}

// CircleOverlap reports whether two circles overlap.
func CircleOverlap(a, b Circle) bool {
	dx := a.Center.X - b.Center.X
	dy := a.Center.Y - b.Center.Y
	distSq := dx*dx + dy*dy
	radiusSum := a.Radius + b.Radius
	return distSq <= radiusSum*radiusSum
}

// CircleRectOverlap reports whether a circle overlaps an axis-aligned
// rectangle, by clamping the circle's center into the rectangle and
// comparing the clamped distance to the radius.
func CircleRectOverlap(c Circle, r Rect) bool {
	minX := r.Center.X - r.HalfW
	maxX := r.Center.X + r.HalfW
	minY := r.Center.Y - r.HalfH
	maxY := r.Center.Y + r.HalfH

	clampedX := clampf(c.Center.X, minX, maxX)
	clampedY := clampf(c.Center.Y, minY, maxY)

	dx := c.Center.X - clampedX
	dy := c.Center.Y - clampedY
	distSq := dx*dx + dy*dy

	return distSq <= c.Radius*c.Radius
}

// Reflect reflects vector v about the unit normal n: v - 2*(v·n)*n.
// n must already be normalized; this function does not normalize it.
func Reflect(v, n Vec2) Vec2 {
	d := 2 * v.Dot(n)
	return Vec2{X: v.X - d*n.X, Y: v.Y - d*n.Y}
}

// Rotate rotates point p about center by angle radians, counterclockwise.
func Rotate(p, center Vec2, angle float64) Vec2 {
	sin, cos := sincos(angle)
	dx := p.X - center.X
	dy := p.Y - center.Y
	return Vec2{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
