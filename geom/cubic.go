package geom

import "math"

// Cubic represents a cubic Bezier curve with control points P0, P1, P2, P3.
// P0 is the start point, P1 and P2 are control points, P3 is the end point.
type Cubic struct {
	P0, P1, P2, P3 Point
}

// Eval evaluates the curve at parameter t (0 to 1).
func (c Cubic) Eval(t float64) Point {
	mt := 1.0 - t
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := t * t
	t3 := t2 * t

	// (1-t)^3 * P0 + 3(1-t)^2*t * P1 + 3(1-t)*t^2 * P2 + t^3 * P3
	return Point{
		X: mt3*c.P0.X + 3*mt2*t*c.P1.X + 3*mt*t2*c.P2.X + t3*c.P3.X,
		Y: mt3*c.P0.Y + 3*mt2*t*c.P1.Y + 3*mt*t2*c.P2.Y + t3*c.P3.Y,
	}
}

// Deriv returns the first derivative at parameter t.
func (c Cubic) Deriv(t float64) Point {
	mt := 1.0 - t
	d0 := c.P1.Sub(c.P0)
	d1 := c.P2.Sub(c.P1)
	d2 := c.P3.Sub(c.P2)
	return Point{
		X: 3 * (d0.X*mt*mt + 2*d1.X*mt*t + d2.X*t*t),
		Y: 3 * (d0.Y*mt*mt + 2*d1.Y*mt*t + d2.Y*t*t),
	}
}

// Deriv2 returns the second derivative at parameter t.
func (c Cubic) Deriv2(t float64) Point {
	a := c.P2.Sub(c.P1.Mul(2)).Add(c.P0)
	b := c.P3.Sub(c.P2.Mul(2)).Add(c.P1)
	return a.Mul(6 * (1 - t)).Add(b.Mul(6 * t))
}

// Points returns the four control points in order.
func (c Cubic) Points() [4]Point {
	return [4]Point{c.P0, c.P1, c.P2, c.P3}
}

// EvalQuad evaluates the quadratic Bezier (p0, c, p1) at t.
func EvalQuad(p0, c, p1 Point, t float64) Point {
	mt := 1.0 - t
	return Point{
		X: mt*mt*p0.X + 2*mt*t*c.X + t*t*p1.X,
		Y: mt*mt*p0.Y + 2*mt*t*c.Y + t*t*p1.Y,
	}
}

// EvalConic evaluates the rational quadratic (p0, c, p1) with weight w at t.
func EvalConic(p0, c, p1 Point, w, t float64) Point {
	mt := 1.0 - t
	b0 := mt * mt
	b1 := 2 * mt * t * w
	b2 := t * t
	den := b0 + b1 + b2
	return Point{
		X: (b0*p0.X + b1*c.X + b2*p1.X) / den,
		Y: (b0*p0.Y + b1*c.Y + b2*p1.Y) / den,
	}
}

// maxSamples bounds the number of points produced for a single element.
const maxSamples = 256

// sampleCount picks a sample count so that consecutive samples are no more
// than step apart along the control polygon.
func sampleCount(p0, c, p1 Point, step float64) int {
	if step <= 0 {
		step = 1
	}
	n := int(math.Ceil((p0.Distance(c) + c.Distance(p1)) / step))
	return min(max(n, 2), maxSamples)
}

// SampleQuad returns points along the quadratic Bezier (p0, c, p1), including
// both endpoints, spaced roughly step page units apart.
func SampleQuad(p0, c, p1 Point, step float64) []Point {
	n := sampleCount(p0, c, p1, step)
	out := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, EvalQuad(p0, c, p1, float64(i)/float64(n)))
	}
	out[n] = p1
	return out
}

// SampleConic returns points along the conic (p0, c, p1, w), including both
// endpoints, spaced roughly step page units apart.
func SampleConic(p0, c, p1 Point, w, step float64) []Point {
	n := sampleCount(p0, c, p1, step)
	out := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, EvalConic(p0, c, p1, w, float64(i)/float64(n)))
	}
	out[n] = p1
	return out
}
