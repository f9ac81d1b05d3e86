package curve

import (
	"math"

	"github.com/gogpu/convert/geom"
)

const (
	// tangentNeighbors is the number of samples on each side used for the
	// least-squares tangent estimate.
	tangentNeighbors = 3

	// maxIterations bounds Newton-Raphson reparameterization per segment.
	maxIterations = 4

	// reparamFactor: reparameterize only when the error is within this
	// multiple of the tolerance, otherwise split immediately.
	reparamFactor = 4

	// collinearEps is the relative cross-product bound for collinearity.
	collinearEps = 1e-12
)

// fit returns the cubic segments approximating src within tol.
func fit(src []geom.Point, tol float64) []geom.Cubic {
	pts := dedupe(src)
	first, last := 0, len(pts)-1

	if last == 0 {
		p := pts[0]
		return []geom.Cubic{{P0: p, P1: p, P2: p, P3: p}}
	}

	if seg, ok := fitCollinear(pts, tol); ok {
		return []geom.Cubic{seg}
	}

	var out []geom.Cubic
	t1 := endTangent(pts, first, last, +1)
	t2 := endTangent(pts, last, first, -1)
	fitRange(pts, first, last, t1, t2, tol, &out)
	return out
}

// dedupe drops consecutive duplicate samples; zero-length chords break
// chord-length parameterization.
func dedupe(src []geom.Point) []geom.Point {
	out := make([]geom.Point, 0, len(src))
	for i, p := range src {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// fitCollinear handles samples that all lie exactly on one line. The
// result is a single cubic whose control points lie on that line. Samples
// that advance monotonically from the first to the last get the straight
// cubic with interior control points at thirds; samples that double back
// get a one-dimensional least-squares fit along the line, so the cubic
// overshoots and returns the way the samples do.
func fitCollinear(pts []geom.Point, tol float64) (geom.Cubic, bool) {
	p0, p3 := pts[0], pts[len(pts)-1]

	// The sample farthest from p0 fixes the line.
	var far float64
	var u geom.Point
	for _, p := range pts[1:] {
		if d := p.Distance(p0); d > far {
			far, u = d, p.Sub(p0)
		}
	}
	if far == 0 {
		return geom.Cubic{}, false
	}
	u = u.Mul(1 / far)

	s := make([]float64, len(pts))
	monotonic := true
	for i, p := range pts {
		v := p.Sub(p0)
		if math.Abs(u.Cross(v)) > collinearEps*math.Max(v.Length(), 1) {
			return geom.Cubic{}, false
		}
		s[i] = u.Dot(v)
		if i > 0 && s[i] < s[i-1] {
			monotonic = false
		}
	}

	if monotonic && p3.Distance(p0) == far {
		dir := p3.Sub(p0)
		return geom.Cubic{
			P0: p0,
			P1: p0.Add(dir.Mul(1.0 / 3.0)),
			P2: p0.Add(dir.Mul(2.0 / 3.0)),
			P3: p3,
		}, true
	}

	a1, a2 := fitLine(s, tol)
	return geom.Cubic{
		P0: p0,
		P1: p0.Add(u.Mul(a1)),
		P2: p0.Add(u.Mul(a2)),
		P3: p3,
	}, true
}

// fitLine fits the interior coefficients of a one-dimensional cubic
// x(t) = s[0]B0 + a1 B1 + a2 B2 + s[n-1]B3 to the positions s, starting
// from parameters proportional to the distance travelled along the line.
// It returns the best coefficients found within maxIterations rounds of
// Newton-Raphson reparameterization.
func fitLine(s []float64, tol float64) (a1, a2 float64) {
	n := len(s)
	a0, a3 := s[0], s[n-1]

	t := make([]float64, n)
	var travelled float64
	for i := 1; i < n; i++ {
		travelled += math.Abs(s[i] - s[i-1])
		t[i] = travelled
	}
	for i := range t {
		t[i] /= travelled
	}

	best := math.Inf(1)
	for iter := 0; iter <= maxIterations; iter++ {
		c1, c2 := solveLine(s, t, a0, a3)
		var worst float64
		for i := range s {
			worst = math.Max(worst, math.Abs(bezier1(a0, c1, c2, a3, t[i])-s[i]))
		}
		if worst < best {
			best, a1, a2 = worst, c1, c2
		}
		if worst <= tol {
			break
		}
		for i := range t {
			t[i] = newton1(a0, c1, c2, a3, t[i], s[i])
		}
	}
	return a1, a2
}

// solveLine solves the 2x2 normal equations for the interior coefficients.
// With too few interior samples to fix both, the two are tied together.
func solveLine(s, t []float64, a0, a3 float64) (a1, a2 float64) {
	var m11, m12, m22, r1, r2, tied, rt float64
	for i := range s {
		b0, b1, b2, b3 := bernstein(t[i])
		r := s[i] - a0*b0 - a3*b3
		m11 += b1 * b1
		m12 += b1 * b2
		m22 += b2 * b2
		r1 += b1 * r
		r2 += b2 * r
		tied += (b1 + b2) * (b1 + b2)
		rt += (b1 + b2) * r
	}
	if det := m11*m22 - m12*m12; det > 1e-12*m11*m22 {
		return (r1*m22 - r2*m12) / det, (m11*r2 - m12*r1) / det
	}
	if tied > 0 {
		c := rt / tied
		return c, c
	}
	return a0 + (a3-a0)/3, a0 + 2*(a3-a0)/3
}

func bernstein(t float64) (b0, b1, b2, b3 float64) {
	mt := 1 - t
	return mt * mt * mt, 3 * t * mt * mt, 3 * t * t * mt, t * t * t
}

func bezier1(a0, a1, a2, a3, t float64) float64 {
	b0, b1, b2, b3 := bernstein(t)
	return a0*b0 + a1*b1 + a2*b2 + a3*b3
}

// newton1 moves t towards the parameter whose position is nearest to s.
func newton1(a0, a1, a2, a3, t, s float64) float64 {
	mt := 1 - t
	f := bezier1(a0, a1, a2, a3, t) - s
	d1 := 3 * ((a1-a0)*mt*mt + 2*(a2-a1)*mt*t + (a3-a2)*t*t)
	d2 := 6 * ((a2-2*a1+a0)*mt + (a3-2*a2+a1)*t)
	den := d1*d1 + f*d2
	if den == 0 {
		return t
	}
	return math.Min(1, math.Max(0, t-f*d1/den))
}

// endTangent estimates the unit tangent at pts[from], pointing towards
// pts[to]. step is +1 to walk forward and -1 to walk backward. The
// direction d minimizes sum |p_i - p_from - s_i d|^2 where s_i is the chord
// length from p_from to p_i, giving d = sum(s_i (p_i - p_from)) / sum(s_i^2).
func endTangent(pts []geom.Point, from, to, step int) geom.Point {
	origin := pts[from]
	var num geom.Point
	var den, s float64
	prev := origin
	for k, i := 1, from+step; k <= tangentNeighbors; k, i = k+1, i+step {
		if (step > 0 && i > to) || (step < 0 && i < to) {
			break
		}
		s += pts[i].Distance(prev)
		prev = pts[i]
		num = num.Add(pts[i].Sub(origin).Mul(s))
		den += s * s
	}
	if den > 0 {
		if t := num.Mul(1 / den).Normalize(); t != (geom.Point{}) {
			return t
		}
	}
	return pts[from+step].Sub(origin).Normalize()
}

// centerTangent estimates the unit tangent at pts[c] in the direction of
// travel, fitting a line through pts[c] to its neighbours on both sides with
// signed chord-length parameters.
func centerTangent(pts []geom.Point, c, first, last int) geom.Point {
	origin := pts[c]
	var num geom.Point
	var den float64

	s := 0.0
	prev := origin
	for i := c + 1; i <= last && i <= c+tangentNeighbors; i++ {
		s += pts[i].Distance(prev)
		prev = pts[i]
		num = num.Add(pts[i].Sub(origin).Mul(s))
		den += s * s
	}
	s = 0
	prev = origin
	for i := c - 1; i >= first && i >= c-tangentNeighbors; i-- {
		s -= pts[i].Distance(prev)
		prev = pts[i]
		num = num.Add(pts[i].Sub(origin).Mul(s))
		den += s * s
	}
	if den > 0 {
		if t := num.Mul(1 / den).Normalize(); t != (geom.Point{}) {
			return t
		}
	}
	if t := pts[c+1].Sub(pts[c-1]).Normalize(); t != (geom.Point{}) {
		return t
	}
	return pts[c+1].Sub(origin).Normalize()
}

// fitRange fits pts[first..last] with end tangents t1 (at first, pointing
// forward) and t2 (at last, pointing backward), appending to out.
func fitRange(pts []geom.Point, first, last int, t1, t2 geom.Point, tol float64, out *[]geom.Cubic) {
	p0, p3 := pts[first], pts[last]

	if last-first == 1 {
		dist := p0.Distance(p3) / 3
		*out = append(*out, geom.Cubic{
			P0: p0,
			P1: p0.Add(t1.Mul(dist)),
			P2: p3.Add(t2.Mul(dist)),
			P3: p3,
		})
		return
	}

	u := chordLengthParameterize(pts, first, last)
	bez := generateBezier(pts, first, last, u, t1, t2)
	maxErr, split := maxDeviation(pts, first, last, bez, u)
	if maxErr <= tol {
		*out = append(*out, bez)
		return
	}

	if maxErr <= tol*reparamFactor {
		for range maxIterations {
			u = reparameterize(pts, first, bez, u)
			bez = generateBezier(pts, first, last, u, t1, t2)
			maxErr, split = maxDeviation(pts, first, last, bez, u)
			if maxErr <= tol {
				*out = append(*out, bez)
				return
			}
		}
	}

	if split <= first {
		split = first + 1
	} else if split >= last {
		split = last - 1
	}
	tc := centerTangent(pts, split, first, last)
	fitRange(pts, first, split, t1, tc.Mul(-1), tol, out)
	fitRange(pts, split, last, tc, t2, tol, out)
}

// chordLengthParameterize assigns each sample a parameter in [0,1]
// proportional to the cumulative chord length.
func chordLengthParameterize(pts []geom.Point, first, last int) []float64 {
	u := make([]float64, last-first+1)
	for i := first + 1; i <= last; i++ {
		u[i-first] = u[i-first-1] + pts[i].Distance(pts[i-1])
	}
	total := u[len(u)-1]
	for i := range u {
		u[i] /= total
	}
	return u
}

// Bernstein basis functions of degree 3.
func b0(t float64) float64 { mt := 1 - t; return mt * mt * mt }
func b1(t float64) float64 { mt := 1 - t; return 3 * t * mt * mt }
func b2(t float64) float64 { mt := 1 - t; return 3 * t * t * mt }
func b3(t float64) float64 { return t * t * t }

// generateBezier solves for the control-point distances along t1 and t2 that
// minimize the squared error at the parameterized samples.
func generateBezier(pts []geom.Point, first, last int, u []float64, t1, t2 geom.Point) geom.Cubic {
	p0, p3 := pts[first], pts[last]

	var c00, c01, c11, x0, x1 float64
	for i, t := range u {
		a0 := t1.Mul(b1(t))
		a1 := t2.Mul(b2(t))
		c00 += a0.Dot(a0)
		c01 += a0.Dot(a1)
		c11 += a1.Dot(a1)

		base := p0.Mul(b0(t) + b1(t)).Add(p3.Mul(b2(t) + b3(t)))
		tmp := pts[first+i].Sub(base)
		x0 += a0.Dot(tmp)
		x1 += a1.Dot(tmp)
	}

	det := c00*c11 - c01*c01
	var alphaL, alphaR float64
	if math.Abs(det) > 1e-12*c00*c11 {
		alphaL = (x0*c11 - x1*c01) / det
		alphaR = (c00*x1 - c01*x0) / det
	}

	// Non-positive or vanishing magnitudes fall back to the Wu/Barsky
	// heuristic of one third of the chord.
	segLength := p0.Distance(p3)
	eps := 1e-6 * segLength
	if alphaL < eps || alphaR < eps {
		alphaL = segLength / 3
		alphaR = alphaL
	}

	return geom.Cubic{
		P0: p0,
		P1: p0.Add(t1.Mul(alphaL)),
		P2: p3.Add(t2.Mul(alphaR)),
		P3: p3,
	}
}

// reparameterize improves each parameter with one Newton-Raphson step on
// (Q(u)-p)·Q'(u) = 0.
func reparameterize(pts []geom.Point, first int, bez geom.Cubic, u []float64) []float64 {
	out := make([]float64, len(u))
	for i, t := range u {
		out[i] = newtonStep(bez, pts[first+i], t)
	}
	return out
}

func newtonStep(bez geom.Cubic, p geom.Point, t float64) float64 {
	d := bez.Eval(t).Sub(p)
	q1 := bez.Deriv(t)
	q2 := bez.Deriv2(t)
	num := d.Dot(q1)
	den := q1.Dot(q1) + d.Dot(q2)
	if den == 0 {
		return t
	}
	return math.Min(1, math.Max(0, t-num/den))
}

// maxDeviation returns the largest distance between a sample and the curve,
// and the index of that sample. The distance is measured to the nearest
// curve point found by refining the sample's parameter, so it bounds the
// perpendicular deviation from above.
func maxDeviation(pts []geom.Point, first, last int, bez geom.Cubic, u []float64) (float64, int) {
	maxDist := 0.0
	split := (first + last) / 2
	for i := first + 1; i < last; i++ {
		p := pts[i]
		t := u[i-first]
		for range 3 {
			t = newtonStep(bez, p, t)
		}
		d := math.Min(bez.Eval(t).Distance(p), bez.Eval(u[i-first]).Distance(p))
		if d > maxDist {
			maxDist = d
			split = i
		}
	}
	return maxDist, split
}
