package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/convert/geom"
)

// -------------------------------------------------------------------
// Approximator protocol
// -------------------------------------------------------------------

func TestApproximator_DiagonalLine(t *testing.T) {
	a := New()
	for _, p := range [][2]float64{{0, 0}, {1, 1}, {2, 2}} {
		if err := a.AddSourcePoint(p[0], p[1]); err != nil {
			t.Fatalf("AddSourcePoint(%v) error = %v", p, err)
		}
	}
	if got := a.NumSourcePoints(); got != 3 {
		t.Errorf("NumSourcePoints() = %d, want 3", got)
	}

	n, err := a.NumCubicPoints()
	if err != nil {
		t.Fatalf("NumCubicPoints() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("NumCubicPoints() = %d, want 4", n)
	}
	for i := range n {
		x, err := a.CubicX(i)
		if err != nil {
			t.Fatalf("CubicX(%d) error = %v", i, err)
		}
		y, err := a.CubicY(i)
		if err != nil {
			t.Fatalf("CubicY(%d) error = %v", i, err)
		}
		if x != y {
			t.Errorf("control point %d = (%v, %v), want x == y", i, x, y)
		}
	}
}

func TestApproximator_CollinearSingleSegment(t *testing.T) {
	tests := []struct {
		name string
		pts  []geom.Point
	}{
		{"horizontal", []geom.Point{geom.Pt(0, 5), geom.Pt(3, 5), geom.Pt(4, 5), geom.Pt(10, 5)}},
		{"vertical", []geom.Point{geom.Pt(2, 0), geom.Pt(2, 1), geom.Pt(2, 7)}},
		{"sloped", []geom.Point{geom.Pt(0, 1), geom.Pt(1, 3), geom.Pt(2, 5), geom.Pt(5, 11), geom.Pt(10, 21)}},
		{"two points", []geom.Point{geom.Pt(-4, 4), geom.Pt(8, -8)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Approximate(tt.pts)
			if err != nil {
				t.Fatalf("Approximate() error = %v", err)
			}
			if len(segs) != 1 {
				t.Fatalf("len(segments) = %d, want 1", len(segs))
			}
			p0, p1 := tt.pts[0], tt.pts[len(tt.pts)-1]
			dir := p1.Sub(p0)
			for i, c := range segs[0].Points() {
				if cross := dir.Cross(c.Sub(p0)); math.Abs(cross) > 1e-9 {
					t.Errorf("control point %d = %v is off the line (cross = %v)", i, c, cross)
				}
			}
			if segs[0].P0 != p0 || segs[0].P3 != p1 {
				t.Errorf("endpoints = %v, %v, want %v, %v", segs[0].P0, segs[0].P3, p0, p1)
			}
		})
	}
}

// Collinear samples that reverse direction still make one cubic: the
// control points stay on the line and the curve passes every sample.
func TestApproximator_CollinearDoublingBack(t *testing.T) {
	tests := []struct {
		name string
		pts  []geom.Point
	}{
		{"out past the end", []geom.Point{geom.Pt(0, 0), geom.Pt(2, 2), geom.Pt(1, 1)}},
		{"there and back", []geom.Point{geom.Pt(0, 0), geom.Pt(1, 1), geom.Pt(0, 0)}},
		{"behind the start", []geom.Point{geom.Pt(5, 0), geom.Pt(2, 0), geom.Pt(8, 0)}},
		{"two turns", []geom.Point{geom.Pt(0, 0), geom.Pt(3, 0), geom.Pt(1, 0), geom.Pt(2, 0)}},
		{"vertical", []geom.Point{geom.Pt(4, 0), geom.Pt(4, 10), geom.Pt(4, 6), geom.Pt(4, 9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			for _, p := range tt.pts {
				if err := a.AddSourcePoint(p.X, p.Y); err != nil {
					t.Fatal(err)
				}
			}
			n, err := a.NumCubicPoints()
			if err != nil {
				t.Fatalf("NumCubicPoints() error = %v", err)
			}
			if n != 4 {
				t.Fatalf("NumCubicPoints() = %d, want 4", n)
			}

			segs, _ := a.Segments()
			c := segs[0]
			first, last := tt.pts[0], tt.pts[len(tt.pts)-1]
			if c.P0 != first || c.P3 != last {
				t.Errorf("endpoints = %v, %v, want %v, %v", c.P0, c.P3, first, last)
			}
			dir := tt.pts[1].Sub(first)
			for i, p := range c.Points() {
				if cross := dir.Cross(p.Sub(first)); math.Abs(cross) > 1e-9 {
					t.Errorf("control point %d = %v is off the line (cross = %v)", i, p, cross)
				}
			}
			for _, p := range tt.pts {
				if d := distanceToSegments(p, segs); d > Tolerance {
					t.Errorf("sample %v is %v from the curve, want <= %v", p, d, Tolerance)
				}
			}
		})
	}
}

func TestApproximator_SinglePoint(t *testing.T) {
	a := New()
	_ = a.AddSourcePoint(3, 4)
	_ = a.AddSourcePoint(3, 4)

	n, err := a.NumCubicPoints()
	if err != nil {
		t.Fatalf("NumCubicPoints() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("NumCubicPoints() = %d, want 4", n)
	}
	for i := range n {
		x, _ := a.CubicX(i)
		y, _ := a.CubicY(i)
		if x != 3 || y != 4 {
			t.Errorf("control point %d = (%v, %v), want (3, 4)", i, x, y)
		}
	}
}

func TestApproximator_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		a := New()
		if _, err := a.NumCubicPoints(); !errors.Is(err, ErrEmptyCurve) {
			t.Errorf("NumCubicPoints() error = %v, want ErrEmptyCurve", err)
		}
		if _, err := a.CubicX(0); !errors.Is(err, ErrEmptyCurve) {
			t.Errorf("CubicX(0) error = %v, want ErrEmptyCurve", err)
		}
		// A failed query does not finalize.
		if err := a.AddSourcePoint(1, 1); err != nil {
			t.Errorf("AddSourcePoint() after empty query error = %v", err)
		}
	})

	t.Run("add after finalize", func(t *testing.T) {
		a := New()
		_ = a.AddSourcePoint(0, 0)
		_ = a.AddSourcePoint(1, 0)
		if _, err := a.NumCubicPoints(); err != nil {
			t.Fatalf("NumCubicPoints() error = %v", err)
		}
		if !a.Finalized() {
			t.Error("Finalized() = false after query")
		}
		if err := a.AddSourcePoint(2, 0); !errors.Is(err, ErrInvalidState) {
			t.Errorf("AddSourcePoint() error = %v, want ErrInvalidState", err)
		}
		if got := a.NumSourcePoints(); got != 2 {
			t.Errorf("NumSourcePoints() = %d, want 2", got)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		a := New()
		_ = a.AddSourcePoint(0, 0)
		_ = a.AddSourcePoint(1, 0)
		for _, i := range []int{-1, 4, 100} {
			if _, err := a.CubicX(i); !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("CubicX(%d) error = %v, want ErrIndexOutOfRange", i, err)
			}
			if _, err := a.CubicY(i); !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("CubicY(%d) error = %v, want ErrIndexOutOfRange", i, err)
			}
		}
	})
}

// -------------------------------------------------------------------
// Fit quality
// -------------------------------------------------------------------

// distanceToSegments returns the distance from p to the closest point of a
// dense sampling of segs.
func distanceToSegments(p geom.Point, segs []geom.Cubic) float64 {
	const steps = 4000
	best := math.Inf(1)
	for _, s := range segs {
		for i := 0; i <= steps; i++ {
			if d := s.Eval(float64(i) / steps).Distance(p); d < best {
				best = d
			}
		}
	}
	return best
}

func checkFit(t *testing.T, pts []geom.Point, segs []geom.Cubic) {
	t.Helper()
	for i := 1; i < len(segs); i++ {
		if segs[i-1].P3 != segs[i].P0 {
			t.Errorf("segment %d ends at %v, segment %d starts at %v", i-1, segs[i-1].P3, i, segs[i].P0)
		}
	}
	if segs[0].P0 != pts[0] {
		t.Errorf("first control point = %v, want %v", segs[0].P0, pts[0])
	}
	if last := segs[len(segs)-1].P3; last != pts[len(pts)-1] {
		t.Errorf("last control point = %v, want %v", last, pts[len(pts)-1])
	}
	for i, p := range pts {
		if d := distanceToSegments(p, segs); d > Tolerance+0.05 {
			t.Errorf("sample %d %v is %.3f from the fit, want <= %v", i, p, d, Tolerance)
		}
	}
}

func TestApproximate_CircleArc(t *testing.T) {
	const r = 100.0
	var pts []geom.Point
	for i := 0; i <= 60; i++ {
		a := math.Pi / 2 * float64(i) / 60
		pts = append(pts, geom.Pt(r*math.Cos(a), r*math.Sin(a)))
	}

	segs, err := Approximate(pts)
	if err != nil {
		t.Fatalf("Approximate() error = %v", err)
	}
	if len(segs) > 4 {
		t.Errorf("len(segments) = %d, want a compact fit (<= 4)", len(segs))
	}
	checkFit(t, pts, segs)
}

func TestApproximate_Wave(t *testing.T) {
	var pts []geom.Point
	for i := 0; i <= 200; i++ {
		x := float64(i)
		pts = append(pts, geom.Pt(x, 20*math.Sin(x/15)))
	}

	segs, err := Approximate(pts)
	if err != nil {
		t.Fatalf("Approximate() error = %v", err)
	}
	if len(segs) < 2 {
		t.Errorf("len(segments) = %d, want several for a multi-lobe wave", len(segs))
	}
	checkFit(t, pts, segs)
}

func TestApproximate_Corner(t *testing.T) {
	pts := []geom.Point{
		geom.Pt(0, 0), geom.Pt(5, 0), geom.Pt(10, 0),
		geom.Pt(10, 5), geom.Pt(10, 10),
	}
	segs, err := Approximate(pts)
	if err != nil {
		t.Fatalf("Approximate() error = %v", err)
	}
	checkFit(t, pts, segs)
}

// -------------------------------------------------------------------
// ToCubicPath
// -------------------------------------------------------------------

func TestToCubicPath_Quad(t *testing.T) {
	p := geom.NewPath()
	p.MoveTo(0, 0)
	p.QuadTo(50, 100, 100, 0)
	p.LineTo(100, 50)
	p.Close()

	out, err := ToCubicPath(p)
	if err != nil {
		t.Fatalf("ToCubicPath() error = %v", err)
	}
	if !out.IsCubicOnly() {
		t.Fatal("IsCubicOnly() = false")
	}
	if out.Len() != p.Len() {
		t.Fatalf("Len() = %d, want %d", out.Len(), p.Len())
	}

	c, ok := out.Elements()[1].(geom.CubicTo)
	if !ok {
		t.Fatalf("element 1 = %T, want CubicTo", out.Elements()[1])
	}
	cubic := geom.Cubic{P0: geom.Pt(0, 0), P1: c.Control1, P2: c.Control2, P3: c.Point}
	for i := 0; i <= 10; i++ {
		tt := float64(i) / 10
		want := geom.EvalQuad(geom.Pt(0, 0), geom.Pt(50, 100), geom.Pt(100, 0), tt)
		if d := cubic.Eval(tt).Distance(want); d > 1e-9 {
			t.Errorf("Eval(%v) off by %v", tt, d)
		}
	}
}

func TestToCubicPath_Conic(t *testing.T) {
	const r = 100.0
	p := geom.NewPath()
	p.MoveTo(r, 0)
	p.ConicTo(r, r, 0, r, math.Sqrt2/2)

	out, err := ToCubicPath(p)
	if err != nil {
		t.Fatalf("ToCubicPath() error = %v", err)
	}
	if !out.IsCubicOnly() {
		t.Fatal("IsCubicOnly() = false")
	}
	if got := out.CurrentPoint(); got.Distance(geom.Pt(0, r)) > 1e-9 {
		t.Errorf("CurrentPoint() = %v, want (0, %v)", got, r)
	}

	start := geom.Pt(r, 0)
	for _, e := range out.Elements()[1:] {
		c := e.(geom.CubicTo)
		seg := geom.Cubic{P0: start, P1: c.Control1, P2: c.Control2, P3: c.Point}
		for i := 0; i <= 20; i++ {
			pt := seg.Eval(float64(i) / 20)
			if d := math.Abs(pt.Length() - r); d > 2*Tolerance {
				t.Errorf("point %v is %.3f off the circle", pt, d)
			}
		}
		start = c.Point
	}
}

// -------------------------------------------------------------------
// Benchmarks
// -------------------------------------------------------------------

func BenchmarkApproximate_Arc(b *testing.B) {
	pts := make([]geom.Point, 0, 501)
	for i := 0; i <= 500; i++ {
		a := 2 * math.Pi * float64(i) / 500
		pts = append(pts, geom.Pt(200*math.Cos(a), 120*math.Sin(a)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Approximate(pts)
	}
}
