package curve

import (
	"github.com/gogpu/convert/geom"
)

// SampleStep is the spacing, in page units, between samples taken along a
// conic before fitting.
const SampleStep = 0.5

// ToCubicPath returns a copy of p in which every quadratic and conic element
// has been replaced by cubic elements. Quadratics are degree-elevated
// exactly. Conics are sampled and fitted with a fresh Approximator each.
func ToCubicPath(p *geom.Path) (*geom.Path, error) {
	out := geom.NewPath()
	var start, cur geom.Point

	for _, e := range p.Elements() {
		switch el := e.(type) {
		case geom.MoveTo:
			start, cur = el.Point, el.Point
			out.Append(el)
		case geom.LineTo:
			cur = el.Point
			out.Append(el)
		case geom.CubicTo:
			cur = el.Point
			out.Append(el)
		case geom.Close:
			cur = start
			out.Append(el)
		case geom.QuadTo:
			out.Append(ElevateQuad(cur, el.Control, el.Point))
			cur = el.Point
		case geom.ConicTo:
			w := el.Weight
			if w == 1 || w <= 0 {
				out.Append(ElevateQuad(cur, el.Control, el.Point))
				cur = el.Point
				continue
			}
			segs, err := Approximate(geom.SampleConic(cur, el.Control, el.Point, w, SampleStep))
			if err != nil {
				return nil, err
			}
			for _, s := range segs {
				out.Append(geom.CubicTo{Control1: s.P1, Control2: s.P2, Point: s.P3})
			}
			cur = el.Point
		}
	}
	return out, nil
}

// ElevateQuad returns the cubic element equal to the quadratic (p0, c, p1).
func ElevateQuad(p0, c, p1 geom.Point) geom.CubicTo {
	return geom.CubicTo{
		Control1: p0.Add(c.Sub(p0).Mul(2.0 / 3.0)),
		Control2: p1.Add(c.Sub(p1).Mul(2.0 / 3.0)),
		Point:    p1,
	}
}
