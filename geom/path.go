package geom

import (
	"encoding/json"
	"fmt"
	"math"
)

// PathElement represents a single element in a path.
type PathElement interface {
	isPathElement()
}

// MoveTo moves to a point without drawing.
type MoveTo struct {
	Point Point
}

func (MoveTo) isPathElement() {}

// LineTo draws a line to a point.
type LineTo struct {
	Point Point
}

func (LineTo) isPathElement() {}

// QuadTo draws a quadratic Bezier curve.
type QuadTo struct {
	Control Point
	Point   Point
}

func (QuadTo) isPathElement() {}

// ConicTo draws a rational quadratic curve. Weight 1 is an ordinary
// quadratic; weights below 1 give elliptical arcs, above 1 hyperbolic ones.
type ConicTo struct {
	Control Point
	Point   Point
	Weight  float64
}

func (ConicTo) isPathElement() {}

// CubicTo draws a cubic Bezier curve.
type CubicTo struct {
	Control1 Point
	Control2 Point
	Point    Point
}

func (CubicTo) isPathElement() {}

// Close closes the current subpath.
type Close struct{}

func (Close) isPathElement() {}

// Path represents a vector path in page units.
type Path struct {
	elements []PathElement
	start    Point
	current  Point
}

// NewPath creates a new empty path.
func NewPath() *Path {
	return &Path{
		elements: make([]PathElement, 0, 16),
	}
}

// MoveTo moves to a point without drawing.
func (p *Path) MoveTo(x, y float64) {
	pt := Pt(x, y)
	p.elements = append(p.elements, MoveTo{Point: pt})
	p.start = pt
	p.current = pt
}

// LineTo draws a line to a point.
func (p *Path) LineTo(x, y float64) {
	pt := Pt(x, y)
	p.elements = append(p.elements, LineTo{Point: pt})
	p.current = pt
}

// QuadTo draws a quadratic Bezier curve.
func (p *Path) QuadTo(cx, cy, x, y float64) {
	pt := Pt(x, y)
	p.elements = append(p.elements, QuadTo{Control: Pt(cx, cy), Point: pt})
	p.current = pt
}

// ConicTo draws a conic section with the given weight.
func (p *Path) ConicTo(cx, cy, x, y, w float64) {
	pt := Pt(x, y)
	p.elements = append(p.elements, ConicTo{Control: Pt(cx, cy), Point: pt, Weight: w})
	p.current = pt
}

// CubicTo draws a cubic Bezier curve.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	pt := Pt(x, y)
	p.elements = append(p.elements, CubicTo{
		Control1: Pt(c1x, c1y),
		Control2: Pt(c2x, c2y),
		Point:    pt,
	})
	p.current = pt
}

// Close closes the current subpath by drawing a line to the start point.
func (p *Path) Close() {
	p.elements = append(p.elements, Close{})
	p.current = p.start
}

// Append adds an already-built element, keeping the current point in sync.
func (p *Path) Append(e PathElement) {
	switch el := e.(type) {
	case MoveTo:
		p.start = el.Point
		p.current = el.Point
	case LineTo:
		p.current = el.Point
	case QuadTo:
		p.current = el.Point
	case ConicTo:
		p.current = el.Point
	case CubicTo:
		p.current = el.Point
	case Close:
		p.current = p.start
	}
	p.elements = append(p.elements, e)
}

// Elements returns the path elements.
func (p *Path) Elements() []PathElement {
	return p.elements
}

// Len returns the number of elements in the path.
func (p *Path) Len() int {
	return len(p.elements)
}

// CurrentPoint returns the current point.
func (p *Path) CurrentPoint() Point {
	return p.current
}

// IsCubicOnly reports whether the path uses no quadratic or conic elements.
func (p *Path) IsCubicOnly() bool {
	for _, e := range p.elements {
		switch e.(type) {
		case QuadTo, ConicTo:
			return false
		}
	}
	return true
}

// Bounds returns the bounding box of every point and control point in the
// path. The control-point hull always contains the curve itself.
func (p *Path) Bounds() Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	add := func(pt Point) {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	for _, e := range p.elements {
		switch el := e.(type) {
		case MoveTo:
			add(el.Point)
		case LineTo:
			add(el.Point)
		case QuadTo:
			add(el.Control)
			add(el.Point)
		case ConicTo:
			add(el.Control)
			add(el.Point)
		case CubicTo:
			add(el.Control1)
			add(el.Control2)
			add(el.Point)
		}
	}
	if minX > maxX {
		return Rect{}
	}
	return Rect{Min: Pt(minX, minY), Max: Pt(maxX, maxY)}
}

// Transform returns a copy of the path with every point mapped by fn.
func (p *Path) Transform(fn func(Point) Point) *Path {
	out := NewPath()
	for _, e := range p.elements {
		switch el := e.(type) {
		case MoveTo:
			out.Append(MoveTo{Point: fn(el.Point)})
		case LineTo:
			out.Append(LineTo{Point: fn(el.Point)})
		case QuadTo:
			out.Append(QuadTo{Control: fn(el.Control), Point: fn(el.Point)})
		case ConicTo:
			out.Append(ConicTo{Control: fn(el.Control), Point: fn(el.Point), Weight: el.Weight})
		case CubicTo:
			out.Append(CubicTo{Control1: fn(el.Control1), Control2: fn(el.Control2), Point: fn(el.Point)})
		case Close:
			out.Append(Close{})
		}
	}
	return out
}

// jsonElement is the wire form of a path element: an SVG-style op letter
// ("M", "L", "Q", "K" for conics, "C", "Z") with flattened coordinates.
type jsonElement struct {
	Op     string    `json:"op"`
	Pts    []float64 `json:"p,omitempty"`
	Weight float64   `json:"w,omitempty"`
}

// MarshalJSON encodes the path as a list of op/point records.
func (p *Path) MarshalJSON() ([]byte, error) {
	out := make([]jsonElement, 0, len(p.elements))
	for _, e := range p.elements {
		switch el := e.(type) {
		case MoveTo:
			out = append(out, jsonElement{Op: "M", Pts: []float64{el.Point.X, el.Point.Y}})
		case LineTo:
			out = append(out, jsonElement{Op: "L", Pts: []float64{el.Point.X, el.Point.Y}})
		case QuadTo:
			out = append(out, jsonElement{Op: "Q", Pts: []float64{el.Control.X, el.Control.Y, el.Point.X, el.Point.Y}})
		case ConicTo:
			out = append(out, jsonElement{Op: "K", Pts: []float64{el.Control.X, el.Control.Y, el.Point.X, el.Point.Y}, Weight: el.Weight})
		case CubicTo:
			out = append(out, jsonElement{Op: "C", Pts: []float64{
				el.Control1.X, el.Control1.Y, el.Control2.X, el.Control2.Y, el.Point.X, el.Point.Y,
			}})
		case Close:
			out = append(out, jsonElement{Op: "Z"})
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (p *Path) UnmarshalJSON(data []byte) error {
	var in []jsonElement
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = *NewPath()
	want := map[string]int{"M": 2, "L": 2, "Q": 4, "K": 4, "C": 6, "Z": 0}
	for i, el := range in {
		n, ok := want[el.Op]
		if !ok {
			return fmt.Errorf("geom: path element %d: unknown op %q", i, el.Op)
		}
		if len(el.Pts) != n {
			return fmt.Errorf("geom: path element %d: op %s wants %d coordinates, got %d", i, el.Op, n, len(el.Pts))
		}
		c := el.Pts
		switch el.Op {
		case "M":
			p.MoveTo(c[0], c[1])
		case "L":
			p.LineTo(c[0], c[1])
		case "Q":
			p.QuadTo(c[0], c[1], c[2], c[3])
		case "K":
			w := el.Weight
			if w == 0 {
				w = 1
			}
			p.ConicTo(c[0], c[1], c[2], c[3], w)
		case "C":
			p.CubicTo(c[0], c[1], c[2], c[3], c[4], c[5])
		case "Z":
			p.Close()
		}
	}
	return nil
}
