package backend

import (
	"encoding/xml"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/convert/curve"
	"github.com/gogpu/convert/geom"
)

// PathData encodes p in the SVG path mini-language, which XAML shares.
// Conic elements are always re-encoded as cubics; with cubicOnly, quadratic
// elements are elevated too.
func PathData(p *geom.Path, cubicOnly bool) (string, error) {
	var sb strings.Builder
	var cur, start geom.Point
	for _, e := range p.Elements() {
		switch el := e.(type) {
		case geom.MoveTo:
			sb.WriteByte('M')
			writePoints(&sb, el.Point)
			cur, start = el.Point, el.Point
		case geom.LineTo:
			sb.WriteByte('L')
			writePoints(&sb, el.Point)
			cur = el.Point
		case geom.QuadTo:
			if cubicOnly {
				c := curve.ElevateQuad(cur, el.Control, el.Point)
				sb.WriteByte('C')
				writePoints(&sb, c.Control1, c.Control2, c.Point)
			} else {
				sb.WriteByte('Q')
				writePoints(&sb, el.Control, el.Point)
			}
			cur = el.Point
		case geom.ConicTo:
			if el.Weight == 1 || el.Weight <= 0 {
				c := curve.ElevateQuad(cur, el.Control, el.Point)
				sb.WriteByte('C')
				writePoints(&sb, c.Control1, c.Control2, c.Point)
				cur = el.Point
				continue
			}
			segs, err := curve.Approximate(geom.SampleConic(cur, el.Control, el.Point, el.Weight, curve.SampleStep))
			if err != nil {
				return "", err
			}
			for _, s := range segs {
				sb.WriteByte('C')
				writePoints(&sb, s.P1, s.P2, s.P3)
			}
			cur = el.Point
		case geom.CubicTo:
			sb.WriteByte('C')
			writePoints(&sb, el.Control1, el.Control2, el.Point)
			cur = el.Point
		case geom.Close:
			sb.WriteByte('Z')
			cur = start
		}
	}
	return sb.String(), nil
}

func writePoints(sb *strings.Builder, pts ...geom.Point) {
	for i, pt := range pts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Num(pt.X))
		sb.WriteByte(',')
		sb.WriteString(Num(pt.Y))
	}
}

// Num formats a coordinate with at most three decimals and no trailing
// zeros.
func Num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// Escape returns s in Unicode normalization form C with XML special
// characters escaped. It is safe for both text and attribute values.
func Escape(s string) string {
	var sb strings.Builder
	xml.EscapeText(&sb, []byte(norm.NFC.String(s)))
	return sb.String()
}
