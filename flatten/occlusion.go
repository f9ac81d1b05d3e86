package flatten

import (
	"slices"

	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/geom"
)

// OccludedFractions returns, for every run on the page, the fraction of its
// bounds that is hidden by later opaque runs or lies outside its own clip.
// Runs with zero-area bounds report 0.
func OccludedFractions(runs []content.Run) []float64 {
	out := make([]float64, len(runs))
	var cover []geom.Rect
	for i := range runs {
		b := runs[i].Bounds
		area := b.Area()
		if b.Empty() || area == 0 {
			continue
		}

		cover = cover[:0]
		if c := runs[i].Clip; c != (geom.Rect{}) {
			cover = append(cover, outside(b, c)...)
		}
		for j := i + 1; j < len(runs); j++ {
			if !runs[j].Opaque {
				continue
			}
			if r := runs[j].Clipped().Intersect(b); !r.Empty() {
				cover = append(cover, r)
			}
		}
		out[i] = min(unionArea(cover)/area, 1)
	}
	return out
}

// outside returns rectangles covering the part of b not inside clip.
func outside(b, clip geom.Rect) []geom.Rect {
	in := b.Intersect(clip)
	if in.Empty() {
		return []geom.Rect{b}
	}
	var out []geom.Rect
	add := func(r geom.Rect) {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	// Bands above and below the visible part, then left and right of it.
	add(geom.Rect{Min: b.Min, Max: geom.Pt(b.Max.X, in.Min.Y)})
	add(geom.Rect{Min: geom.Pt(b.Min.X, in.Max.Y), Max: b.Max})
	add(geom.Rect{Min: geom.Pt(b.Min.X, in.Min.Y), Max: geom.Pt(in.Min.X, in.Max.Y)})
	add(geom.Rect{Min: geom.Pt(in.Max.X, in.Min.Y), Max: geom.Pt(b.Max.X, in.Max.Y)})
	return out
}

// unionArea returns the exact area of the union of rects by sweeping the
// distinct x coordinates and merging y intervals in each slab.
func unionArea(rects []geom.Rect) float64 {
	switch len(rects) {
	case 0:
		return 0
	case 1:
		return rects[0].Area()
	}

	xs := make([]float64, 0, 2*len(rects))
	for _, r := range rects {
		xs = append(xs, r.Min.X, r.Max.X)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	type span struct{ y0, y1 float64 }
	spans := make([]span, 0, len(rects))
	total := 0.0
	for k := 0; k+1 < len(xs); k++ {
		x0, x1 := xs[k], xs[k+1]
		spans = spans[:0]
		for _, r := range rects {
			if r.Min.X <= x0 && r.Max.X >= x1 {
				spans = append(spans, span{r.Min.Y, r.Max.Y})
			}
		}
		if len(spans) == 0 {
			continue
		}
		slices.SortFunc(spans, func(a, b span) int {
			switch {
			case a.y0 < b.y0:
				return -1
			case a.y0 > b.y0:
				return 1
			}
			return 0
		})
		covered := 0.0
		cur := spans[0]
		for _, s := range spans[1:] {
			if s.y0 > cur.y1 {
				covered += cur.y1 - cur.y0
				cur = s
				continue
			}
			cur.y1 = max(cur.y1, s.y1)
		}
		covered += cur.y1 - cur.y0
		total += covered * (x1 - x0)
	}
	return total
}
