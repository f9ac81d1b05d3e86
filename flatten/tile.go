package flatten

import (
	"image"
	"slices"
)

// Span is the vertical pixel extent [Y0, Y1) of one run. Partition keeps
// every span inside a single tile, so a run is never split across tiles.
type Span struct {
	// Y0 is the first row; Y1 is one past the last.
	Y0, Y1 int
}

// Tile is a horizontal full-width strip of a raster layer. Tiles of one
// layer do not overlap and together cover every row of the page raster.
type Tile struct {
	// Rect is the tile area in device pixels.
	Rect image.Rectangle

	// Runs indexes the runs assigned to this tile, in painting order.
	Runs []int
}

// Pixels returns the tile area in pixels.
func (t Tile) Pixels() int64 {
	return int64(t.Rect.Dx()) * int64(t.Rect.Dy())
}

// Partition cuts a w×h raster into full-width strips that together cover
// rows [0, h) exactly once.
//
// Rows are added to the open tile one at a time while the tile stays within
// maxPixels; a new tile starts once the next row would exceed the budget.
// The first row of a tile is always taken. Each span is assigned to the tile
// holding its first row, and that tile keeps taking rows, regardless of the
// budget, until every span assigned to it fits entirely.
func Partition(w, h int, maxPixels int64, spans []Span) []Tile {
	if w <= 0 || h <= 0 {
		return nil
	}

	order := make([]int, len(spans))
	clamped := make([]Span, len(spans))
	for i, s := range spans {
		order[i] = i
		clamped[i] = clampSpan(s, h)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return clamped[a].Y0 - clamped[b].Y0
	})

	var tiles []Tile
	next := 0
	for y := 0; y < h; {
		start, end, need := y, y+1, y+1
		var assigned []int
		for {
			for next < len(order) && clamped[order[next]].Y0 < end {
				i := order[next]
				assigned = append(assigned, i)
				need = max(need, clamped[i].Y1)
				next++
			}
			if end < need {
				end++
				continue
			}
			if end < h && int64(end+1-start)*int64(w) <= maxPixels {
				end++
				continue
			}
			break
		}
		slices.Sort(assigned)
		tiles = append(tiles, Tile{Rect: image.Rect(0, start, w, end), Runs: assigned})
		y = end
	}
	return tiles
}

func clampSpan(s Span, h int) Span {
	s.Y0 = min(max(s.Y0, 0), h-1)
	s.Y1 = min(max(s.Y1, s.Y0+1), h)
	return s
}
