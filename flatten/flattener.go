package flatten

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/geom"
)

// LayerKind identifies what a Layer holds.
type LayerKind uint8

const (
	// LayerRaster is content rendered at the policy DPI, split into tiles.
	LayerRaster LayerKind = iota
	// LayerVector is content preserved as vector runs.
	LayerVector
	// LayerTextOverlay holds every text run of a simple-mode page.
	LayerTextOverlay
	// LayerAnnotations holds annotation runs kept interactive. It is always
	// the top layer.
	LayerAnnotations
)

func (k LayerKind) String() string {
	switch k {
	case LayerRaster:
		return "raster"
	case LayerVector:
		return "vector"
	case LayerTextOverlay:
		return "text_overlay"
	case LayerAnnotations:
		return "annotations"
	}
	return fmt.Sprintf("LayerKind(%d)", k)
}

// Layer is one entry of a page's output stack. Layers are painted bottom
// to top in the order the Result lists them; only the bottom raster layer
// sits on an opaque page background.
type Layer struct {
	// Kind selects how writers emit the layer.
	Kind LayerKind

	// Runs in painting order.
	Runs []content.Run

	// Tiles partition a raster layer. Tile.Runs index into Runs.
	Tiles []Tile
}

// Pixels returns the number of raster pixels held by the layer's tiles.
func (l *Layer) Pixels() int64 {
	var n int64
	for _, t := range l.Tiles {
		n += t.Pixels()
	}
	return n
}

// Decision records how one source run was treated. Results carry one
// Decision per source run, in source order, for inspection and reports.
type Decision struct {
	// Index is the run's position in the source page.
	Index int

	// Kind is the run's content kind.
	Kind content.Kind

	// Fraction is the share of the run's bounds hidden by later opaque
	// runs or outside its clip, in [0, 1]. Modes that skip the occlusion
	// pass leave it 0.
	Fraction float64

	// Rasterized reports whether the run went into a raster layer.
	Rasterized bool
}

// Result is the flattened form of a page. A Result is owned by the caller
// that asked for it; the Flattener keeps no reference.
type Result struct {
	// Page is the source page the result was computed from.
	Page *content.Page

	// Scale is device pixels per page unit.
	Scale float64

	// Width and Height are the page size in device pixels.
	Width, Height int

	// Layers is the output stack, bottom first.
	Layers []Layer

	// Decisions holds one entry per source run.
	Decisions []Decision
}

// Rasterized returns the number of runs that were rasterized.
func (r *Result) Rasterized() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Rasterized {
			n++
		}
	}
	return n
}

// RasterPixels returns the pixel footprint of every raster tile.
func (r *Result) RasterPixels() int64 {
	var n int64
	for i := range r.Layers {
		n += r.Layers[i].Pixels()
	}
	return n
}

// Tiles returns the number of raster tiles across all layers.
func (r *Result) Tiles() int {
	n := 0
	for i := range r.Layers {
		n += len(r.Layers[i].Tiles)
	}
	return n
}

// Option configures a Flattener. Options are applied by New in order.
type Option func(*Flattener)

// FlattenAnnotations makes annotation runs part of the page content, to be
// rasterized with it. By default they are kept in a separate top layer.
func FlattenAnnotations(on bool) Option {
	return func(f *Flattener) {
		f.flattenAnnots = on
	}
}

// ElementLimit rasterizes whole pages holding more than n runs. Zero means
// no limit. ModeOff ignores the limit.
func ElementLimit(n int) Option {
	return func(f *Flattener) {
		f.elementLimit = n
	}
}

// Flattener applies a Policy to pages.
//
// For each page it decides which runs stay vector and which are drawn
// into raster layers, then partitions every raster layer into tiles that
// respect the policy's pixel budget.
//
// Thread safety: a Flattener holds no per-page state and is safe for
// concurrent use.
type Flattener struct {
	// policy is validated by New and never changes.
	policy Policy

	// flattenAnnots draws annotation runs with the page instead of
	// keeping them in the top layer.
	flattenAnnots bool

	// elementLimit rasterizes pages with more runs whole. Zero disables
	// the limit.
	elementLimit int
}

// New returns a Flattener for a validated policy.
func New(p Policy, opts ...Option) (*Flattener, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Flattener{policy: p}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Policy returns the policy the flattener was built with.
func (f *Flattener) Policy() Policy {
	return f.policy
}

var errNilPage = errors.New("flatten: nil page")

// Flatten computes the layer stack for page.
func (f *Flattener) Flatten(page *content.Page) (*Result, error) {
	if page == nil {
		return nil, errNilPage
	}
	res := f.newResult(page)

	if f.policy.Mode == ModeOff {
		for i, run := range page.Runs {
			res.Layers = append(res.Layers, Layer{Kind: LayerVector, Runs: []content.Run{run}})
			res.Decisions = append(res.Decisions, Decision{Index: i, Kind: run.Kind})
		}
		return res, nil
	}

	if f.elementLimit > 0 && len(page.Runs) > f.elementLimit {
		return f.rasterizeAll(res), nil
	}

	switch f.policy.Mode {
	case ModeSimple:
		f.simple(res)
	default:
		f.selective(res)
	}
	return res, nil
}

// RasterizeAll renders every run into a single raster layer, for targets
// that carry no vector content. Annotation runs follow FlattenAnnotations.
func (f *Flattener) RasterizeAll(page *content.Page) (*Result, error) {
	if page == nil {
		return nil, errNilPage
	}
	return f.rasterizeAll(f.newResult(page)), nil
}

func (f *Flattener) newResult(page *content.Page) *Result {
	scale := f.policy.Scale()
	return &Result{
		Page:   page,
		Scale:  scale,
		Width:  max(1, int(math.Ceil(page.Width*scale))),
		Height: max(1, int(math.Ceil(page.Height*scale))),
	}
}

// keepsAnnotation reports whether run is lifted out of the page content into
// the annotation layer.
func (f *Flattener) keepsAnnotation(run *content.Run) bool {
	return run.Kind == content.KindAnnotation && !f.flattenAnnots
}

func (f *Flattener) rasterizeAll(res *Result) *Result {
	var raster, annots []content.Run
	for i, run := range res.Page.Runs {
		if f.keepsAnnotation(&run) {
			annots = append(annots, run)
			res.Decisions = append(res.Decisions, Decision{Index: i, Kind: run.Kind})
			continue
		}
		raster = append(raster, run)
		res.Decisions = append(res.Decisions, Decision{Index: i, Kind: run.Kind, Rasterized: true})
	}
	res.Layers = append(res.Layers, f.rasterLayer(res, raster))
	return appendAnnotations(res, annots)
}

func (f *Flattener) simple(res *Result) {
	var raster, text, annots []content.Run
	for i, run := range res.Page.Runs {
		d := Decision{Index: i, Kind: run.Kind}
		switch {
		case f.keepsAnnotation(&run):
			annots = append(annots, run)
		case run.Kind == content.KindText:
			text = append(text, run)
		default:
			raster = append(raster, run)
			d.Rasterized = true
		}
		res.Decisions = append(res.Decisions, d)
	}
	res.Layers = append(res.Layers,
		f.rasterLayer(res, raster),
		Layer{Kind: LayerTextOverlay, Runs: text},
	)
	appendAnnotations(res, annots)
}

func (f *Flattener) preservable(k content.Kind) bool {
	switch k {
	case content.KindText:
		return true
	case content.KindPath:
		return f.policy.Mode == ModeHighQuality
	}
	return false
}

// selective implements the fast and high-quality modes.
func (f *Flattener) selective(res *Result) {
	runs := res.Page.Runs
	fractions := OccludedFractions(runs)
	cutoff := f.policy.Threshold.Cutoff()

	const (
		annotation = -1
		rasterized = -2
	)
	// seq[i] > 0 is the 1-based order of preserved run i.
	seq := make([]int, len(runs))
	group := make([]int, len(runs))
	var preserved, annots []content.Run

	for i := range runs {
		run := &runs[i]
		d := Decision{Index: i, Kind: run.Kind, Fraction: fractions[i]}
		if f.keepsAnnotation(run) {
			seq[i] = annotation
			annots = append(annots, *run)
			res.Decisions = append(res.Decisions, d)
			continue
		}
		if f.preservable(run.Kind) && fractions[i] < cutoff {
			preserved = append(preserved, *run)
			seq[i] = len(preserved)
			res.Decisions = append(res.Decisions, d)
			continue
		}

		seq[i] = rasterized
		d.Rasterized = true
		res.Decisions = append(res.Decisions, d)

		area := run.Clipped()
		g := 0
		for j := 0; j < i; j++ {
			if seq[j] == annotation || !area.Overlaps(runs[j].Clipped()) {
				continue
			}
			if seq[j] > 0 {
				g = max(g, seq[j])
			} else {
				g = max(g, group[j])
			}
		}
		group[i] = g
	}

	groups := make([][]content.Run, len(preserved)+1)
	for i := range runs {
		if seq[i] == rasterized {
			groups[group[i]] = append(groups[group[i]], runs[i])
		}
	}

	if len(groups[0]) > 0 {
		res.Layers = append(res.Layers, f.rasterLayer(res, groups[0]))
	}
	for s := 1; s <= len(preserved); s++ {
		run := preserved[s-1]
		if n := len(res.Layers); n > 0 && res.Layers[n-1].Kind == LayerVector {
			res.Layers[n-1].Runs = append(res.Layers[n-1].Runs, run)
		} else {
			res.Layers = append(res.Layers, Layer{Kind: LayerVector, Runs: []content.Run{run}})
		}
		if len(groups[s]) > 0 {
			res.Layers = append(res.Layers, f.rasterLayer(res, groups[s]))
		}
	}
	appendAnnotations(res, annots)
}

func appendAnnotations(res *Result, annots []content.Run) *Result {
	if len(annots) > 0 {
		res.Layers = append(res.Layers, Layer{Kind: LayerAnnotations, Runs: annots})
	}
	return res
}

func (f *Flattener) rasterLayer(res *Result, runs []content.Run) Layer {
	spans := make([]Span, len(runs))
	for i := range runs {
		spans[i] = pixelSpan(runs[i].Clipped(), runs[i].Bounds, res.Scale)
	}
	return Layer{
		Kind:  LayerRaster,
		Runs:  runs,
		Tiles: Partition(res.Width, res.Height, f.policy.MaxPixels, spans),
	}
}

func pixelSpan(area, bounds geom.Rect, scale float64) Span {
	if area.Empty() {
		y := int(math.Floor(bounds.Min.Y * scale))
		return Span{Y0: y, Y1: y + 1}
	}
	return Span{
		Y0: int(math.Floor(area.Min.Y * scale)),
		Y1: int(math.Ceil(area.Max.Y * scale)),
	}
}
