package backend

import (
	"errors"
	"image"
	"io"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

var (
	// ErrBadOptions is returned by a factory given options of the wrong
	// type.
	ErrBadOptions = errors.New("backend: options of wrong type")

	// ErrNoSidecar is returned when a writer needs a sidecar file but the
	// target cannot hold one.
	ErrNoSidecar = errors.New("backend: target cannot hold sidecar files")
)

// Caps describes what a writer can represent.
type Caps struct {
	// CubicOnly writers accept no quadratic or conic path elements.
	CubicOnly bool

	// RasterOnly writers carry no vector content; every page is
	// rasterized whole.
	RasterOnly bool

	// MultiPart writers emit several parts through a Container.
	MultiPart bool
}

// Output is where a writer sends its bytes.
type Output struct {
	// W receives single-file output. For multi-part writers without Dir it
	// receives a zip archive.
	W io.Writer

	// Dir is set for loose-file targets.
	Dir *artifact.Dir

	// Sidecar opens a file published next to the main artifact, named by
	// suffix (e.g. ".xfdf"). It is nil for stream targets.
	Sidecar func(suffix string) (io.Writer, error)
}

// Container returns the part container for multi-part writers: the loose
// directory if there is one, otherwise a zip over W.
func (o Output) Container() artifact.Container {
	if o.Dir != nil {
		return o.Dir
	}
	return artifact.NewZip(o.W)
}

// Info describes the document being written.
type Info struct {
	Doc   content.Info
	Pages int
}

// Tile is one rendered strip of a raster layer.
type Tile struct {
	// Rect is the strip in device pixels.
	Rect image.Rectangle

	// Bounds is the strip in page units.
	Bounds geom.Rect

	Image *image.NRGBA
}

// Layer is one entry of a page's output stack.
type Layer struct {
	Kind  flatten.LayerKind
	Runs  []content.Run
	Tiles []Tile
}

// Page is a converted page ready to be written.
type Page struct {
	// Index is the zero-based source page number.
	Index int

	// Width and Height are the page size in page units.
	Width, Height float64

	// Scale is device pixels per page unit for raster tiles.
	Scale float64

	Layers []Layer
}

// Annotations returns the runs of every annotation layer.
func (p *Page) Annotations() []content.Run {
	var out []content.Run
	for _, l := range p.Layers {
		if l.Kind == flatten.LayerAnnotations {
			out = append(out, l.Runs...)
		}
	}
	return out
}

// Writer renders converted pages into one output format.
type Writer interface {
	Caps() Caps
	Begin(out Output, info Info) error
	WritePage(p *Page) error
	End() error
}
