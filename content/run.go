package content

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/convert/geom"
)

// Kind classifies a content run.
type Kind uint8

const (
	// KindText is a run of glyphs drawn with one font and size.
	KindText Kind = iota
	// KindPath is a filled vector path.
	KindPath
	// KindImage is a placed raster image.
	KindImage
	// KindShading is a smooth shading (gradient mesh, axial or radial fill).
	KindShading
	// KindAnnotation is an interactive annotation appearance.
	KindAnnotation
)

var kindNames = [...]string{
	KindText:       "text",
	KindPath:       "path",
	KindImage:      "image",
	KindShading:    "shading",
	KindAnnotation: "annotation",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("content: unknown run kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("content: unknown run kind %q", b)
}

// Annotation describes the interactive part of an annotation run.
type Annotation struct {
	Subtype  string // Text, Link, Highlight, ...
	Contents string
	Author   string
	URI      string
}

// Run is one item of page content in painting order.
type Run struct {
	Kind Kind

	// Bounds is the area the run paints, in page units.
	Bounds geom.Rect

	// Clip restricts painting. The zero Rect means the run is unclipped.
	Clip geom.Rect

	// Opaque reports whether the run fully hides what lies beneath its
	// bounds. Only opaque runs occlude earlier content.
	Opaque bool

	// Invisible marks text that is laid out but not painted, such as the
	// searchable layer over a scanned page.
	Invisible bool

	Text     string
	FontSize float64
	Font     string
	// Origin is the baseline start of a text run.
	Origin geom.Point

	Path *geom.Path
	Fill color.NRGBA

	Image image.Image

	Annotation *Annotation
}

// Clipped returns the part of Bounds that survives the clip rectangle.
func (r *Run) Clipped() geom.Rect {
	if r.Clip == (geom.Rect{}) {
		return r.Bounds
	}
	return r.Bounds.Intersect(r.Clip)
}

// FillColor returns Fill, or opaque black for the zero color.
func (r *Run) FillColor() color.NRGBA {
	if r.Fill == (color.NRGBA{}) {
		return color.NRGBA{A: 0xff}
	}
	return r.Fill
}

// Page is one page of a source document.
type Page struct {
	// Index is the zero-based page number within its document.
	Index int

	Width, Height float64

	Runs []Run
}

// Bounds returns the page rectangle.
func (p *Page) Bounds() geom.Rect {
	return geom.XYWH(0, 0, p.Width, p.Height)
}

// Count returns the number of runs of kind k.
func (p *Page) Count(k Kind) int {
	n := 0
	for i := range p.Runs {
		if p.Runs[i].Kind == k {
			n++
		}
	}
	return n
}

// Clone returns a copy of p whose run slice can be modified independently.
// Paths and images are shared.
func (p *Page) Clone() *Page {
	c := *p
	c.Runs = append([]Run(nil), p.Runs...)
	return &c
}
