// Package imagestack writes one raster image per page, in a zip archive or
// a directory of loose files. It registers the "tiff", "png" and "jpeg"
// writers.
package imagestack

import (
	"fmt"
	"image"
	"image/draw"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/flatten"
)

func init() {
	for _, name := range []string{"tiff", "png", "jpeg"} {
		backend.Register(name, func(opts any) (backend.Writer, error) {
			def := DefaultOptions()
			def.Codec = name
			o, err := backend.Options(opts, def)
			if err != nil {
				return nil, err
			}
			if o.Codec == "" {
				o.Codec = name
			}
			return New(o)
		})
	}
}

// Options configures the image stack writer.
type Options struct {
	// Codec names a codec registered in package codec.
	Codec       string
	JPEGQuality int

	// Rotate turns every page clockwise by 0, 90, 180 or 270 degrees.
	Rotate int

	// Gray converts pages to grayscale.
	Gray bool
}

// DefaultOptions returns TIFF output without rotation.
func DefaultOptions() Options {
	return Options{Codec: "tiff", JPEGQuality: codec.DefaultJPEGQuality}
}

// Writer implements backend.Writer.
type Writer struct {
	opts   Options
	enc    codec.Encoder
	c      artifact.Container
	digits int
}

var _ backend.Writer = (*Writer)(nil)

// New returns an image stack writer.
func New(opts Options) (*Writer, error) {
	switch opts.Rotate {
	case 0, 90, 180, 270:
	default:
		return nil, fmt.Errorf("imagestack: rotation %d is not a multiple of 90", opts.Rotate)
	}
	enc, err := codec.New(opts.Codec, codec.Options{JPEGQuality: opts.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("imagestack: %w", err)
	}
	return &Writer{opts: opts, enc: enc}, nil
}

// Caps reports that pages must arrive fully rasterized.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{RasterOnly: true, MultiPart: true}
}

// Begin opens the container.
func (w *Writer) Begin(out backend.Output, info backend.Info) error {
	if out.W == nil && out.Dir == nil {
		return fmt.Errorf("imagestack: no output")
	}
	w.c = out.Container()
	w.digits = max(4, len(strconv.Itoa(info.Pages)))
	return nil
}

// WritePage assembles the page's tiles and writes the encoded image.
func (w *Writer) WritePage(p *backend.Page) error {
	var img image.Image = assemble(p)
	if w.opts.Gray {
		img = imaging.Grayscale(img)
	}
	switch w.opts.Rotate {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	name := fmt.Sprintf("page%0*d%s", w.digits, p.Index+1, w.enc.Ext())
	dst, err := w.c.Create(name)
	if err != nil {
		return fmt.Errorf("imagestack: %w", err)
	}
	if err := w.enc.Encode(dst, img); err != nil {
		return fmt.Errorf("imagestack: %s: %w", name, err)
	}
	return nil
}

// End closes the container.
func (w *Writer) End() error {
	return w.c.Close()
}

// assemble draws every raster tile of p into one page image.
func assemble(p *backend.Page) *image.NRGBA {
	var bounds image.Rectangle
	for _, l := range p.Layers {
		if l.Kind != flatten.LayerRaster {
			continue
		}
		for _, t := range l.Tiles {
			bounds = bounds.Union(t.Rect)
		}
	}
	if bounds.Empty() {
		bounds = image.Rect(0, 0, 1, 1)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Max.X, bounds.Max.Y))
	for _, l := range p.Layers {
		if l.Kind != flatten.LayerRaster {
			continue
		}
		for _, t := range l.Tiles {
			draw.Draw(dst, t.Rect, t.Image, t.Image.Bounds().Min, draw.Over)
		}
	}
	return dst
}
