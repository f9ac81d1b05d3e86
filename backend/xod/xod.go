// Package xod writes converted documents as XOD packages: an XPS-style
// fixed-layout container of XAML pages, tile images, page thumbnails and
// an XFDF annotation part.
//
// The package is a zip archive, or a directory of loose files when the
// output is a directory target. Parts:
//
//	[Content_Types].xml
//	FixedDocument.fdoc
//	Pages/1.xaml ...
//	Images/1_1.jpg ...
//	Thumbs/1.jpg ...
//	Annots.xfdf
package xod

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/backend/fixedpage"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/internal/raster"
)

func init() {
	backend.Register("xod", func(opts any) (backend.Writer, error) {
		o, err := backend.Options(opts, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return New(o), nil
	})
}

// AnnotationMode selects where annotations go.
type AnnotationMode uint8

const (
	// AnnotsInternal writes Annots.xfdf inside the package.
	AnnotsInternal AnnotationMode = iota
	// AnnotsExternal writes a .xfdf file next to the package.
	AnnotsExternal
	// AnnotsNone drops annotation layers. Used when annotations were
	// flattened into page content.
	AnnotsNone
)

// Options configures the XOD writer.
type Options struct {
	PreferJPG   bool
	JPEGQuality int

	// Thumbnails enables Thumbs/N.jpg, bounded by ThumbnailSize pixels,
	// and Thumbs/N_large.jpg when LargeThumbnailSize is positive.
	Thumbnails         bool
	ThumbnailSize      int
	LargeThumbnailSize int

	Annotations AnnotationMode
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		PreferJPG:          true,
		JPEGQuality:        codec.DefaultJPEGQuality,
		Thumbnails:         true,
		ThumbnailSize:      400,
		LargeThumbnailSize: 1500,
	}
}

type pageEntry struct {
	number        int
	width, height float64
}

// Writer implements backend.Writer.
type Writer struct {
	opts Options
	out  backend.Output
	c    artifact.Container

	pages  []pageEntry
	annots []xfdfAnnot
	render *raster.Renderer
}

var _ backend.Writer = (*Writer)(nil)

// New returns an XOD writer.
func New(opts Options) *Writer {
	return &Writer{opts: opts, render: raster.New()}
}

// Caps reports that XAML path data has no quadratic or conic form.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{CubicOnly: true, MultiPart: true}
}

// Begin opens the package container.
func (w *Writer) Begin(out backend.Output, _ backend.Info) error {
	if out.W == nil && out.Dir == nil {
		return fmt.Errorf("xod: no output")
	}
	if w.opts.Annotations == AnnotsExternal && out.Sidecar == nil {
		return fmt.Errorf("xod: external annotations: %w", backend.ErrNoSidecar)
	}
	w.out = out
	w.c = out.Container()
	return nil
}

// WritePage writes the page XAML followed by its images and thumbnails.
func (w *Writer) WritePage(p *backend.Page) error {
	n := len(w.pages) + 1
	fp := fixedpage.New(p.Width, p.Height, fixedpage.Style{
		ImagePart: func(seq int, ext string) string {
			return fmt.Sprintf("Images/%d_%d%s", n, seq, ext)
		},
	})
	for li, l := range p.Layers {
		if l.Kind == flatten.LayerAnnotations {
			if w.opts.Annotations != AnnotsNone {
				for i := range l.Runs {
					w.annots = append(w.annots, newAnnot(n-1, p.Height, &l.Runs[i]))
				}
			}
			continue
		}
		fp.BeginCanvas(l.Kind, li)
		if l.Kind == flatten.LayerRaster {
			for _, t := range l.Tiles {
				fp.Tile(t, codec.ForTile(t.Image, w.opts.PreferJPG, w.opts.JPEGQuality))
			}
		} else {
			for i := range l.Runs {
				if err := fp.Run(&l.Runs[i]); err != nil {
					return fmt.Errorf("xod: page %d: %w", n, err)
				}
			}
		}
		fp.EndCanvas()
	}

	if err := w.part(fmt.Sprintf("Pages/%d.xaml", n), func(dst io.Writer) error {
		_, err := io.WriteString(dst, fp.Markup())
		return err
	}); err != nil {
		return err
	}
	for _, img := range fp.Images {
		if err := w.part(img.Name, func(dst io.Writer) error {
			return img.Enc.Encode(dst, img.Img)
		}); err != nil {
			return err
		}
	}
	if w.opts.Thumbnails {
		if err := w.writeThumbs(n, p); err != nil {
			return err
		}
	}
	w.pages = append(w.pages, pageEntry{number: n, width: p.Width, height: p.Height})
	return nil
}

// End writes the document parts and closes the container.
func (w *Writer) End() error {
	if err := w.part("FixedDocument.fdoc", func(dst io.Writer) error {
		var sb strings.Builder
		fmt.Fprintf(&sb, "<FixedDocument xmlns=%q>\n", fixedpage.Namespace)
		for _, pe := range w.pages {
			fmt.Fprintf(&sb, `<PageContent Source="Pages/%d.xaml" Width="%s" Height="%s"/>`+"\n",
				pe.number, backend.Num(pe.width), backend.Num(pe.height))
		}
		sb.WriteString("</FixedDocument>\n")
		_, err := io.WriteString(dst, sb.String())
		return err
	}); err != nil {
		return err
	}

	switch w.opts.Annotations {
	case AnnotsInternal:
		if err := w.part("Annots.xfdf", func(dst io.Writer) error {
			return writeXFDF(dst, w.annots)
		}); err != nil {
			return err
		}
	case AnnotsExternal:
		dst, err := w.out.Sidecar(".xfdf")
		if err != nil {
			return fmt.Errorf("xod: %w", err)
		}
		if err := writeXFDF(dst, w.annots); err != nil {
			return fmt.Errorf("xod: %w", err)
		}
	}

	if err := w.part("[Content_Types].xml", func(dst io.Writer) error {
		_, err := io.WriteString(dst, contentTypes)
		return err
	}); err != nil {
		return err
	}
	return w.c.Close()
}

func (w *Writer) part(name string, fn func(io.Writer) error) error {
	dst, err := w.c.Create(name)
	if err != nil {
		return fmt.Errorf("xod: %s: %w", name, err)
	}
	if err := fn(dst); err != nil {
		return fmt.Errorf("xod: %s: %w", name, err)
	}
	return nil
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="fdoc" ContentType="application/vnd.ms-package.xps-fixeddocument+xml"/>
<Default Extension="xaml" ContentType="application/vnd.ms-package.xps-fixedpage+xml"/>
<Default Extension="jpg" ContentType="image/jpeg"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="xfdf" ContentType="application/vnd.adobe.xfdf"/>
</Types>
`

// writeThumbs composites the page at tile resolution and writes the
// reduced JPEG thumbnails.
func (w *Writer) writeThumbs(n int, p *backend.Page) error {
	full, err := backend.Composite(context.Background(), p, w.render)
	if err != nil {
		return fmt.Errorf("xod: thumbnail %d: %w", n, err)
	}

	sizes := []struct {
		name string
		px   int
	}{
		{fmt.Sprintf("Thumbs/%d.jpg", n), w.opts.ThumbnailSize},
		{fmt.Sprintf("Thumbs/%d_large.jpg", n), w.opts.LargeThumbnailSize},
	}
	for _, s := range sizes {
		if s.px <= 0 {
			continue
		}
		thumb := imaging.Fit(full, s.px, s.px, imaging.Lanczos)
		if err := w.part(s.name, func(dst io.Writer) error {
			return imaging.Encode(dst, thumb, imaging.JPEG, imaging.JPEGQuality(w.quality()))
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) quality() int {
	if w.opts.JPEGQuality <= 0 {
		return codec.DefaultJPEGQuality
	}
	return min(w.opts.JPEGQuality, 100)
}
