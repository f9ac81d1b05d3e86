// Package svg writes converted documents as a single SVG image with one
// nested <svg> element per page, stacked vertically.
//
//	import _ "github.com/gogpu/convert/backend/svg"
//
// Raster tiles are embedded as data URIs. Text stays selectable text.
// With Options.Compress the output is gzip-compressed (SVGZ).
package svg

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"image/color"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

func init() {
	backend.Register("svg", func(opts any) (backend.Writer, error) {
		o, err := backend.Options(opts, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return New(o), nil
	})
}

// pageGap separates stacked pages, in page units.
const pageGap = 8

// Options configures the SVG writer.
type Options struct {
	// Compress gzips the output.
	Compress bool

	// DTD writes the SVG 1.1 doctype.
	DTD bool

	// Annots keeps annotation runs as links and titled hot spots.
	Annots bool
}

// DefaultOptions returns the default options: DTD and annotations on, no
// compression.
func DefaultOptions() Options {
	return Options{DTD: true, Annots: true}
}

// Writer implements backend.Writer.
type Writer struct {
	opts Options

	bw *bufio.Writer
	gz *gzip.Writer

	y     float64
	clips int
}

var _ backend.Writer = (*Writer)(nil)

// New returns an SVG writer.
func New(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Caps reports that SVG keeps quadratic curves and vector content.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{}
}

// Begin writes the document prologue.
func (w *Writer) Begin(out backend.Output, info backend.Info) error {
	if out.W == nil {
		return fmt.Errorf("svg: no output writer")
	}
	dst := out.W
	if w.opts.Compress {
		w.gz = gzip.NewWriter(out.W)
		dst = w.gz
	}
	w.bw = bufio.NewWriter(dst)

	w.bw.WriteString(xml.Header)
	if w.opts.DTD {
		w.bw.WriteString(`<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">` + "\n")
	}
	w.bw.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" version="1.1">` + "\n")
	if info.Doc.Title != "" {
		fmt.Fprintf(w.bw, "<title>%s</title>\n", backend.Escape(info.Doc.Title))
	}
	return w.flush()
}

// WritePage appends one page and flushes it to the output.
func (w *Writer) WritePage(p *backend.Page) error {
	fmt.Fprintf(w.bw, `<svg id="page%d" x="0" y="%s" width="%s" height="%s" viewBox="0 0 %s %s" overflow="hidden">`+"\n",
		p.Index+1, backend.Num(w.y), backend.Num(p.Width), backend.Num(p.Height), backend.Num(p.Width), backend.Num(p.Height))

	for _, l := range p.Layers {
		fmt.Fprintf(w.bw, "<g class=%q>\n", l.Kind.String())
		switch l.Kind {
		case flatten.LayerRaster:
			for _, t := range l.Tiles {
				if err := w.writeTile(t); err != nil {
					return err
				}
			}
		case flatten.LayerAnnotations:
			if w.opts.Annots {
				for i := range l.Runs {
					w.writeAnnotation(&l.Runs[i])
				}
			}
		default:
			for i := range l.Runs {
				if err := w.writeRun(&l.Runs[i]); err != nil {
					return fmt.Errorf("svg: page %d: %w", p.Index+1, err)
				}
			}
		}
		w.bw.WriteString("</g>\n")
	}
	w.bw.WriteString("</svg>\n")
	w.y += p.Height + pageGap
	return w.flush()
}

// End closes the root element.
func (w *Writer) End() error {
	w.bw.WriteString("</svg>\n")
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

func (w *Writer) flush() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		return w.gz.Flush()
	}
	return nil
}

func (w *Writer) writeTile(t backend.Tile) error {
	enc := codec.PNG()
	uri, err := backend.DataURI(enc, t.Image)
	if err != nil {
		return err
	}
	b := t.Bounds
	fmt.Fprintf(w.bw, `<image x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none" xlink:href="%s"/>`+"\n",
		backend.Num(b.Min.X), backend.Num(b.Min.Y), backend.Num(b.Width()), backend.Num(b.Height()), uri)
	return nil
}

func (w *Writer) writeRun(r *content.Run) error {
	clip := w.clipAttr(r)
	switch r.Kind {
	case content.KindText:
		size := r.FontSize
		if size <= 0 {
			size = 12
		}
		family := r.Font
		if family == "" {
			family = "sans-serif"
		}
		opacity := ""
		if r.Invisible {
			opacity = ` opacity="0"`
		}
		fmt.Fprintf(w.bw, `<text x="%s" y="%s" font-size="%s" font-family="%s"%s%s%s xml:space="preserve">%s</text>`+"\n",
			backend.Num(r.Origin.X), backend.Num(r.Origin.Y), backend.Num(size), backend.Escape(family),
			fillAttrs(r.FillColor()), opacity, clip, backend.Escape(r.Text))
	case content.KindPath:
		if r.Path == nil {
			return nil
		}
		d, err := backend.PathData(r.Path, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(w.bw, `<path d="%s"%s%s/>`+"\n", d, fillAttrs(r.FillColor()), clip)
	case content.KindImage:
		if r.Image == nil {
			return nil
		}
		uri, err := backend.DataURI(codec.PNG(), r.Image)
		if err != nil {
			return err
		}
		b := r.Bounds
		fmt.Fprintf(w.bw, `<image x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none"%s xlink:href="%s"/>`+"\n",
			backend.Num(b.Min.X), backend.Num(b.Min.Y), backend.Num(b.Width()), backend.Num(b.Height()), clip, uri)
	case content.KindShading:
		fmt.Fprintf(w.bw, "%s\n", rect(r.Bounds, fillAttrs(r.FillColor())+clip))
	case content.KindAnnotation:
		if w.opts.Annots {
			w.writeAnnotation(r)
		}
	}
	return nil
}

func (w *Writer) writeAnnotation(r *content.Run) {
	a := r.Annotation
	if a == nil {
		a = &content.Annotation{}
	}
	hot := rect(r.Bounds, ` fill="none" pointer-events="all"`)
	if a.Contents != "" {
		hot = strings.TrimSuffix(hot, "/>") + "><title>" + backend.Escape(a.Contents) + "</title></rect>"
	}
	if a.URI != "" {
		fmt.Fprintf(w.bw, "<a xlink:href=\"%s\">%s</a>\n", backend.Escape(a.URI), hot)
		return
	}
	fmt.Fprintf(w.bw, "%s\n", hot)
}

// clipAttr emits a clipPath for r, if it has one, and returns the attribute
// referencing it.
func (w *Writer) clipAttr(r *content.Run) string {
	if r.Clip == (geom.Rect{}) {
		return ""
	}
	w.clips++
	id := fmt.Sprintf("clip%d", w.clips)
	fmt.Fprintf(w.bw, "<clipPath id=%q>%s</clipPath>\n", id, rect(r.Clip, ""))
	return fmt.Sprintf(` clip-path="url(#%s)"`, id)
}

func rect(b geom.Rect, attrs string) string {
	return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s"%s/>`,
		backend.Num(b.Min.X), backend.Num(b.Min.Y), backend.Num(b.Width()), backend.Num(b.Height()), attrs)
}

func fillAttrs(c color.NRGBA) string {
	s := fmt.Sprintf(` fill="#%02x%02x%02x"`, c.R, c.G, c.B)
	if c.A != 0xff {
		s += fmt.Sprintf(` fill-opacity="%s"`, backend.Num(float64(c.A)/255))
	}
	return s
}
