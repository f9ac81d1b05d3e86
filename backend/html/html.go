// Package html writes converted documents as a single HTML5 file.
//
// In the default fixed layout every page is an absolutely positioned box
// holding its raster tiles as images, its vector paths as inline SVG and
// its text as positioned spans. With Options.Reflow, page text is written
// as paragraphs in reading order instead.
//
// Images are embedded as data URIs so the output is one self-contained
// file. The epub package reuses BuildPage with its own ImageSink.
package html

import (
	"bufio"
	"fmt"
	"image"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
)

func init() {
	backend.Register("html", func(opts any) (backend.Writer, error) {
		o, err := backend.Options(opts, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return New(o), nil
	})
}

// Options configures the HTML writer.
type Options struct {
	PreferJPG   bool
	JPEGQuality int

	// Reflow writes text in reading order instead of fixed positions.
	Reflow bool

	// Scale multiplies page units into CSS pixels.
	Scale float64

	// SimplifyText merges adjacent text runs on one baseline.
	SimplifyText bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		PreferJPG:   true,
		JPEGQuality: codec.DefaultJPEGQuality,
		Scale:       1,
	}
}

// Stylesheet is shared by the HTML and EPUB outputs.
const Stylesheet = `body{margin:0;background:#808080}
.page{margin:8px auto;background:#fff}
section.page{max-width:48em;padding:1em;font-family:sans-serif}
a.annot{display:block}
img{border:0}
`

// Writer implements backend.Writer.
type Writer struct {
	opts Options
	bw   *bufio.Writer
}

var _ backend.Writer = (*Writer)(nil)

// New returns an HTML writer.
func New(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Caps reports that HTML keeps vector content.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{}
}

// Head returns the document head element.
func Head(title string) *xhtml.Node {
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	t := element(atom.Title)
	t.AppendChild(textNode(title))
	head.AppendChild(t)
	style := element(atom.Style)
	style.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: Stylesheet})
	head.AppendChild(style)
	return head
}

// Begin writes the doctype and head.
func (w *Writer) Begin(out backend.Output, info backend.Info) error {
	if out.W == nil {
		return fmt.Errorf("html: no output writer")
	}
	w.bw = bufio.NewWriter(out.W)
	w.bw.WriteString("<!DOCTYPE html>\n<html lang=\"und\">\n")
	if err := xhtml.Render(w.bw, Head(info.Doc.Title)); err != nil {
		return err
	}
	w.bw.WriteString("\n<body>\n")
	return w.bw.Flush()
}

// WritePage renders one page and flushes it.
func (w *Writer) WritePage(p *backend.Page) error {
	n, err := BuildPage(p, w.opts, dataURI)
	if err != nil {
		return fmt.Errorf("html: page %d: %w", p.Index+1, err)
	}
	if err := xhtml.Render(w.bw, n); err != nil {
		return err
	}
	w.bw.WriteByte('\n')
	return w.bw.Flush()
}

// End closes the document.
func (w *Writer) End() error {
	w.bw.WriteString("</body>\n</html>\n")
	return w.bw.Flush()
}

func dataURI(img image.Image, enc codec.Encoder) (string, error) {
	return backend.DataURI(enc, img)
}
