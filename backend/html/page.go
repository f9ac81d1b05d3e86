package html

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"slices"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
)

// ImageSink stores an image and returns the URL that references it.
type ImageSink func(img image.Image, enc codec.Encoder) (string, error)

// element returns a new element node; attrs are key/value pairs.
func element(a atom.Atom, attrs ...string) *xhtml.Node {
	n := &xhtml.Node{Type: xhtml.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, xhtml.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *xhtml.Node {
	return &xhtml.Node{Type: xhtml.TextNode, Data: norm.NFC.String(s)}
}

func px(v float64) string {
	return backend.Num(v) + "px"
}

func cssColor(r *content.Run) string {
	c := r.FillColor()
	if r.Invisible {
		return "transparent"
	}
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, backend.Num(float64(c.A)/255))
}

// pageBuilder turns one converted page into an element tree.
type pageBuilder struct {
	opts  Options
	sink  ImageSink
	scale float64
}

// BuildPage returns the element for page p. Images are handed to sink.
func BuildPage(p *backend.Page, opts Options, sink ImageSink) (*xhtml.Node, error) {
	b := &pageBuilder{opts: opts, sink: sink, scale: opts.Scale}
	if b.scale <= 0 {
		b.scale = 1
	}
	if opts.Reflow {
		return b.reflow(p)
	}
	return b.fixed(p)
}

func (b *pageBuilder) fixed(p *backend.Page) (*xhtml.Node, error) {
	div := element(atom.Div,
		"class", "page",
		"id", fmt.Sprintf("page%d", p.Index+1),
		"style", fmt.Sprintf("position:relative;overflow:hidden;width:%s;height:%s", px(p.Width*b.scale), px(p.Height*b.scale)))

	for _, l := range p.Layers {
		switch l.Kind {
		case flatten.LayerRaster:
			for _, t := range l.Tiles {
				img, err := b.image(t.Image, b.opts.PreferJPG)
				if err != nil {
					return nil, err
				}
				img.Attr = append(img.Attr, xhtml.Attribute{Key: "style", Val: b.box(t.Bounds.Min.X, t.Bounds.Min.Y, t.Bounds.Width(), t.Bounds.Height())})
				div.AppendChild(img)
			}
		case flatten.LayerAnnotations:
			for i := range l.Runs {
				div.AppendChild(b.annotation(&l.Runs[i]))
			}
		default:
			if err := b.vector(div, p, l.Runs); err != nil {
				return nil, err
			}
		}
	}
	return div, nil
}

func (b *pageBuilder) box(x, y, w, h float64) string {
	s := b.scale
	return fmt.Sprintf("position:absolute;left:%s;top:%s;width:%s;height:%s", px(x*s), px(y*s), px(w*s), px(h*s))
}

func (b *pageBuilder) image(img image.Image, preferJPEG bool) (*xhtml.Node, error) {
	src, err := b.sink(img, codec.ForTile(img, preferJPEG, b.opts.JPEGQuality))
	if err != nil {
		return nil, err
	}
	return element(atom.Img, "src", src, "alt", ""), nil
}

// vector appends the runs of a vector layer. Consecutive non-text runs
// share one inline svg element.
func (b *pageBuilder) vector(div *xhtml.Node, p *backend.Page, runs []content.Run) error {
	if b.opts.SimplifyText {
		runs = mergeText(runs)
	}
	var svg *xhtml.Node
	for i := range runs {
		r := &runs[i]
		switch r.Kind {
		case content.KindText:
			svg = nil
			div.AppendChild(b.text(r))
		case content.KindImage:
			svg = nil
			if r.Image == nil {
				continue
			}
			img, err := b.image(r.Image, false)
			if err != nil {
				return err
			}
			img.Attr = append(img.Attr, xhtml.Attribute{Key: "style", Val: b.box(r.Bounds.Min.X, r.Bounds.Min.Y, r.Bounds.Width(), r.Bounds.Height())})
			div.AppendChild(img)
		case content.KindAnnotation:
			svg = nil
			div.AppendChild(b.annotation(r))
		case content.KindPath, content.KindShading:
			if svg == nil {
				svg = element(atom.Svg,
					"xmlns", "http://www.w3.org/2000/svg",
					"viewBox", fmt.Sprintf("0 0 %s %s", backend.Num(p.Width), backend.Num(p.Height)),
					"style", b.box(0, 0, p.Width, p.Height))
				div.AppendChild(svg)
			}
			shape, err := svgShape(r)
			if err != nil {
				return err
			}
			if shape != nil {
				svg.AppendChild(shape)
			}
		}
	}
	return nil
}

func svgShape(r *content.Run) (*xhtml.Node, error) {
	c := r.FillColor()
	fill := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	opacity := backend.Num(float64(c.A) / 255)

	var d string
	if r.Kind == content.KindPath {
		if r.Path == nil {
			return nil, nil
		}
		var err error
		if d, err = backend.PathData(r.Path, false); err != nil {
			return nil, err
		}
	} else {
		b := r.Bounds
		d = fmt.Sprintf("M%s,%sH%sV%sH%sZ", backend.Num(b.Min.X), backend.Num(b.Min.Y), backend.Num(b.Max.X), backend.Num(b.Max.Y), backend.Num(b.Min.X))
	}
	n := &xhtml.Node{Type: xhtml.ElementNode, Data: "path", Attr: []xhtml.Attribute{
		{Key: "d", Val: d}, {Key: "fill", Val: fill},
	}}
	if c.A != 0xff {
		n.Attr = append(n.Attr, xhtml.Attribute{Key: "fill-opacity", Val: opacity})
	}
	return n, nil
}

func (b *pageBuilder) text(r *content.Run) *xhtml.Node {
	size := r.FontSize
	if size <= 0 {
		size = 12
	}
	top := r.Origin.Y - size*0.8
	if !r.Bounds.Empty() {
		top = r.Bounds.Min.Y
	}
	style := fmt.Sprintf("position:absolute;white-space:pre;left:%s;top:%s;font-size:%s;line-height:1;color:%s",
		px(r.Origin.X*b.scale), px(top*b.scale), px(size*b.scale), cssColor(r))
	if r.Font != "" {
		style += fmt.Sprintf(";font-family:%q", r.Font)
	}
	span := element(atom.Span, "style", style)
	span.AppendChild(textNode(r.Text))
	return span
}

func (b *pageBuilder) annotation(r *content.Run) *xhtml.Node {
	a := element(atom.A, "class", "annot", "style", b.box(r.Bounds.Min.X, r.Bounds.Min.Y, r.Bounds.Width(), r.Bounds.Height()))
	if r.Annotation != nil {
		if r.Annotation.URI != "" {
			a.Attr = append(a.Attr, xhtml.Attribute{Key: "href", Val: r.Annotation.URI})
		}
		if r.Annotation.Contents != "" {
			a.Attr = append(a.Attr, xhtml.Attribute{Key: "title", Val: norm.NFC.String(r.Annotation.Contents)})
		}
	}
	return a
}

// mergeText joins consecutive text runs that share a baseline, size and
// color into one run.
func mergeText(runs []content.Run) []content.Run {
	out := make([]content.Run, 0, len(runs))
	for _, r := range runs {
		if n := len(out); n > 0 && r.Kind == content.KindText && sameLine(&out[n-1], &r) {
			prev := &out[n-1]
			if r.Bounds.Min.X-prev.Bounds.Max.X > r.FontSize*0.2 || prev.Bounds.Empty() || r.Bounds.Empty() {
				prev.Text += " "
			}
			prev.Text += r.Text
			prev.Bounds = prev.Bounds.Union(r.Bounds)
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameLine(a, b *content.Run) bool {
	return a.Kind == content.KindText &&
		math.Abs(a.Origin.Y-b.Origin.Y) < 0.5 &&
		a.FontSize == b.FontSize &&
		a.FillColor() == b.FillColor() &&
		a.Font == b.Font &&
		a.Invisible == b.Invisible &&
		b.Origin.X >= a.Origin.X
}

// reflow emits the page's text in reading order as paragraphs. Raster
// tiles precede the text as full-width figures.
func (b *pageBuilder) reflow(p *backend.Page) (*xhtml.Node, error) {
	section := element(atom.Section, "class", "page", "id", fmt.Sprintf("page%d", p.Index+1))

	var texts []content.Run
	for _, l := range p.Layers {
		switch l.Kind {
		case flatten.LayerRaster:
			for _, t := range l.Tiles {
				img, err := b.image(t.Image, b.opts.PreferJPG)
				if err != nil {
					return nil, err
				}
				img.Attr = append(img.Attr, xhtml.Attribute{Key: "style", Val: "display:block;width:100%"})
				section.AppendChild(img)
			}
		case flatten.LayerAnnotations:
		default:
			for _, r := range l.Runs {
				if r.Kind == content.KindText && strings.TrimSpace(r.Text) != "" {
					texts = append(texts, r)
				}
			}
		}
	}

	slices.SortStableFunc(texts, func(x, y content.Run) int {
		if math.Abs(x.Origin.Y-y.Origin.Y) >= 0.5 {
			return cmp.Compare(x.Origin.Y, y.Origin.Y)
		}
		return cmp.Compare(x.Origin.X, y.Origin.X)
	})

	var para strings.Builder
	flush := func() {
		if para.Len() == 0 {
			return
		}
		pn := element(atom.P)
		pn.AppendChild(textNode(para.String()))
		section.AppendChild(pn)
		para.Reset()
	}
	lastY := math.Inf(-1)
	for _, r := range texts {
		size := max(r.FontSize, 1)
		switch dy := r.Origin.Y - lastY; {
		case dy > size*1.5:
			flush()
		case para.Len() > 0:
			para.WriteByte(' ')
		}
		para.WriteString(strings.TrimSpace(r.Text))
		lastY = r.Origin.Y
	}
	flush()
	return section, nil
}
