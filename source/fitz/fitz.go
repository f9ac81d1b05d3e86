// Package fitz opens PDF, XPS, EPUB and comic-book files through MuPDF
// (github.com/gen2brain/go-fitz).
//
// MuPDF renders each page as one raster image. The page text, read from
// MuPDF's positioned HTML output, is laid over the image as invisible text
// runs so converted output stays searchable.
package fitz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	xhtml "golang.org/x/net/html"

	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/geom"
	"github.com/gogpu/convert/source"
)

// DefaultDPI is the resolution pages are rendered at.
const DefaultDPI = 144

func init() {
	for _, ext := range []string{".pdf", ".xps", ".oxps", ".epub", ".cbz", ".fb2", ".mobi"} {
		source.Register(ext, func(_ context.Context, path string) (content.Document, error) {
			return Open(path, DefaultDPI)
		})
	}
}

// Document is a MuPDF-backed content.Document. Close releases it.
type Document struct {
	mu  sync.Mutex
	doc *fitz.Document
	dpi float64
	inf content.Info
}

var (
	_ content.Document = (*Document)(nil)
	_ content.Closer   = (*Document)(nil)
)

// Open opens path, rendering pages at dpi.
func Open(path string, dpi float64) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("fitz: open %s: %w", path, err)
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	md := doc.Metadata()
	return &Document{
		doc: doc,
		dpi: dpi,
		inf: content.Info{
			Title:    md["title"],
			Author:   md["author"],
			Subject:  md["subject"],
			Producer: md["producer"],
		},
	}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

// Info returns the document metadata.
func (d *Document) Info() content.Info {
	return d.inf
}

// Page renders page i and extracts its text.
func (d *Document) Page(ctx context.Context, i int) (*content.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if i < 0 || i >= d.doc.NumPage() {
		return nil, fmt.Errorf("fitz: page %d: %w", i, content.ErrPageRange)
	}
	bound, err := d.doc.Bound(i)
	if err != nil {
		return nil, fmt.Errorf("fitz: page %d bounds: %w", i, err)
	}
	img, err := d.doc.ImageDPI(i, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("fitz: render page %d: %w", i, err)
	}

	page := &content.Page{
		Index:  i,
		Width:  float64(bound.Dx()),
		Height: float64(bound.Dy()),
	}
	page.Runs = append(page.Runs, content.Run{
		Kind:   content.KindImage,
		Bounds: page.Bounds(),
		Opaque: true,
		Image:  img,
	})

	markup, err := d.doc.HTML(i, false)
	if err != nil {
		// The raster alone is a usable page.
		return page, nil
	}
	page.Runs = append(page.Runs, textRuns(markup)...)
	return page, nil
}

// Close releases the MuPDF document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}

// textRuns extracts positioned text from MuPDF HTML output, where each
// line is a <p> absolutely positioned in points:
//
//	<p style="top:72.5pt;left:72.0pt;line-height:12.0pt"><span style="font-family:Times,serif;font-size:12.0pt">Hello</span></p>
func textRuns(markup string) []content.Run {
	root, err := xhtml.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var runs []content.Run
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "p" {
			if run, ok := lineRun(n); ok {
				runs = append(runs, run)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return runs
}

func lineRun(p *xhtml.Node) (content.Run, bool) {
	style := parseStyle(attr(p, "style"))
	top, okTop := points(style["top"])
	left, okLeft := points(style["left"])
	if !okTop || !okLeft {
		return content.Run{}, false
	}

	var sb strings.Builder
	size, family := 0.0, ""
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			sb.WriteString(n.Data)
		case xhtml.ElementNode:
			if n.Data == "span" && size == 0 {
				s := parseStyle(attr(n, "style"))
				size, _ = points(s["font-size"])
				family = strings.Trim(strings.Split(s["font-family"], ",")[0], `"' `)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p)

	text := strings.TrimRight(sb.String(), "\n")
	if strings.TrimSpace(text) == "" {
		return content.Run{}, false
	}
	if size <= 0 {
		size, _ = points(style["line-height"])
	}
	if size <= 0 {
		size = 12
	}
	return content.Run{
		Kind:      content.KindText,
		Invisible: true,
		Text:      text,
		FontSize:  size,
		Font:      family,
		Origin:    geom.Pt(left, top+size*0.8),
	}, true
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return out
}

func points(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}
