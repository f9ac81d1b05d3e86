// Package epub writes converted documents as EPUB 3 publications, either
// zipped or expanded into a directory.
//
// Pages are XHTML documents built by the html package. Without reflow
// the publication is fixed-layout (pre-paginated) with one viewport per
// page.
package epub

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/backend/html"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/internal/raster"
)

func init() {
	backend.Register("epub", func(opts any) (backend.Writer, error) {
		o, err := backend.Options(opts, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return New(o), nil
	})
}

// CoverSize bounds the rendered cover image, in pixels.
const CoverSize = 1200

// Options configures the EPUB writer.
type Options struct {
	HTML html.Options

	// Expanded writes the publication as a directory tree.
	Expanded bool

	// ReuseCover uses the first image of the first page as the cover
	// instead of rendering one.
	ReuseCover bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{HTML: html.DefaultOptions()}
}

type item struct {
	id, href, mediaType, properties string
}

// Writer implements backend.Writer.
type Writer struct {
	opts Options
	info backend.Info
	c    artifact.Container

	items  []item
	spine  []string
	titles []string
	cover  string
	render *raster.Renderer
}

var _ backend.Writer = (*Writer)(nil)

// New returns an EPUB writer.
func New(opts Options) *Writer {
	return &Writer{opts: opts, render: raster.New()}
}

// Caps reports that EPUB keeps vector content in multiple parts.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{MultiPart: true}
}

// Begin writes the mimetype and container parts.
func (w *Writer) Begin(out backend.Output, info backend.Info) error {
	if w.opts.Expanded && out.Dir == nil {
		return fmt.Errorf("epub: expanded output needs a directory target")
	}
	if out.W == nil && out.Dir == nil {
		return fmt.Errorf("epub: no output")
	}
	w.info = info
	w.c = out.Container()

	mt, err := w.c.CreateStored("mimetype")
	if err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	if _, err := io.WriteString(mt, "application/epub+zip"); err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	if err := w.part("META-INF/container.xml", containerXML); err != nil {
		return err
	}
	if err := w.part("OEBPS/style.css", html.Stylesheet); err != nil {
		return err
	}
	w.items = append(w.items, item{id: "css", href: "style.css", mediaType: "text/css"})
	return nil
}

// WritePage writes the page XHTML and its images.
func (w *Writer) WritePage(p *backend.Page) error {
	n := len(w.spine) + 1
	var images []pendingImage
	sink := func(img image.Image, enc codec.Encoder) (string, error) {
		name := fmt.Sprintf("images/p%d_%d%s", n, len(images)+1, enc.Ext())
		images = append(images, pendingImage{name: name, img: img, enc: enc})
		return "../" + name, nil
	}
	body, err := html.BuildPage(p, w.opts.HTML, sink)
	if err != nil {
		return fmt.Errorf("epub: page %d: %w", n, err)
	}

	for i, img := range images {
		dst, err := w.c.Create("OEBPS/" + img.name)
		if err != nil {
			return fmt.Errorf("epub: %w", err)
		}
		if err := img.enc.Encode(dst, img.img); err != nil {
			return fmt.Errorf("epub: %s: %w", img.name, err)
		}
		id := fmt.Sprintf("img%d_%d", n, i+1)
		if n == 1 && i == 0 && w.opts.ReuseCover {
			id = "cover-image"
			w.cover = img.name
		}
		it := item{id: id, href: img.name, mediaType: img.enc.MediaType()}
		if id == "cover-image" {
			it.properties = "cover-image"
		}
		w.items = append(w.items, it)
	}
	if n == 1 && w.cover == "" {
		if err := w.writeCover(p); err != nil {
			return err
		}
	}

	name := fmt.Sprintf("pages/page%d.xhtml", n)
	var sb strings.Builder
	sb.WriteString(xhtmlProlog)
	head := element(atom.Head)
	title := element(atom.Title)
	title.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: fmt.Sprintf("Page %d", n)})
	head.AppendChild(title)
	if !w.opts.HTML.Reflow {
		scale := w.opts.HTML.Scale
		if scale <= 0 {
			scale = 1
		}
		head.AppendChild(element(atom.Meta, "name", "viewport",
			"content", fmt.Sprintf("width=%s, height=%s", backend.Num(p.Width*scale), backend.Num(p.Height*scale))))
	}
	head.AppendChild(element(atom.Link, "rel", "stylesheet", "type", "text/css", "href", "../style.css"))
	if err := xhtml.Render(&sb, head); err != nil {
		return err
	}
	bodyEl := element(atom.Body)
	bodyEl.AppendChild(body)
	if err := xhtml.Render(&sb, bodyEl); err != nil {
		return err
	}
	sb.WriteString("</html>\n")
	if err := w.part("OEBPS/"+name, sb.String()); err != nil {
		return err
	}

	id := fmt.Sprintf("page%d", n)
	it := item{id: id, href: name, mediaType: "application/xhtml+xml"}
	if strings.Contains(sb.String(), "<svg") {
		it.properties = "svg"
	}
	w.items = append(w.items, it)
	w.spine = append(w.spine, id)
	w.titles = append(w.titles, fmt.Sprintf("Page %d", n))
	return nil
}

// End writes the navigation document and package file and closes the
// container.
func (w *Writer) End() error {
	if err := w.part("OEBPS/nav.xhtml", w.nav()); err != nil {
		return err
	}
	w.items = append(w.items, item{id: "nav", href: "nav.xhtml", mediaType: "application/xhtml+xml", properties: "nav"})
	if err := w.part("OEBPS/content.opf", w.opf(time.Now().UTC())); err != nil {
		return err
	}
	return w.c.Close()
}

type pendingImage struct {
	name string
	img  image.Image
	enc  codec.Encoder
}

func (w *Writer) writeCover(p *backend.Page) error {
	full, err := backend.Composite(context.Background(), p, w.render)
	if err != nil {
		return fmt.Errorf("epub: cover: %w", err)
	}
	cover := imaging.Fit(full, CoverSize, CoverSize, imaging.Lanczos)
	dst, err := w.c.Create("OEBPS/images/cover.jpg")
	if err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	q := w.opts.HTML.JPEGQuality
	if q <= 0 {
		q = codec.DefaultJPEGQuality
	}
	if err := imaging.Encode(dst, cover, imaging.JPEG, imaging.JPEGQuality(min(q, 100))); err != nil {
		return fmt.Errorf("epub: cover: %w", err)
	}
	w.cover = "images/cover.jpg"
	w.items = append(w.items, item{id: "cover-image", href: w.cover, mediaType: "image/jpeg", properties: "cover-image"})
	return nil
}

func (w *Writer) part(name, data string) error {
	dst, err := w.c.Create(name)
	if err != nil {
		return fmt.Errorf("epub: %s: %w", name, err)
	}
	if _, err := io.WriteString(dst, data); err != nil {
		return fmt.Errorf("epub: %s: %w", name, err)
	}
	return nil
}

func element(a atom.Atom, attrs ...string) *xhtml.Node {
	n := &xhtml.Node{Type: xhtml.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, xhtml.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles>
<rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
</rootfiles>
</container>
`

const xhtmlProlog = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="und" xml:lang="und">
`

func (w *Writer) nav() string {
	var sb strings.Builder
	sb.WriteString(xhtmlProlog)
	sb.WriteString("<head><title>Contents</title></head>\n<body>\n<nav epub:type=\"toc\" id=\"toc\">\n<ol>\n")
	for i, t := range w.titles {
		fmt.Fprintf(&sb, "<li><a href=\"pages/page%d.xhtml\">%s</a></li>\n", i+1, backend.Escape(t))
	}
	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return sb.String()
}

func (w *Writer) opf(modified time.Time) string {
	doc := w.info.Doc
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">` + "\n")
	sb.WriteString(`<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&sb, "<dc:identifier id=\"uid\">urn:uuid:%s</dc:identifier>\n", uuid.NewString())
	fmt.Fprintf(&sb, "<dc:title>%s</dc:title>\n", backend.Escape(title))
	sb.WriteString("<dc:language>und</dc:language>\n")
	if doc.Author != "" {
		fmt.Fprintf(&sb, "<dc:creator>%s</dc:creator>\n", backend.Escape(doc.Author))
	}
	if doc.Subject != "" {
		fmt.Fprintf(&sb, "<dc:subject>%s</dc:subject>\n", backend.Escape(doc.Subject))
	}
	fmt.Fprintf(&sb, "<meta property=\"dcterms:modified\">%s</meta>\n", modified.Format("2006-01-02T15:04:05Z"))
	if !w.opts.HTML.Reflow {
		sb.WriteString("<meta property=\"rendition:layout\">pre-paginated</meta>\n")
	}
	if w.cover != "" {
		sb.WriteString("<meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	sb.WriteString("</metadata>\n<manifest>\n")
	for _, it := range w.items {
		fmt.Fprintf(&sb, "<item id=%q href=%q media-type=%q", it.id, it.href, it.mediaType)
		if it.properties != "" {
			fmt.Fprintf(&sb, " properties=%q", it.properties)
		}
		sb.WriteString("/>\n")
	}
	sb.WriteString("</manifest>\n<spine>\n")
	for _, id := range w.spine {
		fmt.Fprintf(&sb, "<itemref idref=%q/>\n", id)
	}
	sb.WriteString("</spine>\n</package>\n")
	return sb.String()
}
