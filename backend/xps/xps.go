// Package xps writes converted documents as XPS or OpenXPS packages.
//
// The package is a zip archive following the Open Packaging Conventions:
//
//	[Content_Types].xml
//	_rels/.rels
//	docProps/core.xml
//	FixedDocSeq.fdseq
//	Documents/1/FixedDoc.fdoc
//	Documents/1/Pages/1.fpage ...
//	Documents/1/Pages/_rels/1.fpage.rels ...
//	Documents/1/Resources/Images/1_1.png ...
//	Resources/Fonts/GoRegular.ttf
//
// Text is set in the embedded Go Regular font. Link annotations become
// hot spots on the page; XPS has no place for other annotations, which
// are dropped unless they were flattened into the page.
package xps

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/backend/fixedpage"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
)

func init() {
	backend.Register("xps", func(opts any) (backend.Writer, error) {
		o, err := backend.Options(opts, DefaultOptions())
		if err != nil {
			return nil, err
		}
		return New(o), nil
	})
}

// Options configures the XPS writer.
type Options struct {
	PreferJPG   bool
	JPEGQuality int

	// OpenXPS writes the ECMA-388 flavour instead of Microsoft XPS.
	OpenXPS bool
}

// DefaultOptions returns the default options: Microsoft XPS with PNG
// tiles.
func DefaultOptions() Options {
	return Options{JPEGQuality: codec.DefaultJPEGQuality}
}

const (
	docRoot  = "Documents/1/"
	fontPart = "Resources/Fonts/GoRegular.ttf"

	relsCoreProps = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
)

// dialect holds what differs between Microsoft XPS and OpenXPS.
type dialect struct {
	ns       string
	startRel string
	resRel   string
}

var (
	msXPS = dialect{
		ns:       fixedpage.Namespace,
		startRel: "http://schemas.microsoft.com/xps/2005/06/fixedrepresentation",
		resRel:   "http://schemas.microsoft.com/xps/2005/06/required-resource",
	}
	openXPS = dialect{
		ns:       fixedpage.OpenXPSNamespace,
		startRel: "http://schemas.openxps.org/oxps/v1.0/fixedrepresentation",
		resRel:   "http://schemas.openxps.org/oxps/v1.0/required-resource",
	}
)

type pageEntry struct {
	number        int
	width, height float64
}

// Writer implements backend.Writer.
type Writer struct {
	opts Options
	d    dialect
	c    artifact.Container
	info content.Info

	pages   []pageEntry
	hasText bool
}

var _ backend.Writer = (*Writer)(nil)

// New returns an XPS writer.
func New(opts Options) *Writer {
	w := &Writer{opts: opts, d: msXPS}
	if opts.OpenXPS {
		w.d = openXPS
	}
	return w
}

// Caps reports that FixedPage path data has no quadratic or conic form.
// XPS is always a single zip package.
func (w *Writer) Caps() backend.Caps {
	return backend.Caps{CubicOnly: true}
}

// Begin opens the zip package.
func (w *Writer) Begin(out backend.Output, info backend.Info) error {
	if out.W == nil {
		return fmt.Errorf("xps: no output")
	}
	w.c = artifact.NewZip(out.W)
	w.info = info.Doc
	return nil
}

// WritePage writes the FixedPage, its relationships and its images.
func (w *Writer) WritePage(p *backend.Page) error {
	n := len(w.pages) + 1
	fp := fixedpage.New(p.Width, p.Height, fixedpage.Style{
		Namespace: w.d.ns,
		ImagePart: func(seq int, ext string) string {
			return fmt.Sprintf("%sResources/Images/%d_%d%s", docRoot, n, seq, ext)
		},
		FontURI: "/" + fontPart,
	})
	text := false
	for li, l := range p.Layers {
		if l.Kind == flatten.LayerAnnotations {
			for _, r := range l.Runs {
				if r.Annotation != nil && r.Annotation.URI != "" {
					fp.Link(r.Bounds, r.Annotation.URI)
				}
			}
			continue
		}
		fp.BeginCanvas(l.Kind, li)
		if l.Kind == flatten.LayerRaster {
			for _, t := range l.Tiles {
				fp.Tile(t, codec.ForTile(t.Image, w.opts.PreferJPG, w.quality()))
			}
		} else {
			for i := range l.Runs {
				if l.Runs[i].Kind == content.KindText {
					text = true
				}
				if err := fp.Run(&l.Runs[i]); err != nil {
					return fmt.Errorf("xps: page %d: %w", n, err)
				}
			}
		}
		fp.EndCanvas()
	}

	name := fmt.Sprintf("%sPages/%d.fpage", docRoot, n)
	if err := w.part(name, fp.Markup()); err != nil {
		return err
	}
	var res []string
	for _, img := range fp.Images {
		res = append(res, img.Name)
		dst, err := w.c.CreateStored(img.Name)
		if err != nil {
			return fmt.Errorf("xps: %s: %w", img.Name, err)
		}
		if err := img.Enc.Encode(dst, img.Img); err != nil {
			return fmt.Errorf("xps: %s: %w", img.Name, err)
		}
	}
	if text {
		res = append(res, fontPart)
		w.hasText = true
	}
	if len(res) > 0 {
		rels := fmt.Sprintf("%sPages/_rels/%d.fpage.rels", docRoot, n)
		if err := w.part(rels, relationships(w.d.resRel, res...)); err != nil {
			return err
		}
	}
	w.pages = append(w.pages, pageEntry{number: n, width: p.Width, height: p.Height})
	return nil
}

// End writes the document structure and closes the package.
func (w *Writer) End() error {
	var fdoc strings.Builder
	fmt.Fprintf(&fdoc, "<FixedDocument xmlns=%q>\n", w.d.ns)
	for _, pe := range w.pages {
		fmt.Fprintf(&fdoc, `<PageContent Source="Pages/%d.fpage" Width="%s" Height="%s"/>`+"\n",
			pe.number, backend.Num(pe.width), backend.Num(pe.height))
	}
	fdoc.WriteString("</FixedDocument>\n")

	parts := []struct{ name, body string }{
		{docRoot + "FixedDoc.fdoc", fdoc.String()},
		{"FixedDocSeq.fdseq", fmt.Sprintf("<FixedDocumentSequence xmlns=%q>\n<DocumentReference Source=\"/%sFixedDoc.fdoc\"/>\n</FixedDocumentSequence>\n", w.d.ns, docRoot)},
		{"docProps/core.xml", coreProperties(w.info)},
		{"_rels/.rels", packageRels(w.d.startRel)},
		{"[Content_Types].xml", contentTypes},
	}
	for _, pt := range parts {
		if err := w.part(pt.name, pt.body); err != nil {
			return err
		}
	}
	if w.hasText {
		dst, err := w.c.CreateStored(fontPart)
		if err != nil {
			return fmt.Errorf("xps: %s: %w", fontPart, err)
		}
		if _, err := dst.Write(goregular.TTF); err != nil {
			return fmt.Errorf("xps: %s: %w", fontPart, err)
		}
	}
	return w.c.Close()
}

func (w *Writer) part(name, body string) error {
	dst, err := w.c.Create(name)
	if err != nil {
		return fmt.Errorf("xps: %s: %w", name, err)
	}
	if _, err := io.WriteString(dst, body); err != nil {
		return fmt.Errorf("xps: %s: %w", name, err)
	}
	return nil
}

func (w *Writer) quality() int {
	if w.opts.JPEGQuality <= 0 {
		return codec.DefaultJPEGQuality
	}
	return min(w.opts.JPEGQuality, 100)
}

// relationships lists targets of one relationship type.
func relationships(typ string, targets ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n")
	for i, t := range targets {
		fmt.Fprintf(&sb, `<Relationship Id="R%d" Type="%s" Target="/%s"/>`+"\n", i+1, typ, t)
	}
	sb.WriteString("</Relationships>\n")
	return sb.String()
}

func packageRels(startRel string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n")
	fmt.Fprintf(&sb, `<Relationship Id="R1" Type="%s" Target="/FixedDocSeq.fdseq"/>`+"\n", startRel)
	fmt.Fprintf(&sb, `<Relationship Id="R2" Type="%s" Target="/docProps/core.xml"/>`+"\n", relsCoreProps)
	sb.WriteString("</Relationships>\n")
	return sb.String()
}

func coreProperties(info content.Info) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	for _, f := range []struct{ tag, v string }{
		{"dc:title", info.Title},
		{"dc:creator", info.Author},
		{"dc:subject", info.Subject},
	} {
		if f.v != "" {
			fmt.Fprintf(&sb, "<%s>%s</%s>\n", f.tag, backend.Escape(f.v), f.tag)
		}
	}
	sb.WriteString("</cp:coreProperties>\n")
	return sb.String()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="fdseq" ContentType="application/vnd.ms-package.xps-fixeddocumentsequence+xml"/>
<Default Extension="fdoc" ContentType="application/vnd.ms-package.xps-fixeddocument+xml"/>
<Default Extension="fpage" ContentType="application/vnd.ms-package.xps-fixedpage+xml"/>
<Default Extension="ttf" ContentType="application/vnd.ms-opentype"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpg" ContentType="image/jpeg"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>
`
