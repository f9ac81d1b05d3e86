// Package fixedpage builds FixedPage markup, the XAML page format shared
// by the XOD and XPS writers.
//
// A Page collects the markup of one output page together with the image
// parts it references. The writer names those parts and stores them; the
// markup refers to them by absolute part name.
package fixedpage

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

// Namespaces of FixedPage and FixedDocument markup.
const (
	Namespace        = "http://schemas.microsoft.com/xps/2005/06"
	OpenXPSNamespace = "http://schemas.openxps.org/oxps/v1.0"
)

// Style configures the markup of a page.
type Style struct {
	// Namespace defaults to the Microsoft XPS namespace.
	Namespace string

	// ImagePart names the seq-th image of the page (counting from 1)
	// with extension ext.
	ImagePart func(seq int, ext string) string

	// FontURI, if set, is the font part of every Glyphs element.
	FontURI string
}

// Image is an image part referenced from a page.
type Image struct {
	// Name is the part name without a leading slash.
	Name string

	Img image.Image
	Enc codec.Encoder
}

// Page accumulates the markup of one FixedPage. It is not safe for
// concurrent use.
type Page struct {
	sb    strings.Builder
	style Style

	// Images lists the image parts in the order the markup references
	// them.
	Images []Image
}

// New starts a page of the given size in page units.
func New(width, height float64, st Style) *Page {
	if st.Namespace == "" {
		st.Namespace = Namespace
	}
	p := &Page{style: st}
	fmt.Fprintf(&p.sb, `<FixedPage xmlns="%s" Width="%s" Height="%s" xml:lang="und">`+"\n",
		st.Namespace, backend.Num(width), backend.Num(height))
	return p
}

// BeginCanvas opens the canvas of layer index li.
func (p *Page) BeginCanvas(kind flatten.LayerKind, li int) {
	fmt.Fprintf(&p.sb, "<Canvas Name=%q>\n", fmt.Sprintf("%s%d", canvasName(kind), li+1))
}

// EndCanvas closes the open canvas.
func (p *Page) EndCanvas() {
	p.sb.WriteString("</Canvas>\n")
}

// Tile places a raster tile encoded with enc.
func (p *Page) Tile(t backend.Tile, enc codec.Encoder) {
	name := p.style.ImagePart(len(p.Images)+1, enc.Ext())
	p.Images = append(p.Images, Image{Name: name, Img: t.Image, Enc: enc})
	p.imagePath(name, t.Bounds, t.Image.Bounds(), "")
}

// Run writes one vector run. Image runs are stored as PNG parts.
func (p *Page) Run(r *content.Run) error {
	clip := clipAttr(r)
	switch r.Kind {
	case content.KindText:
		size := r.FontSize
		if size <= 0 {
			size = 12
		}
		fill := argb(r.FillColor())
		if r.Invisible {
			fill = "#00000000"
		}
		font := ""
		if p.style.FontURI != "" {
			font = fmt.Sprintf(` FontUri="%s"`, p.style.FontURI)
		}
		fmt.Fprintf(&p.sb, `<Glyphs OriginX="%s" OriginY="%s" FontRenderingEmSize="%s"%s UnicodeString="%s" Fill="%s"%s/>`+"\n",
			backend.Num(r.Origin.X), backend.Num(r.Origin.Y), backend.Num(size), font, backend.Escape(r.Text), fill, clip)
	case content.KindPath:
		if r.Path == nil {
			return nil
		}
		d, err := backend.PathData(r.Path, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(&p.sb, `<Path Data="%s" Fill="%s"%s/>`+"\n", d, argb(r.FillColor()), clip)
	case content.KindImage:
		if r.Image == nil {
			return nil
		}
		enc := codec.PNG()
		name := p.style.ImagePart(len(p.Images)+1, enc.Ext())
		p.Images = append(p.Images, Image{Name: name, Img: r.Image, Enc: enc})
		p.imagePath(name, r.Bounds, r.Image.Bounds(), clip)
	case content.KindShading:
		fmt.Fprintf(&p.sb, `<Path Data="%s" Fill="%s"%s/>`+"\n", rectData(r.Bounds), argb(r.FillColor()), clip)
	}
	return nil
}

// Link places a transparent hot spot over b that navigates to uri.
func (p *Page) Link(b geom.Rect, uri string) {
	fmt.Fprintf(&p.sb, `<Path Data="%s" Fill="#00000000" FixedPage.NavigateUri="%s"/>`+"\n",
		rectData(b), backend.Escape(uri))
}

// Markup returns the finished FixedPage document.
func (p *Page) Markup() string {
	return p.sb.String() + "</FixedPage>\n"
}

func (p *Page) imagePath(name string, b geom.Rect, px image.Rectangle, clip string) {
	fmt.Fprintf(&p.sb, `<Path Data="%s"%s><Path.Fill><ImageBrush ImageSource="/%s" Viewbox="0,0,%d,%d" ViewboxUnits="Absolute" Viewport="%s,%s,%s,%s" ViewportUnits="Absolute"/></Path.Fill></Path>`+"\n",
		rectData(b), clip, name, px.Dx(), px.Dy(),
		backend.Num(b.Min.X), backend.Num(b.Min.Y), backend.Num(b.Width()), backend.Num(b.Height()))
}

func canvasName(k flatten.LayerKind) string {
	switch k {
	case flatten.LayerRaster:
		return "Raster"
	case flatten.LayerTextOverlay:
		return "Text"
	}
	return "Vector"
}

// argb formats c the way XAML expects: #AARRGGBB.
func argb(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}

func rectData(b geom.Rect) string {
	return fmt.Sprintf("M%s,%sL%s,%sL%s,%sL%s,%sZ",
		backend.Num(b.Min.X), backend.Num(b.Min.Y),
		backend.Num(b.Max.X), backend.Num(b.Min.Y),
		backend.Num(b.Max.X), backend.Num(b.Max.Y),
		backend.Num(b.Min.X), backend.Num(b.Max.Y))
}

func clipAttr(r *content.Run) string {
	if r.Clip == (geom.Rect{}) {
		return ""
	}
	return fmt.Sprintf(` Clip="%s"`, rectData(r.Clip))
}
