package xod

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/content"
)

// xfdfAnnot is one annotation in XFDF form. Rect is in PDF space: origin
// bottom-left, y up.
type xfdfAnnot struct {
	page int
	a    content.Annotation
	rect [4]float64
}

func newAnnot(page int, height float64, r *content.Run) xfdfAnnot {
	x := xfdfAnnot{page: page}
	if r.Annotation != nil {
		x.a = *r.Annotation
	}
	b := r.Bounds
	x.rect = [4]float64{b.Min.X, height - b.Max.Y, b.Max.X, height - b.Min.Y}
	return x
}

// element maps a subtype to its XFDF element name.
func (x *xfdfAnnot) element() string {
	switch s := strings.ToLower(x.a.Subtype); s {
	case "":
		if x.a.URI != "" {
			return "link"
		}
		return "text"
	case "text", "link", "highlight", "underline", "strikeout", "square", "circle",
		"freetext", "ink", "line", "polygon", "polyline", "stamp", "caret", "squiggly":
		return s
	}
	return "text"
}

func writeXFDF(w io.Writer, annots []xfdfAnnot) error {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<xfdf xmlns="http://ns.adobe.com/xfdf/" xml:space="preserve">` + "\n<annots>\n")
	for i := range annots {
		x := &annots[i]
		el := x.element()
		fmt.Fprintf(&sb, `<%s page="%d" rect="%s,%s,%s,%s" name="a%d"`, el, x.page,
			backend.Num(x.rect[0]), backend.Num(x.rect[1]), backend.Num(x.rect[2]), backend.Num(x.rect[3]), i+1)
		if x.a.Author != "" {
			fmt.Fprintf(&sb, ` title="%s"`, backend.Escape(x.a.Author))
		}
		sb.WriteString(">")
		if x.a.Contents != "" {
			fmt.Fprintf(&sb, "<contents>%s</contents>", backend.Escape(x.a.Contents))
		}
		if el == "link" && x.a.URI != "" {
			fmt.Fprintf(&sb, `<OnActivation><Action Trigger="U"><URI Name="%s"/></Action></OnActivation>`, backend.Escape(x.a.URI))
		}
		fmt.Fprintf(&sb, "</%s>\n", el)
	}
	sb.WriteString("</annots>\n</xfdf>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
