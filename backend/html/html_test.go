package html

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	xhtml "golang.org/x/net/html"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/codec"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

func textRun(s string, x, y float64) content.Run {
	return content.Run{
		Kind:     content.KindText,
		Text:     s,
		FontSize: 10,
		Origin:   geom.Pt(x, y),
		Bounds:   geom.XYWH(x, y-8, float64(len(s))*5, 10),
	}
}

func testPage() *backend.Page {
	tile := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	path := geom.NewPath()
	path.MoveTo(0, 0)
	path.LineTo(10, 0)
	path.LineTo(10, 10)
	path.Close()
	return &backend.Page{
		Index: 0, Width: 200, Height: 100, Scale: 1,
		Layers: []backend.Layer{
			{Kind: flatten.LayerRaster, Tiles: []backend.Tile{{Rect: tile.Bounds(), Bounds: geom.XYWH(0, 0, 200, 100), Image: tile}}},
			{Kind: flatten.LayerVector, Runs: []content.Run{
				textRun("Hello", 10, 20),
				textRun("world", 40, 20),
				{Kind: content.KindPath, Path: path, Fill: color.NRGBA{B: 0xff, A: 0xff}},
				textRun("Second <para>", 10, 60),
			}},
			{Kind: flatten.LayerAnnotations, Runs: []content.Run{{
				Kind: content.KindAnnotation, Bounds: geom.XYWH(0, 0, 5, 5),
				Annotation: &content.Annotation{URI: "https://example.com/", Contents: "go"},
			}}},
		},
	}
}

func render(t *testing.T, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	w := New(opts)
	if err := w.Begin(backend.Output{W: &buf}, backend.Info{Doc: content.Info{Title: "Doc & Title"}, Pages: 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.WritePage(testPage()); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestWriter_Fixed(t *testing.T) {
	out := render(t, DefaultOptions())

	doc, err := xhtml.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var spans, imgs, paths int
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.Data {
			case "span":
				spans++
			case "img":
				imgs++
			case "path":
				paths++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if spans != 3 || imgs != 1 || paths != 1 {
		t.Errorf("spans=%d imgs=%d paths=%d, want 3 1 1", spans, imgs, paths)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Doc &amp; Title</title>",
		"Second &lt;para&gt;",
		`href="https://example.com/"`,
		"data:image/png;base64,",
		`fill="#0000ff"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestWriter_SimplifyText(t *testing.T) {
	opts := DefaultOptions()
	opts.SimplifyText = true
	out := render(t, opts)
	if !strings.Contains(out, "Hello world") {
		t.Errorf("runs on one baseline not merged:\n%s", out)
	}
	if strings.Count(out, "<span") != 2 {
		t.Errorf("got %d spans, want 2", strings.Count(out, "<span"))
	}
}

func TestWriter_Scale(t *testing.T) {
	opts := DefaultOptions()
	opts.Scale = 2
	out := render(t, opts)
	if !strings.Contains(out, "width:400px;height:200px") {
		t.Errorf("page box not scaled:\n%s", out)
	}
}

func TestWriter_Reflow(t *testing.T) {
	opts := DefaultOptions()
	opts.Reflow = true
	out := render(t, opts)
	if !strings.Contains(out, "<p>Hello world</p><p>Second &lt;para&gt;</p>") {
		t.Errorf("reflow paragraphs wrong:\n%s", out)
	}
	if strings.Contains(out, "position:absolute") {
		t.Error("reflow output uses absolute positioning")
	}
}

func TestMergeText(t *testing.T) {
	runs := []content.Run{
		textRun("a", 0, 10),
		textRun("b", 5, 10),
		textRun("c", 0, 30),
	}
	got := mergeText(runs)
	if len(got) != 2 {
		t.Fatalf("mergeText = %d runs, want 2", len(got))
	}
	if got[0].Text != "ab" {
		t.Errorf("merged text = %q, want %q (adjacent runs need no space)", got[0].Text, "ab")
	}
}

func TestBuildPage_Sink(t *testing.T) {
	var names []string
	sink := func(img image.Image, enc codec.Encoder) (string, error) {
		names = append(names, enc.Name())
		return "img" + enc.Ext(), nil
	}
	n, err := BuildPage(testPage(), DefaultOptions(), sink)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	xhtml.Render(&buf, n)
	if len(names) != 1 || names[0] != "png" {
		t.Errorf("sink saw %v, want one png (transparent tile)", names)
	}
	if !strings.Contains(buf.String(), `src="img.png"`) {
		t.Error("sink URL not used")
	}
}
