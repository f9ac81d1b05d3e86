package epub

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

func testPage(i int) *backend.Page {
	tile := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for j := range tile.Pix {
		tile.Pix[j] = 0xff
	}
	return &backend.Page{
		Index: i, Width: 100, Height: 100, Scale: 0.1,
		Layers: []backend.Layer{
			{Kind: flatten.LayerRaster, Tiles: []backend.Tile{{Rect: tile.Bounds(), Bounds: geom.XYWH(0, 0, 100, 100), Image: tile}}},
			{Kind: flatten.LayerVector, Runs: []content.Run{
				{Kind: content.KindText, Text: "page text", FontSize: 10, Origin: geom.Pt(10, 20)},
			}},
		},
	}
}

func write(t *testing.T, w *Writer, out backend.Output, n int) {
	t.Helper()
	if err := w.Begin(out, backend.Info{Doc: content.Info{Title: "Book", Author: "A"}, Pages: n}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := range n {
		if err := w.WritePage(testPage(i)); err != nil {
			t.Fatalf("WritePage: %v", err)
		}
	}
	if err := w.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
}

func TestWriter_Zip(t *testing.T) {
	var buf bytes.Buffer
	write(t, New(DefaultOptions()), backend.Output{W: &buf}, 2)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	first := zr.File[0]
	if first.Name != "mimetype" || first.Method != zip.Store {
		t.Errorf("first entry = %s (method %d), want stored mimetype", first.Name, first.Method)
	}

	parts := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		parts[f.Name] = string(b)
	}
	if parts["mimetype"] != "application/epub+zip" {
		t.Errorf("mimetype = %q", parts["mimetype"])
	}
	for _, name := range []string{
		"META-INF/container.xml", "OEBPS/content.opf", "OEBPS/nav.xhtml", "OEBPS/style.css",
		"OEBPS/pages/page1.xhtml", "OEBPS/pages/page2.xhtml",
		"OEBPS/images/p1_1.jpg", "OEBPS/images/cover.jpg",
	} {
		if _, ok := parts[name]; !ok {
			t.Errorf("publication lacks %s", name)
		}
	}

	opf := parts["OEBPS/content.opf"]
	for _, want := range []string{
		"<dc:title>Book</dc:title>", "<dc:creator>A</dc:creator>",
		`<itemref idref="page1"/>`, `<itemref idref="page2"/>`,
		`properties="cover-image"`, `properties="nav"`, "pre-paginated",
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf lacks %q", want)
		}
	}
	page := parts["OEBPS/pages/page1.xhtml"]
	if !strings.Contains(page, `src="../images/p1_1.jpg"`) || !strings.Contains(page, "page text") {
		t.Errorf("page XHTML:\n%s", page)
	}
	if !strings.Contains(page, `name="viewport"`) {
		t.Error("fixed-layout page has no viewport")
	}
}

func TestWriter_ReuseCover(t *testing.T) {
	opts := DefaultOptions()
	opts.ReuseCover = true
	var buf bytes.Buffer
	write(t, New(opts), backend.Output{W: &buf}, 1)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name == "OEBPS/images/cover.jpg" {
			t.Error("cover rendered with ReuseCover set")
		}
	}
}

func TestWriter_Expanded(t *testing.T) {
	opts := DefaultOptions()
	opts.Expanded = true

	var buf bytes.Buffer
	if err := New(opts).Begin(backend.Output{W: &buf}, backend.Info{}); err == nil {
		t.Fatal("expanded output accepted a stream")
	}

	final := filepath.Join(t.TempDir(), "book")
	dir, err := artifact.CreateDir(final)
	if err != nil {
		t.Fatal(err)
	}
	write(t, New(opts), backend.Output{Dir: dir}, 1)
	if err := dir.Publish(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(final, "mimetype"))
	if err != nil || string(b) != "application/epub+zip" {
		t.Errorf("mimetype = %q, %v", b, err)
	}
}

func TestWriter_Reflow(t *testing.T) {
	opts := DefaultOptions()
	opts.HTML.Reflow = true
	var buf bytes.Buffer
	write(t, New(opts), backend.Output{W: &buf}, 1)
	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	for _, f := range zr.File {
		if f.Name != "OEBPS/content.opf" {
			continue
		}
		rc, _ := f.Open()
		b, _ := io.ReadAll(rc)
		rc.Close()
		if strings.Contains(string(b), "pre-paginated") {
			t.Error("reflowable publication marked pre-paginated")
		}
	}
}
