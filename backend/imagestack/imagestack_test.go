package imagestack

import (
	"bytes"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"golang.org/x/image/tiff"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
)

// stripedPage returns a 30x20 page in two tiles: red on top, blue below.
func stripedPage(index int) *backend.Page {
	top := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	bottom := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for y := range 10 {
		for x := range 30 {
			top.SetNRGBA(x, y, color.NRGBA{R: 0xff, A: 0xff})
			bottom.SetNRGBA(x, y, color.NRGBA{B: 0xff, A: 0xff})
		}
	}
	return &backend.Page{
		Index: index, Width: 30, Height: 20, Scale: 1,
		Layers: []backend.Layer{{Kind: flatten.LayerRaster, Tiles: []backend.Tile{
			{Rect: image.Rect(0, 0, 30, 10), Bounds: geom.XYWH(0, 0, 30, 10), Image: top},
			{Rect: image.Rect(0, 10, 30, 20), Bounds: geom.XYWH(0, 10, 30, 10), Image: bottom},
		}}},
	}
}

func writeZip(t *testing.T, opts Options, pages int) map[string][]byte {
	t.Helper()
	w, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.Begin(backend.Output{W: &buf}, backend.Info{Pages: pages}); err != nil {
		t.Fatal(err)
	}
	for i := range pages {
		if err := w.WritePage(stripedPage(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, _ := f.Open()
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestWriter_TIFF(t *testing.T) {
	files := writeZip(t, DefaultOptions(), 2)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	img, err := tiff.Decode(bytes.NewReader(files["page0001.tif"]))
	if err != nil {
		t.Fatalf("page0001.tif: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("size = %v, want 30x20", b)
	}
	if r, _, b, _ := img.At(5, 15).RGBA(); r != 0 || b != 0xffff {
		t.Error("bottom tile not placed below the top tile")
	}
}

func TestWriter_Rotate(t *testing.T) {
	tests := []struct {
		rotate     int
		w, h       int
		redX, redY int
	}{
		{0, 30, 20, 15, 2},
		{90, 20, 30, 17, 15},
		{180, 30, 20, 15, 17},
		{270, 20, 30, 2, 15},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Codec = "png"
		opts.Rotate = tt.rotate
		files := writeZip(t, opts, 1)
		img, _, err := image.Decode(bytes.NewReader(files["page0001.png"]))
		if err != nil {
			t.Fatalf("rotate %d: %v", tt.rotate, err)
		}
		if b := img.Bounds(); b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("rotate %d: size %v, want %dx%d", tt.rotate, b, tt.w, tt.h)
		}
		if r, _, _, _ := img.At(tt.redX, tt.redY).RGBA(); r != 0xffff {
			t.Errorf("rotate %d: red stripe not at (%d,%d)", tt.rotate, tt.redX, tt.redY)
		}
	}
}

func TestWriter_Gray(t *testing.T) {
	opts := DefaultOptions()
	opts.Codec = "png"
	opts.Gray = true
	files := writeZip(t, opts, 1)
	img, _, err := image.Decode(bytes.NewReader(files["page0001.png"]))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r != g || g != b {
		t.Errorf("pixel (%d,%d,%d) is not gray", r, g, b)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Options{Codec: "tiff", Rotate: 45}); err == nil {
		t.Error("rotation 45 accepted")
	}
	if _, err := New(Options{Codec: "bmp"}); err == nil {
		t.Error("unknown codec accepted")
	}
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"tiff", "png", "jpeg"} {
		w, err := backend.New(name, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := w.(*Writer).enc.Name(); got != name {
			t.Errorf("%s writer encodes %s", name, got)
		}
		if !w.Caps().RasterOnly {
			t.Errorf("%s writer is not raster-only", name)
		}
	}
}
