package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/geom"
)

// conicStep is the sampling distance, in device pixels, for conic segments.
const conicStep = 1.0

// Renderer paints content runs into tile buffers using x/image/vector for
// paths, x/image/font for text and x/image/draw for images.
//
// A Renderer is safe for concurrent use; per-call state is allocated or
// pooled.
type Renderer struct {
	vectors sync.Pool
}

// New returns a Renderer.
func New() *Renderer {
	return &Renderer{
		vectors: sync.Pool{
			New: func() any { return vector.NewRasterizer(0, 0) },
		},
	}
}

var goRegular = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// Render paints runs, in order, into dst. tile is the area of the page, in
// device pixels, that dst covers; dst bounds must start at (0, 0) and have
// the size of tile. scale converts page units to device pixels.
func (r *Renderer) Render(_ context.Context, dst *image.NRGBA, tile image.Rectangle, scale float64, runs []content.Run) error {
	if dst.Bounds().Size() != tile.Size() {
		return fmt.Errorf("raster: buffer %v does not match tile %v", dst.Bounds(), tile)
	}
	for i := range runs {
		run := &runs[i]
		clip := r.deviceClip(run, tile, scale)
		if clip.Empty() {
			continue
		}
		target := dst.SubImage(clip).(*image.NRGBA)

		var err error
		switch run.Kind {
		case content.KindPath:
			r.fillPath(target, run, tile, scale)
		case content.KindText:
			err = drawText(target, run, tile, scale)
		case content.KindImage:
			drawImage(target, run, tile, scale)
		default:
			fill(target, run)
		}
		if err != nil {
			return fmt.Errorf("raster: run %d (%v): %w", i, run.Kind, err)
		}
	}
	return nil
}

// deviceClip returns the tile-relative pixel area run may paint.
func (r *Renderer) deviceClip(run *content.Run, tile image.Rectangle, scale float64) image.Rectangle {
	area := run.Clipped()
	if area.Empty() {
		return image.Rectangle{}
	}
	return toPixels(area, tile, scale).Intersect(image.Rect(0, 0, tile.Dx(), tile.Dy()))
}

func toPixels(r geom.Rect, tile image.Rectangle, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Min.X*scale))-tile.Min.X,
		int(math.Floor(r.Min.Y*scale))-tile.Min.Y,
		int(math.Ceil(r.Max.X*scale))-tile.Min.X,
		int(math.Ceil(r.Max.Y*scale))-tile.Min.Y,
	)
}

func (r *Renderer) fillPath(dst *image.NRGBA, run *content.Run, tile image.Rectangle, scale float64) {
	if run.Path == nil || run.Path.Len() == 0 {
		fill(dst, run)
		return
	}
	// The mask covers dst only: its origin is dst.Bounds().Min within the
	// tile, which is tile.Min on the page.
	b := dst.Bounds()
	z := r.vectors.Get().(*vector.Rasterizer)
	defer r.vectors.Put(z)
	z.Reset(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	ox, oy := float64(tile.Min.X+b.Min.X), float64(tile.Min.Y+b.Min.Y)
	pt := func(p geom.Point) (float32, float32) {
		return float32(p.X*scale - ox), float32(p.Y*scale - oy)
	}

	var cur, start geom.Point
	open := false
	for _, e := range run.Path.Elements() {
		switch el := e.(type) {
		case geom.MoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(pt(el.Point))
			cur, start, open = el.Point, el.Point, true
		case geom.LineTo:
			z.LineTo(pt(el.Point))
			cur = el.Point
		case geom.QuadTo:
			cx, cy := pt(el.Control)
			x, y := pt(el.Point)
			z.QuadTo(cx, cy, x, y)
			cur = el.Point
		case geom.CubicTo:
			c1x, c1y := pt(el.Control1)
			c2x, c2y := pt(el.Control2)
			x, y := pt(el.Point)
			z.CubeTo(c1x, c1y, c2x, c2y, x, y)
			cur = el.Point
		case geom.ConicTo:
			for _, p := range geom.SampleConic(cur, el.Control, el.Point, el.Weight, conicStep/scale)[1:] {
				z.LineTo(pt(p))
			}
			cur = el.Point
		case geom.Close:
			z.ClosePath()
			cur, open = start, false
		}
	}
	if open {
		z.ClosePath()
	}

	z.Draw(dst, b, image.NewUniform(run.FillColor()), image.Point{})
}

func drawText(dst *image.NRGBA, run *content.Run, tile image.Rectangle, scale float64) error {
	if run.Invisible || run.Text == "" {
		return nil
	}
	f, err := goRegular()
	if err != nil {
		return err
	}
	size := run.FontSize
	if size <= 0 {
		size = 12
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size * scale,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return err
	}
	defer face.Close()

	origin := run.Origin
	if origin == (geom.Point{}) {
		origin = geom.Pt(run.Bounds.Min.X, run.Bounds.Max.Y-0.2*size)
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(run.FillColor()),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6((origin.X*scale - float64(tile.Min.X)) * 64),
			Y: fixed.Int26_6((origin.Y*scale - float64(tile.Min.Y)) * 64),
		},
	}
	d.DrawString(run.Text)
	return nil
}

func drawImage(dst *image.NRGBA, run *content.Run, tile image.Rectangle, scale float64) {
	if run.Image == nil {
		fill(dst, run)
		return
	}
	rect := toPixels(run.Bounds, tile, scale)
	draw.ApproxBiLinear.Scale(dst, rect, run.Image, run.Image.Bounds(), draw.Over, nil)
}

func fill(dst *image.NRGBA, run *content.Run) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(run.FillColor()), image.Point{}, draw.Over)
}

// Fill paints every pixel of dst with c, replacing what was there.
func Fill(dst *image.NRGBA, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}
