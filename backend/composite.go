package backend

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/internal/raster"
)

// Composite renders the whole page at its tile scale on a white
// background: raster tiles are copied and vector layers painted with r.
// Annotation layers are left out.
func Composite(ctx context.Context, p *Page, r *raster.Renderer) (*image.NRGBA, error) {
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0,
		max(1, int(math.Ceil(p.Width*scale))),
		max(1, int(math.Ceil(p.Height*scale)))))
	raster.Fill(dst, color.White)

	for _, l := range p.Layers {
		switch l.Kind {
		case flatten.LayerRaster:
			for _, t := range l.Tiles {
				draw.Draw(dst, t.Rect, t.Image, t.Image.Bounds().Min, draw.Over)
			}
		case flatten.LayerAnnotations:
		default:
			if err := r.Render(ctx, dst, dst.Bounds(), scale, l.Runs); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}
