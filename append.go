package convert

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
)

// AppendTo flattens the pages of src and appends them to dst in one
// transaction: either every converted page is appended or dst is left
// unchanged. Raster layers become opaque image runs.
//
// Pages go through the same pipeline as ConvertTo: empty text bounds are
// measured, and pages are admitted against the converter's pixel ceiling
// while their tiles render.
func (c *Converter) AppendTo(ctx context.Context, dst content.AppendTarget, src content.Document, opts AppendOptions) (*Report, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if dst == nil {
		return nil, &OptionError{Field: "target", Value: nil, Reason: "missing append target"}
	}
	if src == nil || src.NumPages() <= 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	var fopts []flatten.Option
	if opts.FlattenAnnotations {
		fopts = append(fopts, flatten.FlattenAnnotations(true))
	}
	flat, err := flatten.New(opts.Flatten, fopts...)
	if err != nil {
		return nil, validatePolicy(opts.Flatten)
	}

	pc := &pageCollector{}
	id := uuid.New()
	jctx, cancel := context.WithCancel(ctx)
	n := src.NumPages()
	j := &job{
		id:     id,
		c:      c,
		log:    c.logger().With("job", id.String(), "op", "append"),
		ctx:    jctx,
		cancel: cancel,
		doc:    src,
		pixels: semaphore.NewWeighted(c.resident),
		label:  "append",
		target: Target{kind: targetPages},
		flat:   flat,
		writer: pc,
		caps:   pc.Caps(),
		pages:  n,
		report: Report{JobID: id.String(), Pages: n},
	}
	defer j.destroy()

	for j.advance() {
	}
	if j.state != StateReady {
		return nil, j.err
	}
	if err := dst.AppendPages(ctx, pc.pages); err != nil {
		return nil, fmt.Errorf("convert: append: %w", err)
	}
	r := j.snapshot()
	return &r, nil
}

// pageCollector is the writer behind AppendTo. It turns each converted
// page back into content: vector layers keep their runs and every raster
// tile becomes an image run in place of its layer. Tile images are copied
// because their buffers return to the pool once WritePage returns.
type pageCollector struct {
	pages []*content.Page
}

func (pc *pageCollector) Caps() backend.Caps { return backend.Caps{} }

func (pc *pageCollector) Begin(backend.Output, backend.Info) error { return nil }

func (pc *pageCollector) WritePage(p *backend.Page) error {
	out := &content.Page{Index: p.Index, Width: p.Width, Height: p.Height}
	for li, l := range p.Layers {
		if l.Kind != flatten.LayerRaster {
			out.Runs = append(out.Runs, l.Runs...)
			continue
		}
		for _, t := range l.Tiles {
			if t.Image == nil {
				continue
			}
			out.Runs = append(out.Runs, content.Run{
				Kind:   content.KindImage,
				Bounds: t.Bounds,
				Image:  imaging.Clone(t.Image),
				Opaque: li == 0,
			})
		}
	}
	pc.pages = append(pc.pages, out)
	return nil
}

func (pc *pageCollector) End() error { return nil }
