package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/curve"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/geom"
	"github.com/gogpu/convert/internal/parallel"
	"github.com/gogpu/convert/internal/raster"
	"github.com/gogpu/convert/text"
)

// State is the lifecycle state of a conversion.
type State uint8

const (
	// StateCreated is a job that has not been advanced.
	StateCreated State = iota
	// StateRunning is a job with pages left to convert or flush.
	StateRunning
	// StateReady is a finished job whose artifact is published.
	StateReady
	// StateError is a job aborted by a fatal failure or cancellation.
	StateError
	// StateDestroyed is a closed job.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Terminal reports whether no more work can happen.
func (s State) Terminal() bool {
	return s >= StateReady
}

// job drives one conversion. A unit of work is admitting one page into
// the worker pool, flushing the oldest rendered page to the writer, or
// finalizing the artifact. Pages are flushed in order.
//
// A job is driven by a single goroutine; only tile rendering runs on the
// pool.
type job struct {
	id     uuid.UUID
	c      *Converter
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	doc    content.Document
	pixels *semaphore.Weighted
	format Format
	label  string // format name, or "append"
	set    settings
	target Target
	flat   *flatten.Flattener
	writer backend.Writer
	caps   backend.Caps

	state    State
	err      error
	pages    int
	next     int
	staged   *pending
	inflight []*pending
	resolved int
	progress int
	ready    bool
	report   Report
	started  time.Time

	file     *artifact.File
	dir      *artifact.Dir
	stream   *artifact.Stream
	sidecars []*artifact.File
}

// pending is a flattened page whose tiles are rendering.
type pending struct {
	index    int
	res      *flatten.Result
	page     *backend.Page
	batch    *parallel.Batch
	weight   int64
	acquired bool
}

func cancelled(err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// advance runs one unit of work and reports whether more remains.
func (j *job) advance() bool {
	switch j.state {
	case StateCreated:
		if err := j.begin(); err != nil {
			j.fail(err)
			return false
		}
		return true
	case StateRunning:
	default:
		return false
	}
	if err := j.ctx.Err(); err != nil {
		j.fail(cancelled(err))
		return false
	}
	if err := j.step(); err != nil {
		j.fail(err)
		return false
	}
	return j.state == StateRunning
}

func (j *job) begin() error {
	j.started = time.Now()
	var out backend.Output
	switch j.target.kind {
	case targetFile:
		f, err := artifact.CreateFile(j.target.path)
		if err != nil {
			return err
		}
		j.file = f
		out.W = f
	case targetDir:
		d, err := artifact.CreateDir(j.target.path)
		if err != nil {
			return err
		}
		j.dir = d
		out.Dir = d
	case targetStream:
		out.W = j.stream
	}
	if j.file != nil || j.dir != nil {
		out.Sidecar = j.sidecar
	}
	if err := j.writer.Begin(out, backend.Info{Doc: j.doc.Info(), Pages: j.pages}); err != nil {
		return fmt.Errorf("convert: begin %s: %w", j.label, err)
	}
	j.state = StateRunning
	j.log.Info("conversion started", "pages", j.pages, "target", j.target.String())
	return nil
}

func (j *job) sidecar(suffix string) (io.Writer, error) {
	f, err := artifact.CreateFile(j.target.sidecarPath(suffix))
	if err != nil {
		return nil, err
	}
	j.sidecars = append(j.sidecars, f)
	return f, nil
}

func (j *job) step() error {
	if j.staged == nil && j.next < j.pages && len(j.inflight) < j.c.window {
		i := j.next
		j.next++
		p, err := j.prepare(i)
		if err != nil || p == nil {
			return err
		}
		j.staged = p
	}
	// Weights are clamped to the budget, so a page always fits once
	// nothing is in flight.
	if p := j.staged; p != nil && j.pixels.TryAcquire(p.weight) {
		p.acquired = p.weight > 0
		j.staged = nil
		j.start(p)
		return nil
	}
	if len(j.inflight) > 0 {
		return j.flush()
	}
	return j.finish()
}

// prepare loads and flattens page i. A nil pending with a nil error means
// the page failed and was recorded.
func (j *job) prepare(i int) (*pending, error) {
	page, err := j.doc.Page(j.ctx, i)
	if err == nil && page == nil {
		err = fmt.Errorf("page %d is nil", i+1)
	}
	if err != nil {
		if ctxErr := j.ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}
		return nil, j.pageFailed(i, err)
	}
	page, err = j.preprocess(page)
	if err != nil {
		return nil, j.pageFailed(i, err)
	}
	var res *flatten.Result
	if j.caps.RasterOnly {
		res, err = j.flat.RasterizeAll(page)
	} else {
		res, err = j.flat.Flatten(page)
	}
	if err != nil {
		return nil, j.pageFailed(i, err)
	}
	return j.newPending(i, res), nil
}

// preprocess fills in text bounds the source left empty and, for writers
// that take only cubic curves, re-encodes quadratic and conic paths.
func (j *job) preprocess(page *content.Page) (*content.Page, error) {
	var out *content.Page
	mutable := func() *content.Page {
		if out == nil {
			out = page.Clone()
		}
		return out
	}
	for i := range page.Runs {
		r := &page.Runs[i]
		if r.Kind == content.KindText && r.Bounds.Empty() && r.Text != "" {
			mutable().Runs[i].Bounds = text.Bounds(j.c.measurer, r.Origin, r.Text, r.FontSize)
		}
		if j.caps.CubicOnly && r.Path != nil && !r.Path.IsCubicOnly() {
			p, err := curve.ToCubicPath(r.Path)
			if err != nil {
				return nil, fmt.Errorf("run %d: %w", i, err)
			}
			mutable().Runs[i].Path = p
		}
	}
	if out == nil {
		return page, nil
	}
	return out, nil
}

func (j *job) newPending(i int, res *flatten.Result) *pending {
	p := &pending{
		index: i,
		res:   res,
		page: &backend.Page{
			Index:  i,
			Width:  res.Page.Width,
			Height: res.Page.Height,
			Scale:  res.Scale,
			Layers: make([]backend.Layer, len(res.Layers)),
		},
	}
	for li := range res.Layers {
		l := &res.Layers[li]
		bl := backend.Layer{Kind: l.Kind, Runs: l.Runs}
		if len(l.Tiles) > 0 {
			bl.Tiles = make([]backend.Tile, len(l.Tiles))
			for ti, t := range l.Tiles {
				bl.Tiles[ti] = backend.Tile{
					Rect:   t.Rect,
					Bounds: pageRect(t.Rect, res.Scale),
				}
			}
		}
		p.page.Layers[li] = bl
		p.weight += l.Pixels()
	}
	p.weight = min(p.weight, j.c.resident)
	return p
}

// pageRect converts a device-pixel rectangle to page units.
func pageRect(r image.Rectangle, scale float64) geom.Rect {
	return geom.Rect{
		Min: geom.Pt(float64(r.Min.X)/scale, float64(r.Min.Y)/scale),
		Max: geom.Pt(float64(r.Max.X)/scale, float64(r.Max.Y)/scale),
	}
}

// start submits the raster tiles of p to the pool.
func (j *job) start(p *pending) {
	j.c.metrics.Resident(p.weight)
	p.batch = j.c.pool.NewBatch(j.ctx)
	for li := range p.res.Layers {
		for ti := range p.res.Layers[li].Tiles {
			p.batch.Go(func(ctx context.Context) error {
				return j.renderTile(ctx, p, li, ti)
			})
		}
	}
	j.inflight = append(j.inflight, p)
	j.log.Debug("page admitted", "page", p.index+1, "tiles", p.res.Tiles(), "pixels", p.weight)
}

func (j *job) renderTile(ctx context.Context, p *pending, li, ti int) error {
	l := &p.res.Layers[li]
	t := l.Tiles[ti]
	buf := j.c.buffers.Get(t.Rect.Dx(), t.Rect.Dy())
	if buf == nil {
		return nil
	}
	if li == 0 && !j.set.transparent {
		raster.Fill(buf, color.White)
	}
	runs := make([]content.Run, len(t.Runs))
	for k, idx := range t.Runs {
		runs[k] = l.Runs[idx]
	}
	if err := j.c.raster.Render(ctx, buf, t.Rect, p.res.Scale, runs); err != nil {
		j.c.buffers.Put(buf)
		return fmt.Errorf("tile %v: %w", t.Rect, err)
	}
	p.page.Layers[li].Tiles[ti].Image = buf
	return nil
}

// flush waits for the oldest page and writes it.
func (j *job) flush() error {
	p := j.inflight[0]
	j.inflight = j.inflight[1:]
	defer j.release(p)

	if err := p.batch.Wait(); err != nil {
		if ctxErr := j.ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr)
		}
		return j.pageFailed(p.index, err)
	}
	if err := j.writer.WritePage(p.page); err != nil {
		return fmt.Errorf("convert: write page %d: %w", p.index+1, err)
	}
	j.report.Converted++
	j.report.Tiles += p.res.Tiles()
	j.report.Rasterized += p.res.Rasterized()
	j.c.metrics.Page("ok")
	j.c.metrics.Tiles(p.res.Tiles())
	j.resolve()
	if j.stream != nil {
		j.ready = true
	}
	j.log.Debug("page written", "page", p.index+1, "progress", j.progress)
	return nil
}

// release returns the tile buffers and pixel capacity of p.
func (j *job) release(p *pending) {
	for li := range p.page.Layers {
		for ti := range p.page.Layers[li].Tiles {
			t := &p.page.Layers[li].Tiles[ti]
			j.c.buffers.Put(t.Image)
			t.Image = nil
		}
	}
	if p.acquired {
		j.pixels.Release(p.weight)
		p.acquired = false
	}
	j.c.metrics.Resident(-p.weight)
}

// pageFailed records a non-fatal page failure and returns nil, or returns
// the failure if it is fatal.
func (j *job) pageFailed(i int, err error) error {
	pe := newPageError(i, err)
	if pe.Fatal {
		return pe
	}
	j.report.Failed = append(j.report.Failed, PageFailure{Page: i, Err: err})
	j.c.metrics.Page("failed")
	j.resolve()
	j.log.Warn("page failed", "page", i+1, "err", err)
	return nil
}

// resolve counts a written or failed page. Progress stays below 100 until
// the artifact is published.
func (j *job) resolve() {
	j.resolved++
	j.progress = max(j.progress, 99*j.resolved/j.pages)
}

func (j *job) finish() error {
	if err := j.writer.End(); err != nil {
		return fmt.Errorf("convert: finalize %s: %w", j.label, err)
	}
	if err := j.publish(); err != nil {
		return err
	}
	j.state = StateReady
	j.ready = true
	j.progress = 100
	j.report.Duration = time.Since(j.started)
	j.cancel()
	j.c.metrics.Conversion(j.label, "ok", j.report.Duration)
	j.log.Info("conversion finished",
		"converted", j.report.Converted,
		"failed", len(j.report.Failed),
		"duration", j.report.Duration)
	return nil
}

// publish moves every output to its final location. Sidecars go first so
// that the main artifact appears last; if a later rename fails, the
// sidecars already published are removed again.
func (j *job) publish() error {
	var err error
	n := 0
	for ; n < len(j.sidecars) && err == nil; n++ {
		err = j.sidecars[n].Publish()
	}
	if err == nil {
		switch {
		case j.file != nil:
			err = j.file.Publish()
		case j.dir != nil:
			err = j.dir.Publish()
		case j.stream != nil:
			j.stream.Finish(nil)
		}
	}
	if err != nil {
		for _, s := range j.sidecars[:n] {
			if rerr := s.Revert(); rerr != nil {
				j.log.Warn("revert sidecar", "err", rerr)
			}
		}
	}
	return err
}

// fail aborts the job: rendering is cancelled, capacity released and
// every staged output discarded.
func (j *job) fail(err error) {
	if j.state.Terminal() {
		return
	}
	j.err = err
	j.state = StateError
	j.cancel()
	for _, p := range j.inflight {
		p.batch.Wait()
		j.release(p)
	}
	j.inflight = nil
	j.staged = nil
	j.discard(err)
	if !j.started.IsZero() {
		j.report.Duration = time.Since(j.started)
	}
	j.c.metrics.Conversion(j.label, "error", j.report.Duration)
	if errors.Is(err, ErrCancelled) {
		j.log.Info("conversion cancelled")
	} else {
		j.log.Error("conversion failed", "err", err)
	}
}

func (j *job) discard(err error) {
	for _, s := range j.sidecars {
		if derr := s.Discard(); derr != nil {
			j.log.Warn("discard sidecar", "err", derr)
		}
	}
	if j.file != nil {
		if derr := j.file.Discard(); derr != nil {
			j.log.Warn("discard output", "err", derr)
		}
	}
	if j.dir != nil {
		if derr := j.dir.Discard(); derr != nil {
			j.log.Warn("discard output", "err", derr)
		}
	}
	if j.stream != nil {
		j.stream.Finish(err)
		j.stream.Discard()
	}
}

// destroy cancels an unfinished job and marks it destroyed.
func (j *job) destroy() {
	if j.state == StateDestroyed {
		return
	}
	if !j.state.Terminal() {
		j.fail(ErrCancelled)
	}
	j.cancel()
	j.state = StateDestroyed
}

func (j *job) snapshot() Report {
	r := j.report
	r.Failed = append([]PageFailure(nil), j.report.Failed...)
	return r
}
