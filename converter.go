package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gogpu/convert/artifact"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/internal/metrics"
	"github.com/gogpu/convert/internal/parallel"
	"github.com/gogpu/convert/internal/raster"
	"github.com/gogpu/convert/printer"
	"github.com/gogpu/convert/source"
	"github.com/gogpu/convert/text"

	// Output writers.
	_ "github.com/gogpu/convert/backend/epub"
	_ "github.com/gogpu/convert/backend/html"
	_ "github.com/gogpu/convert/backend/imagestack"
	_ "github.com/gogpu/convert/backend/svg"
	_ "github.com/gogpu/convert/backend/xod"
	_ "github.com/gogpu/convert/backend/xps"
)

// DefaultResidentPixels is the default ceiling on tile pixels one job
// holds in memory.
const DefaultResidentPixels = 64 << 20

// Rasterizer paints runs into a tile buffer. dst covers the device-pixel
// rectangle tile; scale converts page units to device pixels.
// Implementations must be safe for concurrent use.
type Rasterizer interface {
	Render(ctx context.Context, dst *image.NRGBA, tile image.Rectangle, scale float64, runs []content.Run) error
}

// Option configures a Converter.
//
// Example:
//
//	c := convert.New(convert.WithWorkers(4), convert.WithMetrics())
//	defer c.Close()
type Option func(*config)

type config struct {
	workers     int
	resident    int64
	raster      Rasterizer
	logger      *slog.Logger
	metrics     bool
	measurer    text.Measurer
	driver      printer.Driver
	printerName string
	printerMode printer.Mode
	interop     printer.Interop
}

// WithWorkers sets the number of tile rendering goroutines. Zero or less
// means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithResidentPixels sets the per-job ceiling on tile pixels rendered
// but not yet written. A page is not admitted while its pixels would
// exceed the ceiling; a page larger than the ceiling runs alone.
func WithResidentPixels(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.resident = n
		}
	}
}

// WithRasterizer replaces the built-in rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(c *config) {
		c.raster = r
	}
}

// WithLogger sets the converter's logger. Without it the package logger
// (see SetLogger) is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics enables Prometheus metrics, served by MetricsHandler.
func WithMetrics() Option {
	return func(c *config) {
		c.metrics = true
	}
}

// WithTextMeasurer sets the measurer used for text runs without bounds.
func WithTextMeasurer(m text.Measurer) Option {
	return func(c *config) {
		c.measurer = m
	}
}

// WithPrinter sets the virtual printer used for files no built-in source
// reads. An empty name means printer.DefaultName.
func WithPrinter(d printer.Driver, name string) Option {
	return func(c *config) {
		c.driver = d
		c.printerName = name
	}
}

// WithPrinterMode sets how Open routes source files.
func WithPrinterMode(m printer.Mode) Option {
	return func(c *config) {
		c.printerMode = m
	}
}

// WithInterop sets the office converter used for office documents.
func WithInterop(i printer.Interop) Option {
	return func(c *config) {
		c.interop = i
	}
}

// Converter dispatches documents to output writers. Tile rendering of
// every job runs on one worker pool; each job admits pages against its
// own pixel budget, so a goroutine driving several jobs never waits on
// capacity held by another of them.
//
// A Converter is safe for concurrent use; each job it returns is not.
type Converter struct {
	cfg      config
	pool     *parallel.WorkerPool
	buffers  *parallel.BufferPool
	resident int64
	window   int
	raster   Rasterizer
	measurer text.Measurer
	metrics  *metrics.Metrics

	mu     sync.Mutex
	handle *printer.Handle
	closed bool
}

// New returns a Converter. Call Close to stop its workers.
func New(opts ...Option) *Converter {
	cfg := config{resident: DefaultResidentPixels}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Converter{
		cfg:      cfg,
		pool:     parallel.NewWorkerPool(cfg.workers),
		buffers:  parallel.NewBufferPool(),
		resident: cfg.resident,
		raster:   cfg.raster,
		measurer: cfg.measurer,
	}
	c.window = c.pool.Workers() + 1
	if c.raster == nil {
		c.raster = raster.New()
	}
	if c.measurer == nil {
		c.measurer = text.Default()
	}
	if cfg.metrics {
		c.metrics = metrics.New()
	}
	return c
}

func (c *Converter) logger() *slog.Logger {
	if c.cfg.logger != nil {
		return c.cfg.logger
	}
	return Logger()
}

// MetricsHandler serves the converter's metrics, or 404 when metrics are
// disabled.
func (c *Converter) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return http.NotFoundHandler()
	}
	return c.metrics.Handler()
}

// Close stops the worker pool and releases the printer. Jobs still
// running render their remaining tiles inline.
func (c *Converter) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	h := c.handle
	c.handle = nil
	c.mu.Unlock()

	c.pool.Close()
	if h != nil {
		return h.Close()
	}
	return nil
}

func (c *Converter) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// newJob validates everything a job needs. It has no side effects: the
// output is created by the first unit of work.
func (c *Converter) newJob(ctx context.Context, doc content.Document, opts Options, target Target) (*job, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if opts == nil {
		return nil, &OptionError{Field: "options", Value: nil, Reason: "missing"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := opts.settings()
	if err := checkTarget(s, target); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	n := doc.NumPages()
	if n <= 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	flat, err := flatten.New(s.policy, s.flatten...)
	if err != nil {
		return nil, validatePolicy(s.policy)
	}
	format := opts.Format()
	w, err := backend.New(format.String(), s.writer)
	if err != nil {
		return nil, fmt.Errorf("convert: %s writer: %w", format, err)
	}

	id := uuid.New()
	jctx, cancel := context.WithCancel(ctx)
	j := &job{
		id:     id,
		c:      c,
		log:    c.logger().With("job", id.String(), "format", format.String()),
		ctx:    jctx,
		cancel: cancel,
		doc:    doc,
		pixels: semaphore.NewWeighted(c.resident),
		format: format,
		label:  format.String(),
		set:    s,
		target: target,
		flat:   flat,
		writer: w,
		caps:   w.Caps(),
		pages:  n,
		report: Report{JobID: id.String(), Format: format, Pages: n},
	}
	if target.IsStream() {
		j.stream = artifact.NewStream(j.advance)
	}
	return j, nil
}

// ConvertTo converts doc and blocks until the artifact is published. It
// returns the first fatal failure; per-page failures are listed in the
// report. Option and target errors are returned before any work.
func (c *Converter) ConvertTo(ctx context.Context, doc content.Document, opts Options, target Target) (*Artifact, error) {
	j, err := c.newJob(ctx, doc, opts, target)
	if err != nil {
		return nil, err
	}
	defer j.destroy()

	for j.advance() {
	}
	if j.state != StateReady {
		return nil, j.err
	}
	a := &Artifact{Path: target.Path(), Format: j.format, Report: j.snapshot()}
	if j.stream != nil {
		a.data = make([]byte, 0, j.stream.Buffered())
		buf := make([]byte, 32<<10)
		for {
			n, err := j.stream.Read(buf)
			a.data = append(a.data, buf[:n]...)
			if err != nil {
				break
			}
		}
	}
	return a, nil
}

// ConvertToStreaming validates like ConvertTo and returns a Monitor over
// a job that has not started. The caller owns the Monitor and must Close
// it.
func (c *Converter) ConvertToStreaming(ctx context.Context, doc content.Document, opts Options, target Target) (*Monitor, error) {
	j, err := c.newJob(ctx, doc, opts, target)
	if err != nil {
		return nil, err
	}
	return &Monitor{j: j}, nil
}

// Open opens a source file. The route depends on the printer mode: files
// a built-in source reads are opened directly, office documents go
// through interop and anything else is printed to the virtual printer.
// Converted intermediates are removed when the document is closed.
func (c *Converter) Open(ctx context.Context, path string) (content.Document, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	route, err := printer.Choose(c.cfg.printerMode, path, source.Supports(path))
	if err != nil {
		return nil, fmt.Errorf("convert: open %s: %w", filepath.Base(path), err)
	}
	c.logger().Debug("opening source", "path", path, "route", route.String())
	switch route {
	case printer.RouteInterop:
		if c.cfg.interop == nil {
			return nil, fmt.Errorf("convert: %s needs office interop: %w", filepath.Base(path), printer.ErrUnsupported)
		}
		return c.openConverted(ctx, func(out string) error {
			return c.cfg.interop.Convert(ctx, path, out)
		})
	case printer.RoutePrinter:
		h, err := c.printer(ctx)
		if err != nil {
			return nil, err
		}
		return c.openConverted(ctx, func(out string) error {
			return h.Print(ctx, path, out)
		})
	}
	return source.Open(ctx, path)
}

// printer installs the virtual printer on first use.
func (c *Converter) printer(ctx context.Context) (*printer.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		return c.handle, nil
	}
	h, err := printer.Install(ctx, c.cfg.driver, c.cfg.printerName, c.cfg.printerMode)
	if err != nil {
		return nil, err
	}
	c.handle = h
	return h, nil
}

// tempDocument removes its intermediate directory on Close.
type tempDocument struct {
	content.Document
	dir string
}

func (d *tempDocument) Close() error {
	var err error
	if cl, ok := d.Document.(content.Closer); ok {
		err = cl.Close()
	}
	return errors.Join(err, os.RemoveAll(d.dir))
}

// openConverted runs produce into a temporary XPS file and opens it.
func (c *Converter) openConverted(ctx context.Context, produce func(out string) error) (content.Document, error) {
	dir, err := os.MkdirTemp("", "ggconvert-")
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	out := filepath.Join(dir, "document.xps")
	if err := produce(out); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	doc, err := source.Open(ctx, out)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &tempDocument{Document: doc, dir: dir}, nil
}
