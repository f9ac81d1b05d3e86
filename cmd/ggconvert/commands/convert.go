package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/convert"
	"github.com/gogpu/convert/cmd/ggconvert/ui"
	"github.com/gogpu/convert/content"
)

type convertFlags struct {
	output      string
	format      string
	dir         bool
	quiet       bool
	workers     int
	metricsAddr string
	policy      policyOverride
}

func newConvertCmd(root *rootFlags) *cobra.Command {
	var flags convertFlags
	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert a document",
		Long: `Convert a document to SVG, XOD, XPS, HTML, EPUB or an image stack.

Use "-o -" to write the output to stdout; the first pages are written
while the rest are still converting.`,
		Example: `  ggconvert convert report.pdf -f html
  ggconvert convert scan.xps -f png --dpi 150 --dir -o pages/
  ggconvert convert slides.json -f svg --flatten high_quality -o - > slides.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.config)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return runConvert(cmd, cfg, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", `output path, "-" for stdout (default: input name with the format's extension)`)
	f.StringVarP(&flags.format, "format", "f", "", "output format: "+formatList())
	f.BoolVar(&flags.dir, "dir", false, "write loose files into the output directory")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "no progress output")
	f.IntVar(&flags.workers, "workers", 0, "tile render workers (default: GOMAXPROCS)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	addPolicyFlags(cmd, &flags.policy)
	return cmd
}

func addPolicyFlags(cmd *cobra.Command, p *policyOverride) {
	f := cmd.Flags()
	f.StringVar(&p.mode, "flatten", "", "flattening mode: off, simple, fast, high_quality")
	f.StringVar(&p.threshold, "threshold", "", "occlusion threshold: very_strict, strict, default, keep_most, keep_all")
	f.IntVar(&p.dpi, "dpi", 0, "raster resolution")
	f.Int64Var(&p.maxPixels, "max-pixels", 0, "pixel budget per raster tile")
	f.IntVar(&p.quality, "jpeg-quality", 0, "JPEG quality")
}

func formatList() string {
	names := make([]string, 0, len(convert.Formats()))
	for _, f := range convert.Formats() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}

// apply merges the command line into cfg.
func (f convertFlags) apply(cmd *cobra.Command, cfg *Config) error {
	if f.format != "" {
		format, err := convert.ParseFormat(f.format)
		if err != nil {
			return err
		}
		cfg.Format = format
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	return cfg.override(f.policy)
}

// outputPath replaces the extension of input with the format's.
func outputPath(input string, format convert.Format, dir bool) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if dir {
		return base + "_" + format.String()
	}
	return base + format.Ext()
}

func runConvert(cmd *cobra.Command, cfg Config, input string, flags convertFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	c := convert.New(cfg.converterOptions()...)
	defer c.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, c.MetricsHandler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	stderr := cmd.ErrOrStderr()
	var sp *ui.Spinner
	if !flags.quiet {
		sp = ui.StartSpinner("Opening " + filepath.Base(input))
	}
	doc, err := c.Open(ctx, input)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	if cl, ok := doc.(content.Closer); ok {
		defer cl.Close()
	}

	out := flags.output
	if out == "" {
		out = outputPath(input, cfg.Format, flags.dir)
	}
	var target convert.Target
	switch {
	case out == "-":
		target = convert.ToStream()
	case flags.dir:
		target = convert.ToDir(out)
	default:
		target = convert.ToFile(out)
	}

	m, err := c.ConvertToStreaming(ctx, doc, opts, target)
	if err != nil {
		return err
	}
	defer m.Close()

	if target.IsStream() {
		err = pipe(cmd.OutOrStdout(), m)
	} else {
		err = drive(ctx, m, flags.quiet)
	}
	if err != nil {
		return err
	}

	report := m.Report()
	for _, pf := range report.Failed {
		ui.Warn(stderr, "page %d skipped: %v", pf.Page+1, pf.Err)
	}
	if !flags.quiet && !target.IsStream() {
		ui.Success(stderr, "Wrote %s: %d of %d pages, %d runs rasterized into %d tiles in %s",
			out, report.Converted, report.Pages, report.Rasterized, report.Tiles,
			report.Duration.Round(time.Millisecond))
	}
	return nil
}

// drive runs m to completion, showing progress unless quiet.
func drive(ctx context.Context, m *convert.Monitor, quiet bool) error {
	var bar *ui.Progress
	if !quiet {
		bar = ui.NewProgress("Converting")
	}
	for p, err := range m.Steps() {
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Set(p)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return nil
}

// pipe copies a stream target to w as it is produced.
func pipe(w io.Writer, m *convert.Monitor) error {
	for !m.Ready() && m.Next() {
	}
	if err := m.Err(); err != nil {
		return err
	}
	r, err := m.Filter()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return err
	}
	return m.Err()
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			convert.Logger().Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return srv
}
