package commands

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/convert"
	"github.com/gogpu/convert/flatten"
	"github.com/gogpu/convert/printer"
)

// Config is the ggconvert configuration file. Every option record starts
// from its library defaults; the file, GGCONVERT_* variables and flags
// override it in that order.
type Config struct {
	Format         convert.Format `yaml:"format"`
	Workers        int            `yaml:"workers"`
	ResidentPixels int64          `yaml:"resident_pixels"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	PrinterMode    printer.Mode   `yaml:"printer_mode"`

	SVG   convert.SVGOptions   `yaml:"svg"`
	XOD   convert.XODOptions   `yaml:"xod"`
	XPS   convert.XPSOptions   `yaml:"xps"`
	HTML  convert.HTMLOptions  `yaml:"html"`
	EPUB  convert.EPUBOptions  `yaml:"epub"`
	Image convert.ImageOptions `yaml:"image"`
}

func defaultConfig() Config {
	return Config{
		Format:         convert.FormatSVG,
		ResidentPixels: convert.DefaultResidentPixels,
		PrinterMode:    printer.ModeAuto,
		SVG:            convert.DefaultSVGOptions(),
		XOD:            convert.DefaultXODOptions(),
		XPS:            convert.DefaultXPSOptions(),
		HTML:           convert.DefaultHTMLOptions(),
		EPUB:           convert.DefaultEPUBOptions(),
		Image:          convert.DefaultImageOptions(convert.FormatPNG),
	}
}

// loadConfig reads path over the defaults and applies the environment.
// An empty path skips the file.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv applies GGCONVERT_* overrides.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("GGCONVERT_FORMAT"); v != "" {
		f, err := convert.ParseFormat(v)
		if err != nil {
			return fmt.Errorf("GGCONVERT_FORMAT: %w", err)
		}
		c.Format = f
	}
	if v := getenv("GGCONVERT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GGCONVERT_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := getenv("GGCONVERT_RESIDENT_PIXELS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("GGCONVERT_RESIDENT_PIXELS: %w", err)
		}
		c.ResidentPixels = n
	}
	if v := getenv("GGCONVERT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := getenv("GGCONVERT_PRINTER_MODE"); v != "" {
		if err := c.PrinterMode.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("GGCONVERT_PRINTER_MODE: %w", err)
		}
	}

	var p policyOverride
	if v := getenv("GGCONVERT_FLATTEN"); v != "" {
		p.mode = v
	}
	if v := getenv("GGCONVERT_THRESHOLD"); v != "" {
		p.threshold = v
	}
	if v := getenv("GGCONVERT_DPI"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GGCONVERT_DPI: %w", err)
		}
		p.dpi = n
	}
	return c.override(p)
}

// policyOverride holds flattening settings given on the command line or
// in the environment. Zero values leave the configured policy alone.
type policyOverride struct {
	mode      string
	threshold string
	dpi       int
	maxPixels int64
	quality   int
}

func (o policyOverride) apply(p *flatten.Policy) error {
	if o.mode != "" {
		if err := p.Mode.UnmarshalText([]byte(o.mode)); err != nil {
			return err
		}
	}
	if o.threshold != "" {
		if err := p.Threshold.UnmarshalText([]byte(o.threshold)); err != nil {
			return err
		}
	}
	if o.dpi != 0 {
		p.DPI = o.dpi
	}
	if o.maxPixels != 0 {
		p.MaxPixels = o.maxPixels
	}
	return nil
}

// override applies o to every option record.
func (c *Config) override(o policyOverride) error {
	for _, p := range []*flatten.Policy{&c.SVG.Flatten, &c.XOD.Flatten, &c.XPS.Flatten, &c.HTML.Flatten, &c.EPUB.HTML.Flatten} {
		if err := o.apply(p); err != nil {
			return err
		}
	}
	if o.dpi != 0 {
		c.Image.DPI = o.dpi
	}
	if o.maxPixels != 0 {
		c.Image.MaxPixels = o.maxPixels
	}
	if o.quality != 0 {
		c.XOD.JPEGQuality = o.quality
		c.XPS.JPEGQuality = o.quality
		c.HTML.JPEGQuality = o.quality
		c.EPUB.HTML.JPEGQuality = o.quality
		c.Image.JPEGQuality = o.quality
	}
	return nil
}

// Options returns the option record for c.Format.
func (c Config) Options() (convert.Options, error) {
	var opts convert.Options
	switch {
	case c.Format == convert.FormatSVG:
		opts = c.SVG
	case c.Format == convert.FormatXOD:
		opts = c.XOD
	case c.Format == convert.FormatXPS:
		opts = c.XPS
	case c.Format == convert.FormatHTML:
		opts = c.HTML
	case c.Format == convert.FormatEPUB:
		opts = c.EPUB
	case c.Format.IsImage():
		img := c.Image
		img.Type = c.Format
		opts = img
	default:
		return nil, fmt.Errorf("unsupported format %v", c.Format)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// converterOptions returns the Converter options c implies.
func (c Config) converterOptions() []convert.Option {
	opts := []convert.Option{convert.WithPrinterMode(c.PrinterMode)}
	if c.Workers > 0 {
		opts = append(opts, convert.WithWorkers(c.Workers))
	}
	if c.ResidentPixels > 0 {
		opts = append(opts, convert.WithResidentPixels(c.ResidentPixels))
	}
	if c.MetricsAddr != "" {
		opts = append(opts, convert.WithMetrics())
	}
	return opts
}
