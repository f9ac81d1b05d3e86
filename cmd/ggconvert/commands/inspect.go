package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/convert"
	"github.com/gogpu/convert/cmd/ggconvert/ui"
	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
)

func newInspectCmd(root *rootFlags) *cobra.Command {
	var (
		format string
		policy policyOverride
	)
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show how each page would be flattened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.config)
			if err != nil {
				return err
			}
			if format != "" {
				if cfg.Format, err = convert.ParseFormat(format); err != nil {
					return err
				}
			}
			if err := cfg.override(policy); err != nil {
				return err
			}
			return runInspect(cmd, cfg, args[0])
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format whose policy applies")
	addPolicyFlags(cmd, &policy)
	return cmd
}

// policy returns the flattening policy of the configured format.
func (c Config) policy() flatten.Policy {
	switch {
	case c.Format == convert.FormatXOD:
		return c.XOD.Flatten
	case c.Format == convert.FormatXPS:
		return c.XPS.Flatten
	case c.Format == convert.FormatHTML:
		return c.HTML.Flatten
	case c.Format == convert.FormatEPUB:
		return c.EPUB.HTML.Flatten
	case c.Format.IsImage():
		p := flatten.DefaultPolicy()
		p.DPI = c.Image.DPI
		p.MaxPixels = c.Image.MaxPixels
		return p
	}
	return c.SVG.Flatten
}

func runInspect(cmd *cobra.Command, cfg Config, input string) error {
	ctx := cmd.Context()
	p := cfg.policy()
	fl, err := flatten.New(p)
	if err != nil {
		return err
	}

	c := convert.New(cfg.converterOptions()...)
	defer c.Close()
	doc, err := c.Open(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	if cl, ok := doc.(content.Closer); ok {
		defer cl.Close()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d pages, mode %s, threshold %s, %d dpi\n\n",
		input, doc.NumPages(), p.Mode, p.Threshold, p.DPI)

	rows := make([][]string, 0, doc.NumPages())
	for i := range doc.NumPages() {
		page, err := doc.Page(ctx, i)
		if err != nil {
			rows = append(rows, []string{strconv.Itoa(i + 1), "error: " + err.Error()})
			continue
		}
		res, err := fl.Flatten(page)
		if err != nil {
			rows = append(rows, []string{strconv.Itoa(i + 1), "error: " + err.Error()})
			continue
		}
		layers := make([]string, len(res.Layers))
		for j, l := range res.Layers {
			layers[j] = l.Kind.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.0fx%.0f", page.Width, page.Height),
			strconv.Itoa(len(page.Runs)),
			strconv.Itoa(res.Rasterized()),
			strconv.Itoa(res.Tiles()),
			strconv.FormatInt(res.RasterPixels(), 10),
			strings.Join(layers, ","),
		})
	}
	ui.Table(out, []string{"PAGE", "SIZE", "RUNS", "RASTERIZED", "TILES", "PIXELS", "LAYERS"}, rows)
	return nil
}
