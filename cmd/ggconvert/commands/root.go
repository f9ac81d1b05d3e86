// Package commands implements the ggconvert command tree.
package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gogpu/convert"
	"github.com/gogpu/convert/cmd/ggconvert/ui"

	// PDF and XPS sources.
	_ "github.com/gogpu/convert/source/fitz"
)

type rootFlags struct {
	config  string
	verbose bool
	noColor bool
}

// NewRootCmd returns the ggconvert command tree.
func NewRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "ggconvert",
		Short: "Convert documents to SVG, XOD, HTML, EPUB and images",
		Long: `ggconvert converts paginated documents into web and archive formats.

Content that is hidden or clipped beyond the flattening threshold is
rasterized into a tiled background; everything else stays vector.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			ui.Init(flags.noColor)
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			convert.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newConvertCmd(&flags),
		newInspectCmd(&flags),
		newFormatsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	root := NewRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	return root.Execute()
}
