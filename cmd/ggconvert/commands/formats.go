package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/convert"
	"github.com/gogpu/convert/backend"
	"github.com/gogpu/convert/cmd/ggconvert/ui"
	"github.com/gogpu/convert/source"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats and readable source types",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(convert.Formats()))
			for _, f := range convert.Formats() {
				status := "yes"
				if !backend.IsRegistered(f.String()) {
					status = "no"
				}
				rows = append(rows, []string{f.String(), f.Ext(), status})
			}
			ui.Table(out, []string{"FORMAT", "EXT", "AVAILABLE"}, rows)
			fmt.Fprintf(out, "\nSources: %s\n", strings.Join(source.Exts(), " "))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ggconvert %s\n", convert.Version)
		},
	}
}
