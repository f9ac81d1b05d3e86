// Package ui holds the terminal output helpers of ggconvert.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
	header  = color.New(color.Bold)
)

// Init turns colors off when noColor is set. fatih/color already turns
// them off when output is not a terminal.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Success prints a green check line.
func Success(w io.Writer, format string, args ...any) {
	success.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// Warn prints a yellow line.
func Warn(w io.Writer, format string, args ...any) {
	warning.Fprintf(w, "! "+format+"\n", args...)
}

// Error prints a red line.
func Error(w io.Writer, format string, args ...any) {
	failure.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// Table writes rows under a bold header.
func Table(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// Progress is a 0..100 progress bar on stderr.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a bar labelled description.
func NewProgress(description string) *Progress {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &Progress{bar: bar}
}

// Set moves the bar to percent.
func (p *Progress) Set(percent int) {
	_ = p.bar.Set(percent)
}

// Finish completes the bar.
func (p *Progress) Finish() {
	_ = p.bar.Finish()
}

// Spinner shows indeterminate progress on stderr.
type Spinner struct {
	s *spinner.Spinner
}

// StartSpinner starts a spinner with message.
func StartSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	return &Spinner{s: s}
}

// Stop stops the spinner and clears its line.
func (s *Spinner) Stop() {
	s.s.Stop()
}
