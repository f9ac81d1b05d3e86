// Command ggconvert converts documents to SVG, XOD, HTML, EPUB and image
// stacks.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/convert/cmd/ggconvert/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
