// Package source opens files as content documents. Openers register by
// file extension; the fitz subpackage adds the formats MuPDF reads.
//
//	import _ "github.com/gogpu/convert/source/fitz"
//
//	doc, err := source.Open(ctx, "report.pdf")
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/convert/content"
)

// ErrUnsupported is returned by Open for extensions without an opener.
var ErrUnsupported = errors.New("source: unsupported file type")

// Opener opens the file at path.
type Opener func(ctx context.Context, path string) (content.Document, error)

var (
	registryMu sync.RWMutex
	openers    = make(map[string]Opener)
)

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register makes an opener available for a file extension such as ".pdf".
// It panics if opener is nil or the extension is taken.
func Register(ext string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if opener == nil {
		panic("source: Register opener is nil")
	}
	ext = normExt(ext)
	if _, dup := openers[ext]; dup {
		panic("source: Register called twice for " + ext)
	}
	openers[ext] = opener
}

func lookup(path string) (Opener, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	o, ok := openers[normExt(filepath.Ext(path))]
	return o, ok
}

// Supports reports whether an opener is registered for path's extension.
func Supports(path string) bool {
	_, ok := lookup(path)
	return ok
}

// Open opens path with the opener registered for its extension.
func Open(ctx context.Context, path string) (content.Document, error) {
	o, ok := lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	return o(ctx, path)
}

// Exts returns the registered extensions, sorted.
func Exts() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(openers))
	for e := range openers {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

func openJSON(_ context.Context, path string) (content.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer f.Close()
	return content.ReadJSON(f)
}

func init() {
	Register(".json", openJSON)
}
