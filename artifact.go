package convert

import (
	"bytes"
	"io"
	"os"
	"time"
)

// PageFailure records a page that was skipped.
type PageFailure struct {
	// Page is the zero-based page index.
	Page int
	Err  error
}

// Report summarizes a conversion.
type Report struct {
	JobID  string
	Format Format

	// Pages is the number of source pages.
	Pages     int
	Converted int
	Failed    []PageFailure

	// Tiles and Rasterized count raster tiles and rasterized runs.
	Tiles      int
	Rasterized int

	Duration time.Duration
}

// Artifact is the result of a blocking conversion.
type Artifact struct {
	// Path is the published file or directory, or "" for streams.
	Path   string
	Format Format
	Report Report

	data []byte
}

// Bytes returns the content of a stream artifact, or nil for path
// artifacts.
func (a *Artifact) Bytes() []byte {
	return a.data
}

// Open returns a reader over the artifact. Directory artifacts cannot be
// opened.
func (a *Artifact) Open() (io.ReadCloser, error) {
	if a.Path == "" {
		return io.NopCloser(bytes.NewReader(a.data)), nil
	}
	fi, err := os.Stat(a.Path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, ErrNoStream
	}
	return os.Open(a.Path)
}
