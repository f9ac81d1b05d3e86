package content

import (
	"context"
	"errors"
)

var (
	// ErrCorruptPage classifies a page that cannot be read or skipped.
	// Conversions abort when a page fails with an error wrapping it.
	ErrCorruptPage = errors.New("content: corrupt page")

	// ErrPageRange is returned for page indices outside [0, NumPages).
	ErrPageRange = errors.New("content: page index out of range")
)

// Info is document-level metadata.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Producer string
}

// Document is a paginated, read-only source document.
type Document interface {
	// NumPages returns the number of pages.
	NumPages() int

	// Page loads page i. Implementations may decode lazily; the returned
	// page must not be modified by the caller.
	Page(ctx context.Context, i int) (*Page, error)

	// Info returns document metadata.
	Info() Info
}

// AppendTarget is a document that can receive pages.
//
// AppendPages must be all-or-nothing: on error the target is unchanged.
type AppendTarget interface {
	Document
	AppendPages(ctx context.Context, pages []*Page) error
}

// Closer is implemented by documents that hold external resources.
type Closer interface {
	Close() error
}
