package convert

import (
	"errors"
	"fmt"

	"github.com/gogpu/convert/content"
)

var (
	// ErrInvalidDocument is returned for nil or empty source documents.
	ErrInvalidDocument = errors.New("convert: invalid document")

	// ErrInvalidOption is wrapped by every *OptionError.
	ErrInvalidOption = errors.New("convert: invalid option")

	// ErrNotReady is returned by Monitor.Filter before output is readable.
	ErrNotReady = errors.New("convert: output not ready")

	// ErrFatal classifies page failures that abort a conversion. Sources
	// wrap it, or content.ErrCorruptPage, to make a page failure fatal.
	ErrFatal = errors.New("convert: fatal failure")

	// ErrCancelled is returned once a conversion was cancelled.
	ErrCancelled = errors.New("convert: cancelled")

	// ErrClosed is returned by a closed Converter or Monitor.
	ErrClosed = errors.New("convert: closed")

	// ErrNoStream is returned by Monitor.Filter for directory targets.
	ErrNoStream = errors.New("convert: directory output has no stream")
)

// OptionError reports an invalid option field.
type OptionError struct {
	Field  string
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("convert: invalid option %s = %v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("convert: invalid option %s = %v", e.Field, e.Value)
}

// Unwrap returns ErrInvalidOption.
func (e *OptionError) Unwrap() error {
	return ErrInvalidOption
}

// PageError is a failure to convert one page.
type PageError struct {
	// Page is the zero-based page index.
	Page  int
	Fatal bool
	Err   error
}

func (e *PageError) Error() string {
	kind := "failed"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("convert: page %d %s: %v", e.Page+1, kind, e.Err)
}

// Unwrap returns the cause and, for fatal failures, ErrFatal.
func (e *PageError) Unwrap() []error {
	if e.Fatal {
		return []error{e.Err, ErrFatal}
	}
	return []error{e.Err}
}

// IsFatal reports whether err aborts a conversion.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, content.ErrCorruptPage)
}

func newPageError(page int, err error) *PageError {
	return &PageError{Page: page, Fatal: IsFatal(err), Err: err}
}
