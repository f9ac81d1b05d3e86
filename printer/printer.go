// Package printer manages the virtual printer used to convert documents
// that no built-in source can open.
//
// Installing a printer is a system-wide side effect. Install returns a
// Handle owning that effect; closing the handle uninstalls the printer
// only if this handle installed it.
//
//	h, err := printer.Install(ctx, driver, "", printer.ModeAuto)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
package printer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// DefaultName is the printer name used when none is configured.
const DefaultName = "GG Convert Printer"

var (
	// ErrUnsupported is returned by Choose when the mode allows no way to
	// convert the file.
	ErrUnsupported = errors.New("printer: no conversion route for file")

	// ErrNoDriver is returned when a route needs a printer but none is
	// configured.
	ErrNoDriver = errors.New("printer: no driver configured")

	// ErrClosed is returned by a closed Handle.
	ErrClosed = errors.New("printer: handle closed")
)

// Mode selects how non-native files are converted.
type Mode uint8

const (
	// ModeAuto uses Office interop for office files, a built-in source when
	// one exists and the printer otherwise.
	ModeAuto Mode = iota
	// ModeInteropOnly only converts office files, through interop.
	ModeInteropOnly
	// ModePrinterOnly prints every file a built-in source cannot open,
	// never using interop.
	ModePrinterOnly
	// ModePreferBuiltin uses a built-in source whenever one exists.
	ModePreferBuiltin
)

var modeNames = [...]string{
	ModeAuto:          "auto",
	ModeInteropOnly:   "interop_only",
	ModePrinterOnly:   "printer_only",
	ModePreferBuiltin: "prefer_builtin_converter",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if int(m) >= len(modeNames) {
		return nil, fmt.Errorf("printer: invalid mode %d", m)
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	for i, n := range modeNames {
		if n == string(b) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("printer: unknown mode %q", b)
}

// Valid reports whether m is a defined mode.
func (m Mode) Valid() bool {
	return int(m) < len(modeNames)
}

// Driver installs and drives a virtual printer. Implementations wrap the
// operating system's print spooler.
type Driver interface {
	Install(ctx context.Context, name string) error
	Uninstall(ctx context.Context, name string) error
	Installed(ctx context.Context, name string) (bool, error)

	// Print prints input on the named printer and stores the printer's
	// output document at output.
	Print(ctx context.Context, name, input, output string) error
}

// Interop converts office files through the office application.
type Interop interface {
	Convert(ctx context.Context, input, output string) error
}

// Handle is an installed printer.
type Handle struct {
	driver Driver
	name   string
	mode   Mode
	owned  bool

	mu     sync.Mutex
	closed bool
}

// Install makes sure the named printer exists. An empty name means
// DefaultName.
func Install(ctx context.Context, d Driver, name string, mode Mode) (*Handle, error) {
	if d == nil {
		return nil, ErrNoDriver
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("printer: invalid mode %d", mode)
	}
	if name == "" {
		name = DefaultName
	}
	ok, err := d.Installed(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("printer: query %q: %w", name, err)
	}
	h := &Handle{driver: d, name: name, mode: mode}
	if !ok {
		if err := d.Install(ctx, name); err != nil {
			return nil, fmt.Errorf("printer: install %q: %w", name, err)
		}
		h.owned = true
	}
	return h, nil
}

// Name returns the printer name.
func (h *Handle) Name() string { return h.name }

// Mode returns the routing mode the handle was installed with.
func (h *Handle) Mode() Mode { return h.mode }

// Owned reports whether closing the handle uninstalls the printer.
func (h *Handle) Owned() bool { return h.owned }

// Print prints input to output through the printer.
func (h *Handle) Print(ctx context.Context, input, output string) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := h.driver.Print(ctx, h.name, input, output); err != nil {
		return fmt.Errorf("printer: print %s: %w", filepath.Base(input), err)
	}
	return nil
}

// Close uninstalls the printer if this handle installed it. Close is
// idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if !h.owned {
		return nil
	}
	if err := h.driver.Uninstall(context.Background(), h.name); err != nil {
		return fmt.Errorf("printer: uninstall %q: %w", h.name, err)
	}
	return nil
}

// Route is a way to convert a source file.
type Route uint8

const (
	// RouteBuiltin opens the file with a built-in source.
	RouteBuiltin Route = iota
	// RouteInterop converts the file with the office application.
	RouteInterop
	// RoutePrinter prints the file to the virtual printer.
	RoutePrinter
)

func (r Route) String() string {
	switch r {
	case RouteBuiltin:
		return "builtin"
	case RouteInterop:
		return "interop"
	case RoutePrinter:
		return "printer"
	}
	return fmt.Sprintf("Route(%d)", r)
}

var officeExts = []string{
	".doc", ".docx", ".docm", ".dot", ".dotx", ".rtf", ".odt",
	".xls", ".xlsx", ".xlsm", ".ods",
	".ppt", ".pptx", ".pptm", ".pps", ".ppsx", ".odp",
	".pub", ".vsd", ".vsdx",
}

var nativeExts = []string{
	".pdf", ".xps", ".oxps", ".epub", ".cbz", ".fb2", ".mobi",
	".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".pnm",
	".svg", ".txt", ".json",
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsOffice reports whether filename is an office document.
func IsOffice(filename string) bool {
	return slices.Contains(officeExts, ext(filename))
}

// RequiresPrinter reports whether filename can only be converted by
// printing it: it is neither a natively readable format nor an office
// document.
func RequiresPrinter(filename string) bool {
	e := ext(filename)
	return !slices.Contains(nativeExts, e) && !slices.Contains(officeExts, e)
}

// Choose picks the conversion route for filename under mode. builtin
// reports whether a built-in source can open the file.
func Choose(mode Mode, filename string, builtin bool) (Route, error) {
	office := IsOffice(filename)
	switch mode {
	case ModeAuto:
		switch {
		case office:
			return RouteInterop, nil
		case builtin:
			return RouteBuiltin, nil
		}
		return RoutePrinter, nil
	case ModePreferBuiltin:
		switch {
		case builtin:
			return RouteBuiltin, nil
		case office:
			return RouteInterop, nil
		}
		return RoutePrinter, nil
	case ModeInteropOnly:
		if office {
			return RouteInterop, nil
		}
		if builtin {
			return RouteBuiltin, nil
		}
	case ModePrinterOnly:
		if builtin && !office {
			return RouteBuiltin, nil
		}
		return RoutePrinter, nil
	}
	return 0, fmt.Errorf("%w: %s in mode %s", ErrUnsupported, filepath.Base(filename), mode)
}
