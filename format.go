package convert

import "fmt"

// Format is an output format.
type Format uint8

const (
	FormatSVG Format = iota
	FormatXOD
	FormatHTML
	FormatEPUB
	FormatTIFF
	FormatPNG
	FormatJPEG
	FormatXPS
)

var formatNames = [...]string{
	FormatSVG:  "svg",
	FormatXOD:  "xod",
	FormatHTML: "html",
	FormatEPUB: "epub",
	FormatTIFF: "tiff",
	FormatPNG:  "png",
	FormatJPEG: "jpeg",
	FormatXPS:  "xps",
}

// Formats lists every output format.
func Formats() []Format {
	out := make([]Format, len(formatNames))
	for i := range formatNames {
		out[i] = Format(i)
	}
	return out
}

// String returns the format name, which is also its writer name.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", f)
}

// Ext returns the usual file extension of a single-file artifact.
func (f Format) Ext() string {
	switch f {
	case FormatSVG:
		return ".svg"
	case FormatXOD:
		return ".xod"
	case FormatHTML:
		return ".html"
	case FormatEPUB:
		return ".epub"
	case FormatXPS:
		return ".xps"
	}
	return ".zip"
}

// IsImage reports whether f is a raster image stack.
func (f Format) IsImage() bool {
	return f == FormatTIFF || f == FormatPNG || f == FormatJPEG
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if int(f) >= len(formatNames) {
		return nil, &OptionError{Field: "format", Value: int(f)}
	}
	return []byte(formatNames[f]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "jpg" and "tif" are
// accepted as aliases.
func (f *Format) UnmarshalText(b []byte) error {
	s := string(b)
	switch s {
	case "jpg":
		s = "jpeg"
	case "tif":
		s = "tiff"
	}
	for i, n := range formatNames {
		if n == s {
			*f = Format(i)
			return nil
		}
	}
	return &OptionError{Field: "format", Value: string(b), Reason: "unknown format"}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	var f Format
	err := f.UnmarshalText([]byte(s))
	return f, err
}
