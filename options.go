package convert

import (
	"errors"
	"fmt"

	"github.com/gogpu/convert/backend/epub"
	"github.com/gogpu/convert/backend/html"
	"github.com/gogpu/convert/backend/imagestack"
	"github.com/gogpu/convert/backend/svg"
	"github.com/gogpu/convert/backend/xod"
	"github.com/gogpu/convert/backend/xps"
	"github.com/gogpu/convert/flatten"
)

// Options is a per-format, validated conversion record. The concrete types
// are SVGOptions, XODOptions, XPSOptions, HTMLOptions, EPUBOptions and
// ImageOptions.
// Records are values; a job keeps its own copy.
type Options interface {
	// Format returns the output format the record configures.
	Format() Format

	// Validate reports the first invalid field as an *OptionError.
	Validate() error

	settings() settings
}

// settings is what a job needs from an option record.
type settings struct {
	policy      flatten.Policy
	flatten     []flatten.Option
	writer      any
	transparent bool

	// Target rules.
	dirAllowed   bool
	dirRequired  bool
	streamDenied string
}

// AnnotationOutput selects where XOD annotations go.
type AnnotationOutput uint8

const (
	// AnnotInternalXFDF stores annotations inside the package.
	AnnotInternalXFDF AnnotationOutput = iota
	// AnnotExternalXFDF writes a .xfdf file next to the artifact.
	AnnotExternalXFDF
	// AnnotFlatten rasterizes annotations with the page.
	AnnotFlatten
)

var annotationNames = [...]string{
	AnnotInternalXFDF: "internal_xfdf",
	AnnotExternalXFDF: "external_xfdf",
	AnnotFlatten:      "flatten",
}

func (a AnnotationOutput) String() string {
	if int(a) < len(annotationNames) {
		return annotationNames[a]
	}
	return fmt.Sprintf("AnnotationOutput(%d)", a)
}

// MarshalText implements encoding.TextMarshaler.
func (a AnnotationOutput) MarshalText() ([]byte, error) {
	if int(a) >= len(annotationNames) {
		return nil, &OptionError{Field: "annotation_output", Value: int(a)}
	}
	return []byte(annotationNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AnnotationOutput) UnmarshalText(b []byte) error {
	for i, n := range annotationNames {
		if n == string(b) {
			*a = AnnotationOutput(i)
			return nil
		}
	}
	return &OptionError{Field: "annotation_output", Value: string(b)}
}

// policyFields maps flatten.PolicyError fields to option names.
var policyFields = map[string]string{
	"mode":       "flatten_mode",
	"threshold":  "flatten_threshold",
	"dpi":        "dpi",
	"max_pixels": "max_image_pixels",
}

func validatePolicy(p flatten.Policy) error {
	err := p.Validate()
	if err == nil {
		return nil
	}
	var pe *flatten.PolicyError
	if errors.As(err, &pe) {
		field := policyFields[pe.Field]
		if field == "" {
			field = pe.Field
		}
		return &OptionError{Field: field, Value: pe.Value, Reason: "out of range"}
	}
	return &OptionError{Field: "flatten", Value: p, Reason: err.Error()}
}

func validateQuality(q int) error {
	if q < 0 || q > 100 {
		return &OptionError{Field: "jpeg_quality", Value: q, Reason: "must be in [0, 100]"}
	}
	return nil
}

// SVGOptions configures SVG output.
type SVGOptions struct {
	Flatten flatten.Policy `yaml:"flatten"`

	// Compress writes gzip-compressed SVGZ.
	Compress bool `yaml:"compress"`
	DTD      bool `yaml:"dtd"`

	// Annots keeps annotations as links and titled hot spots.
	Annots bool `yaml:"annots"`
}

// DefaultSVGOptions returns the SVG defaults: fast flattening at 140 DPI,
// a doctype and interactive annotations.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{Flatten: flatten.DefaultPolicy(), DTD: true, Annots: true}
}

func (SVGOptions) Format() Format { return FormatSVG }

func (o SVGOptions) Validate() error {
	return validatePolicy(o.Flatten)
}

func (o SVGOptions) settings() settings {
	return settings{
		policy: o.Flatten,
		writer: svg.Options{Compress: o.Compress, DTD: o.DTD, Annots: o.Annots},
	}
}

// DefaultElementLimit is the XOD per-page run limit.
const DefaultElementLimit = 2_000_000_000

// XODOptions configures XOD packages.
type XODOptions struct {
	Flatten flatten.Policy `yaml:"flatten"`

	PreferJPG   bool `yaml:"prefer_jpg"`
	JPEGQuality int  `yaml:"jpeg_quality"`

	Thumbnails         bool `yaml:"thumbnails"`
	ThumbnailSize      int  `yaml:"thumbnail_size"`
	LargeThumbnailSize int  `yaml:"large_thumbnail_size"`

	AnnotationOutput AnnotationOutput `yaml:"annotation_output"`

	// ElementLimit rasterizes whole pages holding more runs.
	ElementLimit int `yaml:"element_limit"`

	// ExternalParts writes loose files into a directory target.
	ExternalParts bool `yaml:"external_parts"`
}

// DefaultXODOptions returns the XOD defaults.
func DefaultXODOptions() XODOptions {
	return XODOptions{
		Flatten:            flatten.DefaultPolicy(),
		PreferJPG:          true,
		JPEGQuality:        80,
		Thumbnails:         true,
		ThumbnailSize:      400,
		LargeThumbnailSize: 1500,
		ElementLimit:       DefaultElementLimit,
	}
}

func (XODOptions) Format() Format { return FormatXOD }

func (o XODOptions) Validate() error {
	if err := validatePolicy(o.Flatten); err != nil {
		return err
	}
	if err := validateQuality(o.JPEGQuality); err != nil {
		return err
	}
	switch {
	case int(o.AnnotationOutput) >= len(annotationNames):
		return &OptionError{Field: "annotation_output", Value: int(o.AnnotationOutput)}
	case o.ThumbnailSize < 0:
		return &OptionError{Field: "thumbnail_size", Value: o.ThumbnailSize, Reason: "negative"}
	case o.LargeThumbnailSize < 0:
		return &OptionError{Field: "large_thumbnail_size", Value: o.LargeThumbnailSize, Reason: "negative"}
	case o.ElementLimit < 0:
		return &OptionError{Field: "element_limit", Value: o.ElementLimit, Reason: "negative"}
	}
	return nil
}

func (o XODOptions) settings() settings {
	w := xod.Options{
		PreferJPG:          o.PreferJPG,
		JPEGQuality:        o.JPEGQuality,
		Thumbnails:         o.Thumbnails,
		ThumbnailSize:      o.ThumbnailSize,
		LargeThumbnailSize: o.LargeThumbnailSize,
	}
	s := settings{
		policy:      o.Flatten,
		flatten:     []flatten.Option{flatten.ElementLimit(o.ElementLimit)},
		dirAllowed:  o.ExternalParts,
		dirRequired: o.ExternalParts,
	}
	switch o.AnnotationOutput {
	case AnnotInternalXFDF:
		w.Annotations = xod.AnnotsInternal
	case AnnotExternalXFDF:
		w.Annotations = xod.AnnotsExternal
		s.streamDenied = "external_xfdf needs a path target"
	case AnnotFlatten:
		w.Annotations = xod.AnnotsNone
		s.flatten = append(s.flatten, flatten.FlattenAnnotations(true))
	}
	if o.ExternalParts {
		s.streamDenied = "external_parts needs a directory target"
	}
	s.writer = w
	return s
}

// XPSOptions configures XPS packages. Pages share the FixedPage markup of
// XOD; XPS has no thumbnails and keeps only link annotations, as hot
// spots, unless FlattenAnnotations draws them into the page.
type XPSOptions struct {
	Flatten flatten.Policy `yaml:"flatten"`

	PreferJPG   bool `yaml:"prefer_jpg"`
	JPEGQuality int  `yaml:"jpeg_quality"`

	// OpenXPS writes the ECMA-388 flavour of the package.
	OpenXPS bool `yaml:"open_xps"`

	FlattenAnnotations bool `yaml:"flatten_annotations"`
}

// DefaultXPSOptions returns the XPS defaults: Microsoft XPS at 140 DPI.
func DefaultXPSOptions() XPSOptions {
	return XPSOptions{Flatten: flatten.DefaultPolicy(), JPEGQuality: 80}
}

func (XPSOptions) Format() Format { return FormatXPS }

func (o XPSOptions) Validate() error {
	if err := validatePolicy(o.Flatten); err != nil {
		return err
	}
	return validateQuality(o.JPEGQuality)
}

func (o XPSOptions) settings() settings {
	s := settings{
		policy: o.Flatten,
		writer: xps.Options{PreferJPG: o.PreferJPG, JPEGQuality: o.JPEGQuality, OpenXPS: o.OpenXPS},
	}
	if o.FlattenAnnotations {
		s.flatten = []flatten.Option{flatten.FlattenAnnotations(true)}
	}
	return s
}

// HTMLOptions configures single-file HTML output.
type HTMLOptions struct {
	Flatten flatten.Policy `yaml:"flatten"`

	PreferJPG   bool `yaml:"prefer_jpg"`
	JPEGQuality int  `yaml:"jpeg_quality"`

	// Reflow writes text in reading order instead of fixed positions.
	Reflow bool `yaml:"reflow"`

	// Scale multiplies page units into CSS pixels.
	Scale float64 `yaml:"scale"`

	SimplifyText bool `yaml:"simplify_text"`
}

// DefaultHTMLOptions returns the HTML defaults.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Flatten:     flatten.DefaultPolicy(),
		PreferJPG:   true,
		JPEGQuality: 80,
		Scale:       1,
	}
}

func (HTMLOptions) Format() Format { return FormatHTML }

func (o HTMLOptions) Validate() error {
	if err := validatePolicy(o.Flatten); err != nil {
		return err
	}
	if err := validateQuality(o.JPEGQuality); err != nil {
		return err
	}
	if !(o.Scale > 0) {
		return &OptionError{Field: "scale", Value: o.Scale, Reason: "must be positive"}
	}
	return nil
}

func (o HTMLOptions) writerOptions() html.Options {
	return html.Options{
		PreferJPG:    o.PreferJPG,
		JPEGQuality:  o.JPEGQuality,
		Reflow:       o.Reflow,
		Scale:        o.Scale,
		SimplifyText: o.SimplifyText,
	}
}

func (o HTMLOptions) settings() settings {
	return settings{policy: o.Flatten, writer: o.writerOptions()}
}

// EPUBOptions configures EPUB 3 output. Pages are laid out as HTML.
type EPUBOptions struct {
	HTML HTMLOptions `yaml:"html"`

	// Expanded writes the publication as a directory tree.
	Expanded bool `yaml:"expanded"`

	// ReuseCover takes the first image of page one as the cover.
	ReuseCover bool `yaml:"reuse_cover"`
}

// DefaultEPUBOptions returns the EPUB defaults.
func DefaultEPUBOptions() EPUBOptions {
	return EPUBOptions{HTML: DefaultHTMLOptions()}
}

func (EPUBOptions) Format() Format { return FormatEPUB }

func (o EPUBOptions) Validate() error {
	return o.HTML.Validate()
}

func (o EPUBOptions) settings() settings {
	s := settings{
		policy:      o.HTML.Flatten,
		writer:      epub.Options{HTML: o.HTML.writerOptions(), Expanded: o.Expanded, ReuseCover: o.ReuseCover},
		dirAllowed:  o.Expanded,
		dirRequired: o.Expanded,
	}
	if o.Expanded {
		s.streamDenied = "expanded needs a directory target"
	}
	return s
}

// DefaultImageDPI is the default resolution of image stacks.
const DefaultImageDPI = 92

// ImageOptions configures raster image stacks. Every page is rendered
// whole; the result is a zip archive, or loose files for directory
// targets.
type ImageOptions struct {
	// Type is FormatTIFF, FormatPNG or FormatJPEG.
	Type Format `yaml:"type"`

	DPI         int   `yaml:"dpi"`
	MaxPixels   int64 `yaml:"max_pixels"`
	JPEGQuality int   `yaml:"jpeg_quality"`

	// Rotate turns pages clockwise by 0, 90, 180 or 270 degrees.
	Rotate int  `yaml:"rotate"`
	Gray   bool `yaml:"gray"`

	// TransparentPage leaves the page background transparent instead of
	// white. JPEG has no alpha and always gets a white page.
	TransparentPage bool `yaml:"transparent_page"`
}

// DefaultImageOptions returns the defaults for image stacks of type f.
func DefaultImageOptions(f Format) ImageOptions {
	return ImageOptions{
		Type:        f,
		DPI:         DefaultImageDPI,
		MaxPixels:   flatten.DefaultMaxPixels,
		JPEGQuality: 80,
	}
}

func (o ImageOptions) Format() Format { return o.Type }

func (o ImageOptions) policy() flatten.Policy {
	p := flatten.DefaultPolicy()
	p.DPI = o.DPI
	p.MaxPixels = o.MaxPixels
	return p
}

func (o ImageOptions) Validate() error {
	if !o.Type.IsImage() {
		return &OptionError{Field: "type", Value: o.Type, Reason: "not an image format"}
	}
	if err := validatePolicy(o.policy()); err != nil {
		return err
	}
	if err := validateQuality(o.JPEGQuality); err != nil {
		return err
	}
	switch o.Rotate {
	case 0, 90, 180, 270:
	default:
		return &OptionError{Field: "rotate", Value: o.Rotate, Reason: "must be 0, 90, 180 or 270"}
	}
	return nil
}

func (o ImageOptions) settings() settings {
	return settings{
		policy: o.policy(),
		writer: imagestack.Options{
			Codec:       o.Type.String(),
			JPEGQuality: o.JPEGQuality,
			Rotate:      o.Rotate,
			Gray:        o.Gray,
		},
		transparent: o.TransparentPage && o.Type != FormatJPEG,
		dirAllowed:  true,
	}
}

// AppendOptions configures AppendTo.
type AppendOptions struct {
	Flatten flatten.Policy `yaml:"flatten"`

	// FlattenAnnotations rasterizes annotations with the page.
	FlattenAnnotations bool `yaml:"flatten_annotations"`
}

// DefaultAppendOptions returns the append defaults.
func DefaultAppendOptions() AppendOptions {
	return AppendOptions{Flatten: flatten.DefaultPolicy()}
}

// Validate reports the first invalid field.
func (o AppendOptions) Validate() error {
	return validatePolicy(o.Flatten)
}

// DefaultOptions returns the default record for f.
func DefaultOptions(f Format) (Options, error) {
	switch f {
	case FormatSVG:
		return DefaultSVGOptions(), nil
	case FormatXOD:
		return DefaultXODOptions(), nil
	case FormatHTML:
		return DefaultHTMLOptions(), nil
	case FormatEPUB:
		return DefaultEPUBOptions(), nil
	case FormatXPS:
		return DefaultXPSOptions(), nil
	case FormatTIFF, FormatPNG, FormatJPEG:
		return DefaultImageOptions(f), nil
	}
	return nil, &OptionError{Field: "format", Value: f, Reason: "unknown format"}
}
