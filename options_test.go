package convert

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/convert/backend/epub"
	"github.com/gogpu/convert/backend/imagestack"
	"github.com/gogpu/convert/backend/xod"
	"github.com/gogpu/convert/backend/xps"
	"github.com/gogpu/convert/flatten"
)

func TestDefaultOptions_Valid(t *testing.T) {
	for _, f := range Formats() {
		t.Run(f.String(), func(t *testing.T) {
			opts, err := DefaultOptions(f)
			if err != nil {
				t.Fatalf("DefaultOptions(%v) error = %v", f, err)
			}
			if opts.Format() != f {
				t.Errorf("Format() = %v, want %v", opts.Format(), f)
			}
			if err := opts.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
	if err := DefaultAppendOptions().Validate(); err != nil {
		t.Errorf("DefaultAppendOptions().Validate() = %v", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name  string
		opts  func() Options
		field string
	}{
		{"xod quality", func() Options {
			o := DefaultXODOptions()
			o.JPEGQuality = 101
			return o
		}, "jpeg_quality"},
		{"xod annotation output", func() Options {
			o := DefaultXODOptions()
			o.AnnotationOutput = 7
			return o
		}, "annotation_output"},
		{"xod element limit", func() Options {
			o := DefaultXODOptions()
			o.ElementLimit = -1
			return o
		}, "element_limit"},
		{"xps quality", func() Options {
			o := DefaultXPSOptions()
			o.JPEGQuality = -1
			return o
		}, "jpeg_quality"},
		{"html scale", func() Options {
			o := DefaultHTMLOptions()
			o.Scale = 0
			return o
		}, "scale"},
		{"epub threshold", func() Options {
			o := DefaultEPUBOptions()
			o.HTML.Flatten.Threshold = 42
			return o
		}, "flatten_threshold"},
		{"image rotation", func() Options {
			o := DefaultImageOptions(FormatPNG)
			o.Rotate = 45
			return o
		}, "rotate"},
		{"image dpi", func() Options {
			o := DefaultImageOptions(FormatPNG)
			o.DPI = 0
			return o
		}, "dpi"},
		{"image type", func() Options {
			return DefaultImageOptions(FormatSVG)
		}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts().Validate()
			if !errors.Is(err, ErrInvalidOption) {
				t.Fatalf("Validate() = %v, want ErrInvalidOption", err)
			}
			var oe *OptionError
			if !errors.As(err, &oe) || oe.Field != tt.field {
				t.Errorf("Validate() = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestXODOptions_Settings(t *testing.T) {
	o := DefaultXODOptions()
	o.AnnotationOutput = AnnotFlatten
	s := o.settings()

	w, ok := s.writer.(xod.Options)
	if !ok {
		t.Fatalf("writer options = %T, want xod.Options", s.writer)
	}
	if w.Annotations != xod.AnnotsNone {
		t.Errorf("Annotations = %v, want none when flattened", w.Annotations)
	}
	// Element limit plus annotation flattening.
	if len(s.flatten) != 2 {
		t.Errorf("flatten options = %d, want 2", len(s.flatten))
	}
}

func TestXPSOptions_Settings(t *testing.T) {
	o := DefaultXPSOptions()
	if s := o.settings(); len(s.flatten) != 0 || s.dirAllowed {
		t.Errorf("default settings = %+v", s)
	}
	o.OpenXPS = true
	o.FlattenAnnotations = true
	s := o.settings()
	w, ok := s.writer.(xps.Options)
	if !ok {
		t.Fatalf("writer options = %T, want xps.Options", s.writer)
	}
	if !w.OpenXPS || w.JPEGQuality != 80 {
		t.Errorf("writer options = %+v", w)
	}
	if len(s.flatten) != 1 {
		t.Errorf("flatten options = %d, want annotation flattening", len(s.flatten))
	}
	if FormatXPS.Ext() != ".xps" {
		t.Errorf("Ext() = %q", FormatXPS.Ext())
	}
}

func TestImageOptions_Settings(t *testing.T) {
	o := DefaultImageOptions(FormatJPEG)
	o.TransparentPage = true
	o.Rotate = 90
	s := o.settings()

	if s.transparent {
		t.Error("JPEG pages cannot be transparent")
	}
	w := s.writer.(imagestack.Options)
	if w.Codec != "jpeg" || w.Rotate != 90 {
		t.Errorf("writer options = %+v", w)
	}
	if s.policy.DPI != DefaultImageDPI {
		t.Errorf("DPI = %d, want %d", s.policy.DPI, DefaultImageDPI)
	}
}

func TestEPUBOptions_Settings(t *testing.T) {
	o := DefaultEPUBOptions()
	o.Expanded = true
	o.HTML.Reflow = true
	w := o.settings().writer.(epub.Options)
	if !w.Expanded || !w.HTML.Reflow {
		t.Errorf("writer options = %+v", w)
	}
}

func TestFormat_Text(t *testing.T) {
	for _, f := range Formats() {
		b, err := f.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", f, err)
		}
		got, err := ParseFormat(string(b))
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %v, %v", b, got, err)
		}
	}
	aliases := map[string]Format{"jpg": FormatJPEG, "tif": FormatTIFF}
	for s, want := range aliases {
		if got, err := ParseFormat(s); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v", s, got, err, want)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseFormat(docx) error = %v, want ErrInvalidOption", err)
	}
	if FormatTIFF.Ext() != ".zip" || FormatEPUB.Ext() != ".epub" {
		t.Error("unexpected extensions")
	}
}

func TestOptions_YAML(t *testing.T) {
	src := `
flatten:
  mode: high_quality
  threshold: keep_most
  dpi: 200
  max_pixels: 1000000
annotation_output: external_xfdf
thumbnails: false
`
	o := DefaultXODOptions()
	if err := yaml.Unmarshal([]byte(src), &o); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if o.Flatten.Mode != flatten.ModeHighQuality || o.Flatten.Threshold != flatten.ThresholdKeepMost {
		t.Errorf("policy = %+v", o.Flatten)
	}
	if o.Flatten.DPI != 200 || o.AnnotationOutput != AnnotExternalXFDF || o.Thumbnails {
		t.Errorf("options = %+v", o)
	}
	// Unset fields keep their defaults.
	if o.JPEGQuality != 80 || !o.PreferJPG {
		t.Errorf("defaults lost: %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestPageError(t *testing.T) {
	cause := errors.New("bad glyph")
	pe := newPageError(2, cause)
	if pe.Fatal || errors.Is(pe, ErrFatal) {
		t.Error("plain failure classified fatal")
	}
	if !errors.Is(pe, cause) {
		t.Error("PageError does not unwrap to its cause")
	}
	fatal := newPageError(0, errors.Join(cause, ErrFatal))
	if !fatal.Fatal || !errors.Is(fatal, ErrFatal) {
		t.Error("ErrFatal not classified fatal")
	}
}
