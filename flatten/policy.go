package flatten

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("flatten: invalid policy")

// Mode selects the flattening strategy.
type Mode uint8

const (
	// ModeOff never rasterizes.
	ModeOff Mode = iota
	// ModeSimple renders a background raster with a text overlay.
	ModeSimple
	// ModeFast preserves unoccluded text.
	ModeFast
	// ModeHighQuality preserves unoccluded text and vector paths.
	ModeHighQuality
)

var modeNames = [...]string{
	ModeOff:         "off",
	ModeSimple:      "simple",
	ModeFast:        "fast",
	ModeHighQuality: "high_quality",
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
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidPolicy, m)
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
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, b)
}

// Threshold is how much occlusion a preservable run tolerates before it is
// rasterized. Values are ordered from least to most tolerant.
type Threshold uint8

const (
	ThresholdVeryStrict Threshold = iota
	ThresholdStrict
	ThresholdDefault
	ThresholdKeepMost
	ThresholdKeepAll
)

var thresholdNames = [...]string{
	ThresholdVeryStrict: "very_strict",
	ThresholdStrict:     "strict",
	ThresholdDefault:    "default",
	ThresholdKeepMost:   "keep_most",
	ThresholdKeepAll:    "keep_all",
}

var thresholdCutoffs = [...]float64{
	ThresholdVeryStrict: 0.0001,
	ThresholdStrict:     0.05,
	ThresholdDefault:    0.25,
	ThresholdKeepMost:   0.6,
	ThresholdKeepAll:    1.0,
}

func (t Threshold) String() string {
	if int(t) < len(thresholdNames) {
		return thresholdNames[t]
	}
	return fmt.Sprintf("Threshold(%d)", t)
}

// Cutoff returns the occluded fraction at or above which a run is
// rasterized.
func (t Threshold) Cutoff() float64 {
	if int(t) < len(thresholdCutoffs) {
		return thresholdCutoffs[t]
	}
	return thresholdCutoffs[ThresholdDefault]
}

// MarshalText implements encoding.TextMarshaler.
func (t Threshold) MarshalText() ([]byte, error) {
	if int(t) >= len(thresholdNames) {
		return nil, fmt.Errorf("%w: threshold %d", ErrInvalidPolicy, t)
	}
	return []byte(thresholdNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Threshold) UnmarshalText(b []byte) error {
	for i, n := range thresholdNames {
		if n == string(b) {
			*t = Threshold(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown threshold %q", ErrInvalidPolicy, b)
}

// Defaults.
const (
	DefaultDPI       = 140
	DefaultMaxPixels = 2_000_000
	MinDPI           = 1
	MaxDPI           = 1000
)

// Policy configures a Flattener. A Policy is a plain value; Validate it
// before use, as New does.
type Policy struct {
	// Mode selects the flattening strategy.
	Mode Mode `yaml:"mode"`

	// Threshold is the occluded fraction above which a run is
	// rasterized. Only the fast and high-quality modes consult it.
	Threshold Threshold `yaml:"threshold"`

	// DPI is the raster resolution, in [1, 1000].
	DPI int `yaml:"dpi"`

	// MaxPixels is the soft pixel budget per raster tile.
	MaxPixels int64 `yaml:"max_pixels"`
}

// DefaultPolicy returns fast flattening at the default threshold, 140 DPI
// and a two megapixel tile budget.
func DefaultPolicy() Policy {
	return Policy{
		Mode:      ModeFast,
		Threshold: ThresholdDefault,
		DPI:       DefaultDPI,
		MaxPixels: DefaultMaxPixels,
	}
}

// PolicyError reports the offending field of an invalid Policy. It
// unwraps to ErrInvalidPolicy.
type PolicyError struct {
	// Field is the yaml name of the field.
	Field string

	// Value is the rejected value.
	Value any
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("flatten: invalid policy: %s = %v", e.Field, e.Value)
}

// Unwrap returns ErrInvalidPolicy.
func (e *PolicyError) Unwrap() error {
	return ErrInvalidPolicy
}

// Validate checks every field. Invalid enum values, a DPI outside
// [1, 1000] and a non-positive pixel budget are rejected even when the
// mode would not consult them.
func (p Policy) Validate() error {
	switch {
	case int(p.Mode) >= len(modeNames):
		return &PolicyError{Field: "mode", Value: p.Mode}
	case int(p.Threshold) >= len(thresholdNames):
		return &PolicyError{Field: "threshold", Value: p.Threshold}
	case p.DPI < MinDPI || p.DPI > MaxDPI:
		return &PolicyError{Field: "dpi", Value: p.DPI}
	case p.MaxPixels <= 0:
		return &PolicyError{Field: "max_pixels", Value: p.MaxPixels}
	}
	return nil
}

// Scale returns device pixels per page unit.
func (p Policy) Scale() float64 {
	return float64(p.DPI) / 72
}
