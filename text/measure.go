package text

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/convert/geom"
)

// Extents is the measured size of a shaped line, in page units.
type Extents struct {
	Advance float64
	Ascent  float64
	// Descent is positive below the baseline.
	Descent float64
}

// Measurer measures single lines of text.
type Measurer interface {
	Measure(s string, size float64) Extents
}

// Shaper measures text with HarfBuzz shaping from go-text/typesetting.
//
// Shaper is safe for concurrent use. The parsed font is shared; faces and
// HarfbuzzShaper instances are created or pooled per call.
type Shaper struct {
	font *font.Font
	pool sync.Pool
}

// NewShaper parses a TrueType or OpenType font.
func NewShaper(ttf []byte) (*Shaper, error) {
	face, err := font.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("text: parse font: %w", err)
	}
	return &Shaper{
		font: face.Font,
		pool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
	}, nil
}

var defaultShaper = sync.OnceValue(func() *Shaper {
	s, err := NewShaper(goregular.TTF)
	if err != nil {
		panic("text: embedded Go Regular font: " + err.Error())
	}
	return s
})

// Default returns a Shaper for the Go Regular font.
func Default() *Shaper {
	return defaultShaper()
}

// Measure shapes s left to right at size and returns its extents.
func (s *Shaper) Measure(str string, size float64) Extents {
	if str == "" || size <= 0 {
		return Extents{}
	}
	runes := []rune(str)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.NewFace(s.font),
		Size:      floatToFixed(size),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(input)
	s.pool.Put(hb)

	var adv fixed.Int26_6
	for _, g := range out.Glyphs {
		adv += g.Advance
	}
	ext := Extents{
		Advance: fixedToFloat(adv),
		Ascent:  fixedToFloat(out.LineBounds.Ascent),
		Descent: -fixedToFloat(out.LineBounds.Descent),
	}
	if ext.Ascent <= 0 {
		ext.Ascent = 0.8 * size
		ext.Descent = 0.2 * size
	}
	return ext
}

// Bounds returns the box of a single line of text whose baseline starts at
// origin.
func Bounds(m Measurer, origin geom.Point, s string, size float64) geom.Rect {
	e := m.Measure(s, size)
	return geom.Rect{
		Min: geom.Pt(origin.X, origin.Y-e.Ascent),
		Max: geom.Pt(origin.X+e.Advance, origin.Y+e.Descent),
	}
}

func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
