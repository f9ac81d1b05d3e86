package text

import (
	"testing"

	"github.com/gogpu/convert/geom"
)

func TestShaper_Measure(t *testing.T) {
	s := Default()

	e := s.Measure("Hello, World", 12)
	if e.Advance <= 0 {
		t.Fatalf("Advance = %v, want > 0", e.Advance)
	}
	if e.Ascent <= 0 || e.Descent <= 0 {
		t.Errorf("Ascent, Descent = %v, %v, want both > 0", e.Ascent, e.Descent)
	}

	double := s.Measure("Hello, World", 24)
	if ratio := double.Advance / e.Advance; ratio < 1.9 || ratio > 2.1 {
		t.Errorf("advance ratio at 2x size = %v, want ~2", ratio)
	}

	longer := s.Measure("Hello, World and more", 12)
	if longer.Advance <= e.Advance {
		t.Errorf("longer text Advance = %v, want > %v", longer.Advance, e.Advance)
	}
}

func TestShaper_MeasureEmpty(t *testing.T) {
	if e := Default().Measure("", 12); e != (Extents{}) {
		t.Errorf("Measure(\"\") = %+v, want zero", e)
	}
	if e := Default().Measure("x", 0); e != (Extents{}) {
		t.Errorf("Measure(size 0) = %+v, want zero", e)
	}
}

type fixedMeasurer Extents

func (f fixedMeasurer) Measure(string, float64) Extents { return Extents(f) }

func TestBounds(t *testing.T) {
	m := fixedMeasurer{Advance: 50, Ascent: 9, Descent: 3}
	got := Bounds(m, geom.Pt(10, 100), "ignored", 12)
	want := geom.Rect{Min: geom.Pt(10, 91), Max: geom.Pt(60, 103)}
	if got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
}

func TestNewShaper_BadFont(t *testing.T) {
	if _, err := NewShaper([]byte("not a font")); err == nil {
		t.Error("NewShaper() with garbage succeeded")
	}
}
