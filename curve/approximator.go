package curve

import (
	"errors"
	"fmt"

	"github.com/gogpu/convert/geom"
)

// Tolerance is the maximum distance, in page units, between any source
// sample and the fitted curve.
const Tolerance = 0.25

var (
	// ErrInvalidState is returned when points are added after finalization.
	ErrInvalidState = errors.New("curve: approximator already finalized")

	// ErrEmptyCurve is returned when cubic output is queried before any
	// source point was added.
	ErrEmptyCurve = errors.New("curve: no source points")

	// ErrIndexOutOfRange is returned for control-point indices outside
	// [0, NumCubicPoints).
	ErrIndexOutOfRange = errors.New("curve: control point index out of range")
)

// Approximator accumulates source points for one path and fits them to
// cubic Bezier segments on first query.
//
// An Approximator is not safe for concurrent use.
type Approximator struct {
	src       []geom.Point
	segments  []geom.Cubic
	finalized bool
}

// New returns an empty Approximator.
func New() *Approximator {
	return &Approximator{}
}

// AddSourcePoint appends a sample. It fails with ErrInvalidState once the
// approximator has been finalized.
func (a *Approximator) AddSourcePoint(x, y float64) error {
	if a.finalized {
		return ErrInvalidState
	}
	a.src = append(a.src, geom.Pt(x, y))
	return nil
}

// NumSourcePoints returns the number of samples added since creation.
func (a *Approximator) NumSourcePoints() int {
	return len(a.src)
}

// NumCubicPoints finalizes the approximator and returns the number of cubic
// control points. The result is always a multiple of 4.
func (a *Approximator) NumCubicPoints() (int, error) {
	if err := a.finalize(); err != nil {
		return 0, err
	}
	return len(a.segments) * 4, nil
}

// CubicX returns the x coordinate of the i-th control point.
func (a *Approximator) CubicX(i int) (float64, error) {
	p, err := a.controlPoint(i)
	return p.X, err
}

// CubicY returns the y coordinate of the i-th control point.
func (a *Approximator) CubicY(i int) (float64, error) {
	p, err := a.controlPoint(i)
	return p.Y, err
}

// Segments finalizes the approximator and returns the fitted segments.
// Consecutive segments share an endpoint. The returned slice must not be
// modified.
func (a *Approximator) Segments() ([]geom.Cubic, error) {
	if err := a.finalize(); err != nil {
		return nil, err
	}
	return a.segments, nil
}

// Finalized reports whether the fit has been computed.
func (a *Approximator) Finalized() bool {
	return a.finalized
}

func (a *Approximator) controlPoint(i int) (geom.Point, error) {
	if err := a.finalize(); err != nil {
		return geom.Point{}, err
	}
	n := len(a.segments) * 4
	if i < 0 || i >= n {
		return geom.Point{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, n)
	}
	return a.segments[i/4].Points()[i%4], nil
}

func (a *Approximator) finalize() error {
	if a.finalized {
		return nil
	}
	if len(a.src) == 0 {
		return ErrEmptyCurve
	}
	a.segments = fit(a.src, Tolerance)
	a.finalized = true
	return nil
}

// Approximate fits pts with a fresh Approximator.
func Approximate(pts []geom.Point) ([]geom.Cubic, error) {
	a := New()
	for _, p := range pts {
		if err := a.AddSourcePoint(p.X, p.Y); err != nil {
			return nil, err
		}
	}
	return a.Segments()
}
