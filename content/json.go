package content

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // decoders for embedded images
	_ "image/png"
	"io"
	"strconv"
	"strings"

	_ "golang.org/x/image/tiff"

	"github.com/gogpu/convert/geom"
)

// jsonDocument is the on-disk page description format read by ReadJSON.
type jsonDocument struct {
	Info struct {
		Title    string `json:"title"`
		Author   string `json:"author"`
		Subject  string `json:"subject"`
		Producer string `json:"producer"`
	} `json:"info"`
	Pages []jsonPage `json:"pages"`
}

type jsonPage struct {
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Runs   []jsonRun `json:"runs"`
	// Fail injects a load failure: "corrupt" for a fatal one, any other
	// text for a recoverable one.
	Fail string `json:"fail,omitempty"`
}

type jsonRun struct {
	Kind       Kind            `json:"kind"`
	Bounds     []float64       `json:"bounds,omitempty"`
	Clip       []float64       `json:"clip,omitempty"`
	Opaque     bool            `json:"opaque,omitempty"`
	Invisible  bool            `json:"invisible,omitempty"`
	Text       string          `json:"text,omitempty"`
	Font       string          `json:"font,omitempty"`
	FontSize   float64         `json:"font_size,omitempty"`
	Origin     []float64       `json:"origin,omitempty"`
	Fill       string          `json:"fill,omitempty"`
	Path       *geom.Path      `json:"path,omitempty"`
	Image      string          `json:"image,omitempty"`
	Annotation *jsonAnnotation `json:"annotation,omitempty"`
}

type jsonAnnotation struct {
	Subtype  string `json:"subtype"`
	Contents string `json:"contents,omitempty"`
	Author   string `json:"author,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// ReadJSON decodes a page description into a Memory document.
//
// Rectangles are [x0, y0, x1, y1]. Path and image runs without bounds take
// the path hull or fail respectively. Text runs may give an origin instead
// of bounds; their bounds are then left empty for a text measurer to fill.
func ReadJSON(r io.Reader) (*Memory, error) {
	var jd jsonDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jd); err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}

	m := NewMemory(Info{
		Title:    jd.Info.Title,
		Author:   jd.Info.Author,
		Subject:  jd.Info.Subject,
		Producer: jd.Info.Producer,
	})
	for i, jp := range jd.Pages {
		if jp.Width <= 0 || jp.Height <= 0 {
			return nil, fmt.Errorf("content: page %d: invalid size %vx%v", i, jp.Width, jp.Height)
		}
		p := &Page{Index: i, Width: jp.Width, Height: jp.Height}
		for j := range jp.Runs {
			run, err := jp.Runs[j].decode()
			if err != nil {
				return nil, fmt.Errorf("content: page %d run %d: %w", i, j, err)
			}
			p.Runs = append(p.Runs, run)
		}
		m.pages = append(m.pages, p)

		switch jp.Fail {
		case "":
		case "corrupt":
			m.FailPage(i, fmt.Errorf("page %d: %w", i, ErrCorruptPage))
		default:
			m.FailPage(i, fmt.Errorf("page %d: %s", i, jp.Fail))
		}
	}
	return m, nil
}

func (jr *jsonRun) decode() (Run, error) {
	run := Run{
		Kind:      jr.Kind,
		Opaque:    jr.Opaque,
		Invisible: jr.Invisible,
		Text:      jr.Text,
		Font:      jr.Font,
		FontSize:  jr.FontSize,
		Path:      jr.Path,
		Fill:      color.NRGBA{A: 0xff},
	}

	var err error
	if run.Bounds, err = parseRect(jr.Bounds); err != nil {
		return Run{}, fmt.Errorf("bounds: %w", err)
	}
	if run.Clip, err = parseRect(jr.Clip); err != nil {
		return Run{}, fmt.Errorf("clip: %w", err)
	}
	if jr.Fill != "" {
		if run.Fill, err = ParseColor(jr.Fill); err != nil {
			return Run{}, err
		}
	}
	if len(jr.Origin) > 0 {
		if len(jr.Origin) != 2 {
			return Run{}, errors.New("origin needs 2 numbers")
		}
		run.Origin = geom.Pt(jr.Origin[0], jr.Origin[1])
	}

	switch jr.Kind {
	case KindText:
		if run.FontSize <= 0 {
			run.FontSize = 12
		}
	case KindPath:
		if run.Path == nil {
			return Run{}, errors.New("path run without path")
		}
		if run.Bounds.Empty() {
			run.Bounds = run.Path.Bounds()
		}
	case KindImage:
		if jr.Image == "" {
			return Run{}, errors.New("image run without image")
		}
		if run.Bounds.Empty() {
			return Run{}, errors.New("image run without bounds")
		}
		data, err := base64.StdEncoding.DecodeString(jr.Image)
		if err != nil {
			return Run{}, fmt.Errorf("image: %w", err)
		}
		if run.Image, _, err = image.Decode(bytes.NewReader(data)); err != nil {
			return Run{}, fmt.Errorf("image: %w", err)
		}
	case KindAnnotation:
		if jr.Annotation == nil {
			return Run{}, errors.New("annotation run without annotation")
		}
		run.Annotation = &Annotation{
			Subtype:  jr.Annotation.Subtype,
			Contents: jr.Annotation.Contents,
			Author:   jr.Annotation.Author,
			URI:      jr.Annotation.URI,
		}
	}
	return run, nil
}

func parseRect(v []float64) (geom.Rect, error) {
	switch len(v) {
	case 0:
		return geom.Rect{}, nil
	case 4:
		return geom.NewRect(geom.Pt(v[0], v[1]), geom.Pt(v[2], v[3])), nil
	default:
		return geom.Rect{}, fmt.Errorf("want 4 numbers, got %d", len(v))
	}
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("content: color %q: missing '#'", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("content: color %q: bad length", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("content: color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
