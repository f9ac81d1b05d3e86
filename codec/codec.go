// Package codec provides the raster image encoders used for tiles,
// thumbnails and image-stack pages.
//
// Encoders are looked up by name in a registry following the database/sql
// driver pattern. The png, jpeg and tiff encoders are registered by this
// package.
package codec

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"sync"

	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when Options.JPEGQuality is zero.
const DefaultJPEGQuality = 80

// Options tunes encoders. Fields an encoder does not use are ignored.
type Options struct {
	// JPEGQuality in [1, 100]. Zero selects DefaultJPEGQuality.
	JPEGQuality int
}

// Encoder writes images in one format.
type Encoder interface {
	// Name is the registry name, e.g. "png".
	Name() string
	// Ext is the file extension including the dot.
	Ext() string
	// MediaType is the MIME type of the output.
	MediaType() string
	Encode(w io.Writer, img image.Image) error
}

// Factory builds an Encoder for the given options.
type Factory func(Options) Encoder

var (
	registryMu sync.RWMutex
	encoders   = make(map[string]Factory)
)

// Register makes an encoder available by name. It panics if factory is nil
// or the name is taken.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("codec: Register factory is nil")
	}
	if _, dup := encoders[name]; dup {
		panic("codec: Register called twice for " + name)
	}
	encoders[name] = factory
}

// New returns the encoder registered under name.
func New(name string, opts Options) (Encoder, error) {
	registryMu.RLock()
	factory, ok := encoders[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: unknown encoder %q", name)
	}
	return factory(opts), nil
}

// Names returns the registered encoder names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(encoders))
	for n := range encoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForTile picks JPEG for opaque images when preferJPEG is set and PNG
// otherwise, so transparent tiles keep their alpha.
func ForTile(img image.Image, preferJPEG bool, quality int) Encoder {
	if preferJPEG && IsOpaque(img) {
		return JPEG(quality)
	}
	return PNG()
}

// IsOpaque reports whether every pixel of img is fully opaque.
func IsOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

type pngEncoder struct {
	enc png.Encoder
}

// PNG returns a PNG encoder using best-speed compression.
func PNG() Encoder {
	return &pngEncoder{enc: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (*pngEncoder) Name() string      { return "png" }
func (*pngEncoder) Ext() string       { return ".png" }
func (*pngEncoder) MediaType() string { return "image/png" }

func (e *pngEncoder) Encode(w io.Writer, img image.Image) error {
	return e.enc.Encode(w, img)
}

type jpegEncoder struct {
	quality int
}

// JPEG returns a baseline JPEG encoder. Quality is clamped to [1, 100];
// zero selects DefaultJPEGQuality.
func JPEG(quality int) Encoder {
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	return &jpegEncoder{quality: min(max(quality, 1), 100)}
}

func (*jpegEncoder) Name() string      { return "jpeg" }
func (*jpegEncoder) Ext() string       { return ".jpg" }
func (*jpegEncoder) MediaType() string { return "image/jpeg" }

func (e *jpegEncoder) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: e.quality})
}

type tiffEncoder struct{}

// TIFF returns a Deflate-compressed TIFF encoder.
func TIFF() Encoder {
	return tiffEncoder{}
}

func (tiffEncoder) Name() string      { return "tiff" }
func (tiffEncoder) Ext() string       { return ".tif" }
func (tiffEncoder) MediaType() string { return "image/tiff" }

func (tiffEncoder) Encode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

func init() {
	Register("png", func(Options) Encoder { return PNG() })
	Register("jpeg", func(o Options) Encoder { return JPEG(o.JPEGQuality) })
	Register("tiff", func(Options) Encoder { return TIFF() })
}
