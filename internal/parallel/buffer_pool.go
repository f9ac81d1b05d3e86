package parallel

import (
	"image"
	"sync"
	"sync/atomic"
)

// BufferPool recycles tile raster buffers.
//
// Tiles of one page usually share a width and, except for the last, a
// height, so buffers are pooled per size. Buffers returned by Get are
// cleared to transparent.
//
// BufferPool is safe for concurrent use.
type BufferPool struct {
	pools    sync.Map // bufferKey -> *sync.Pool
	resident atomic.Int64
}

type bufferKey struct {
	w, h int
}

// NewBufferPool returns an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns a cleared w×h buffer whose bounds start at (0, 0).
func (p *BufferPool) Get(w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	key := bufferKey{w, h}
	pool, ok := p.pools.Load(key)
	if !ok {
		pool, _ = p.pools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return image.NewNRGBA(image.Rect(0, 0, w, h))
			},
		})
	}
	img := pool.(*sync.Pool).Get().(*image.NRGBA)
	clear(img.Pix)
	p.resident.Add(int64(w) * int64(h))
	return img
}

// Put returns img to the pool. A nil img is ignored.
func (p *BufferPool) Put(img *image.NRGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := bufferKey{b.Dx(), b.Dy()}
	p.resident.Add(-int64(b.Dx()) * int64(b.Dy()))
	if pool, ok := p.pools.Load(key); ok {
		// Rebase in case the caller moved the rectangle.
		img.Rect = image.Rect(0, 0, key.w, key.h)
		pool.(*sync.Pool).Put(img)
	}
}

// Resident returns the number of pixels handed out and not yet returned.
func (p *BufferPool) Resident() int64 {
	return p.resident.Load()
}
