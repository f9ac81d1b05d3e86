package artifact

import (
	"io"

	"github.com/klauspost/compress/zip"
)

// Container receives the named parts of a multi-part artifact. Parts are
// written one at a time: creating a part finishes the previous one.
type Container interface {
	// Create starts a compressed part.
	Create(name string) (io.Writer, error)
	// CreateStored starts a part that is stored without compression.
	CreateStored(name string) (io.Writer, error)
	// Close finishes the container.
	Close() error
}

// Zip writes parts as entries of a zip archive.
type Zip struct {
	zw *zip.Writer
}

// NewZip returns a Container writing a zip archive to w.
func NewZip(w io.Writer) *Zip {
	return &Zip{zw: zip.NewWriter(w)}
}

// Create starts a Deflate-compressed entry.
func (z *Zip) Create(name string) (io.Writer, error) {
	return z.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
}

// CreateStored starts an uncompressed entry, as required for the EPUB
// mimetype.
func (z *Zip) CreateStored(name string) (io.Writer, error) {
	return z.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
}

// Close writes the central directory. The underlying writer is not closed.
func (z *Zip) Close() error {
	return z.zw.Close()
}
