package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	// ErrPublished is returned when a staged artifact is used after
	// Publish or Discard.
	ErrPublished = errors.New("artifact: already published or discarded")

	// ErrNotEmpty is returned when a directory output would replace a
	// directory that already holds files.
	ErrNotEmpty = errors.New("artifact: destination directory is not empty")
)

// stagingName returns a hidden sibling of path, unique per call. path
// must be clean: a trailing separator would put the name inside it.
func stagingName(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.NewString()))
}

// File is a single output file staged next to its final path.
type File struct {
	final     string
	tmp       string
	f         *os.File
	done      bool
	published bool
}

// CreateFile opens a staging file for path. The parent directory must
// exist.
func CreateFile(path string) (*File, error) {
	path = filepath.Clean(path)
	tmp := stagingName(path)
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("artifact: stage %s: %w", path, err)
	}
	return &File{final: path, tmp: tmp, f: f}, nil
}

// Write appends to the staged file.
func (f *File) Write(p []byte) (int, error) {
	if f.done {
		return 0, ErrPublished
	}
	return f.f.Write(p)
}

// Path returns the final path.
func (f *File) Path() string {
	return f.final
}

// StagingPath returns where the data is written until Publish.
func (f *File) StagingPath() string {
	return f.tmp
}

// Publish flushes the staged file and renames it to the final path,
// replacing any file already there.
func (f *File) Publish() error {
	if f.done {
		return ErrPublished
	}
	f.done = true
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		os.Remove(f.tmp)
		return fmt.Errorf("artifact: sync: %w", err)
	}
	if err := f.f.Close(); err != nil {
		os.Remove(f.tmp)
		return fmt.Errorf("artifact: close: %w", err)
	}
	if err := os.Rename(f.tmp, f.final); err != nil {
		os.Remove(f.tmp)
		return fmt.Errorf("artifact: publish %s: %w", f.final, err)
	}
	f.published = true
	return nil
}

// Revert removes a published file from its final path. It undoes a
// Publish that was part of a larger output which later failed; it does
// nothing if the file was never published.
func (f *File) Revert() error {
	if !f.published {
		return nil
	}
	f.published = false
	if err := os.Remove(f.final); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact: revert %s: %w", f.final, err)
	}
	return nil
}

// Discard removes the staged file. It is a no-op after Publish.
func (f *File) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	f.f.Close()
	if err := os.Remove(f.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact: discard: %w", err)
	}
	return nil
}

// Dir is a loose-file output directory staged next to its final path.
// Dir implements Container; parts may be nested with slash-separated
// names.
type Dir struct {
	final string
	tmp   string
	cur   io.Closer
	done  bool
}

// CreateDir creates a staging directory next to path. The parent must
// exist. path may name an empty directory, which Publish replaces; a
// directory holding files is refused with ErrNotEmpty.
func CreateDir(path string) (*Dir, error) {
	path = filepath.Clean(path)
	if err := checkReplaceable(path); err != nil {
		return nil, err
	}
	tmp := stagingName(path)
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: stage %s: %w", path, err)
	}
	return &Dir{final: path, tmp: tmp}, nil
}

// checkReplaceable fails unless path is missing or an empty directory.
func checkReplaceable(path string) error {
	entries, err := os.ReadDir(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("artifact: %s: %w", path, err)
	case len(entries) > 0:
		return fmt.Errorf("%w: %s", ErrNotEmpty, path)
	}
	return nil
}

// Path returns the final directory path.
func (d *Dir) Path() string {
	return d.final
}

// Create closes the previous part and starts a new file.
func (d *Dir) Create(name string) (io.Writer, error) {
	if d.done {
		return nil, ErrPublished
	}
	if err := d.closeCurrent(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return nil, fmt.Errorf("artifact: part name %q escapes the directory", name)
	}
	p := filepath.Join(d.tmp, clean)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	d.cur = f
	return f, nil
}

// CreateStored is Create; loose files are never compressed.
func (d *Dir) CreateStored(name string) (io.Writer, error) {
	return d.Create(name)
}

// Close finishes the last part. It does not publish.
func (d *Dir) Close() error {
	return d.closeCurrent()
}

func (d *Dir) closeCurrent() error {
	if d.cur == nil {
		return nil
	}
	err := d.cur.Close()
	d.cur = nil
	return err
}

// Publish renames the staging directory to the final path. An empty
// directory at the final path is replaced; files that appeared there
// since CreateDir make Publish fail with ErrNotEmpty and are left alone.
func (d *Dir) Publish() error {
	if d.done {
		return ErrPublished
	}
	d.done = true
	if err := d.closeCurrent(); err != nil {
		os.RemoveAll(d.tmp)
		return fmt.Errorf("artifact: close: %w", err)
	}
	if err := checkReplaceable(d.final); err != nil {
		os.RemoveAll(d.tmp)
		return err
	}
	if err := os.Remove(d.final); err != nil && !errors.Is(err, os.ErrNotExist) {
		os.RemoveAll(d.tmp)
		return fmt.Errorf("artifact: replace %s: %w", d.final, err)
	}
	if err := os.Rename(d.tmp, d.final); err != nil {
		os.RemoveAll(d.tmp)
		return fmt.Errorf("artifact: publish %s: %w", d.final, err)
	}
	return nil
}

// Discard removes the staging directory. It is a no-op after Publish.
func (d *Dir) Discard() error {
	if d.done {
		return nil
	}
	d.done = true
	d.closeCurrent()
	return os.RemoveAll(d.tmp)
}
