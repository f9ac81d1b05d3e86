package artifact

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	return err == nil
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// -------------------------------------------------------------------
// File
// -------------------------------------------------------------------

func TestFile_Publish(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.svg")

	f, err := CreateFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("<svg/>")); err != nil {
		t.Fatal(err)
	}
	if exists(t, final) {
		t.Fatal("final path visible before Publish")
	}
	if err := f.Publish(); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, err := os.ReadFile(final)
	if err != nil || string(got) != "<svg/>" {
		t.Errorf("published content = %q, %v", got, err)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("directory holds %v, want only the artifact", names)
	}
	if err := f.Publish(); !errors.Is(err, ErrPublished) {
		t.Errorf("second Publish() error = %v, want ErrPublished", err)
	}
	if _, err := f.Write([]byte("x")); !errors.Is(err, ErrPublished) {
		t.Errorf("Write() after Publish error = %v", err)
	}
}

func TestFile_Discard(t *testing.T) {
	dir := t.TempDir()
	f, err := CreateFile(filepath.Join(dir, "out.xod"))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.Write([]byte("partial"))
	if err := f.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("directory holds %v after Discard", names)
	}
}

func TestCreateFile_MissingDir(t *testing.T) {
	if _, err := CreateFile(filepath.Join(t.TempDir(), "nope", "out.svg")); err == nil {
		t.Error("CreateFile() in missing directory succeeded")
	}
}

// -------------------------------------------------------------------
// Dir
// -------------------------------------------------------------------

func TestDir_PublishAndDiscard(t *testing.T) {
	root := t.TempDir()
	final := filepath.Join(root, "book")

	d, err := CreateDir(final)
	if err != nil {
		t.Fatal(err)
	}
	w, err := d.Create("Pages/1.xaml")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "<Canvas/>")
	w, err = d.CreateStored("mimetype")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "application/epub+zip")

	if _, err := d.Create("../escape"); err == nil {
		t.Error("Create(../escape) succeeded")
	}
	if exists(t, final) {
		t.Fatal("final dir visible before Publish")
	}
	if err := d.Publish(); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(final, "Pages", "1.xaml"))
	if err != nil || string(got) != "<Canvas/>" {
		t.Errorf("part = %q, %v", got, err)
	}

	d2, err := CreateDir(filepath.Join(root, "other"))
	if err != nil {
		t.Fatal(err)
	}
	d2.Create("a.txt")
	if err := d2.Discard(); err != nil {
		t.Fatal(err)
	}
	if names := listDir(t, root); len(names) != 1 || names[0] != "book" {
		t.Errorf("root holds %v, want [book]", names)
	}
}

func TestCreateDir_Destinations(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, final string)
		path    func(final string) string
		wantErr error
	}{
		{
			name:  "trailing separator, missing",
			setup: func(*testing.T, string) {},
			path:  func(final string) string { return final + string(filepath.Separator) },
		},
		{
			name: "trailing separator, empty",
			setup: func(t *testing.T, final string) {
				if err := os.Mkdir(final, 0o755); err != nil {
					t.Fatal(err)
				}
			},
			path: func(final string) string { return final + string(filepath.Separator) },
		},
		{
			name: "holds files",
			setup: func(t *testing.T, final string) {
				if err := os.Mkdir(final, 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(final, "keep.txt"), []byte("mine"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			path:    func(final string) string { return final + string(filepath.Separator) },
			wantErr: ErrNotEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			final := filepath.Join(root, "pages")
			tt.setup(t, final)

			d, err := CreateDir(tt.path(final))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateDir() error = %v, want %v", err, tt.wantErr)
				}
				got, rerr := os.ReadFile(filepath.Join(final, "keep.txt"))
				if rerr != nil || string(got) != "mine" {
					t.Errorf("keep.txt = %q, %v after refused CreateDir", got, rerr)
				}
				if names := listDir(t, root); len(names) != 1 {
					t.Errorf("root holds %v, want only pages", names)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateDir() error = %v", err)
			}
			if d.Path() != final {
				t.Errorf("Path() = %q, want %q", d.Path(), final)
			}
			w, err := d.Create("page0001.png")
			if err != nil {
				t.Fatal(err)
			}
			io.WriteString(w, "png")
			if err := d.Publish(); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if names := listDir(t, final); len(names) != 1 || names[0] != "page0001.png" {
				t.Errorf("published dir holds %v", names)
			}
			if names := listDir(t, root); len(names) != 1 || names[0] != "pages" {
				t.Errorf("root holds %v, want [pages]", names)
			}
		})
	}
}

func TestDir_PublishRefusesFilesAddedLater(t *testing.T) {
	root := t.TempDir()
	final := filepath.Join(root, "pages")

	d, err := CreateDir(final)
	if err != nil {
		t.Fatal(err)
	}
	d.Create("a.txt")
	if err := os.Mkdir(final, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(final, "keep.txt"), []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Publish(); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("Publish() error = %v, want ErrNotEmpty", err)
	}
	if names := listDir(t, final); len(names) != 1 || names[0] != "keep.txt" {
		t.Errorf("destination holds %v, want [keep.txt]", names)
	}
	if names := listDir(t, root); len(names) != 1 {
		t.Errorf("staging left behind: %v", names)
	}
}

func TestFile_Revert(t *testing.T) {
	root := t.TempDir()
	final := filepath.Join(root, "doc.xfdf")

	f, err := CreateFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Revert(); err != nil {
		t.Fatalf("Revert() before Publish error = %v", err)
	}
	io.WriteString(f, "<xfdf/>")
	if err := f.Publish(); err != nil {
		t.Fatal(err)
	}
	if err := f.Revert(); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if exists(t, final) {
		t.Error("reverted file still at its final path")
	}
	if err := f.Revert(); err != nil {
		t.Errorf("second Revert() error = %v", err)
	}
}

// -------------------------------------------------------------------
// Zip
// -------------------------------------------------------------------

func TestZip(t *testing.T) {
	var buf bytes.Buffer
	z := NewZip(&buf)
	w, _ := z.CreateStored("mimetype")
	io.WriteString(w, "application/epub+zip")
	w, _ = z.Create("OEBPS/page1.xhtml")
	io.WriteString(w, "<html/>")
	if err := z.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != "mimetype" || zr.File[0].Method != zip.Store {
		t.Errorf("first entry = %s method %d, want stored mimetype", zr.File[0].Name, zr.File[0].Method)
	}
	if zr.File[1].Method != zip.Deflate {
		t.Errorf("second entry method = %d, want Deflate", zr.File[1].Method)
	}
}

// -------------------------------------------------------------------
// Stream
// -------------------------------------------------------------------

func TestStream_PullsProducer(t *testing.T) {
	chunks := []string{"page1;", "page2;", "page3;"}
	var s *Stream
	s = NewStream(func() bool {
		if len(chunks) == 0 {
			s.Finish(nil)
			return false
		}
		s.Write([]byte(chunks[0]))
		chunks = chunks[1:]
		return true
	})

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "page1;page2;page3;" {
		t.Errorf("ReadAll() = %q", got)
	}
	if s.Written() != int64(len(got)) {
		t.Errorf("Written() = %d, want %d", s.Written(), len(got))
	}
}

func TestStream_ReadBeforeFinish(t *testing.T) {
	s := NewStream(nil)
	s.Write([]byte("abc"))

	p := make([]byte, 8)
	n, err := s.Read(p)
	if n != 3 || err != nil {
		t.Fatalf("Read() = %d, %v, want 3, nil", n, err)
	}
	if n, err := s.Read(p); n != 0 || err != nil {
		t.Errorf("Read() on drained open stream = %d, %v, want 0, nil", n, err)
	}
	s.Finish(nil)
	if _, err := s.Read(p); err != io.EOF {
		t.Errorf("Read() after Finish = %v, want EOF", err)
	}
	if _, err := s.Write([]byte("x")); err == nil {
		t.Error("Write() after Finish succeeded")
	}
}

func TestStream_ErrorAndDiscard(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream(nil)
	s.Write([]byte("ok"))
	s.Finish(boom)

	got, err := io.ReadAll(s)
	if string(got) != "ok" || !errors.Is(err, boom) {
		t.Errorf("ReadAll() = %q, %v, want \"ok\", boom", got, err)
	}

	d := NewStream(nil)
	d.Write([]byte("secret"))
	d.Discard()
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after Discard", d.Buffered())
	}
	if _, err := d.Read(make([]byte, 4)); !errors.Is(err, ErrDiscarded) {
		t.Errorf("Read() after Discard = %v, want ErrDiscarded", err)
	}
}
