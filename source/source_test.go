package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gogpu/convert/content"
)

func TestOpen_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Doc.JSON")
	data := `{"info":{"title":"t"},"pages":[{"width":100,"height":50,"runs":[{"kind":"text","text":"hi","origin":[1,10]}]}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 1 || doc.Info().Title != "t" {
		t.Errorf("pages=%d title=%q", doc.NumPages(), doc.Info().Title)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	if _, err := Open(context.Background(), "a.dwg"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if Supports("a.dwg") {
		t.Error("Supports(a.dwg) = true")
	}
}

func TestRegister(t *testing.T) {
	Register("TST", func(context.Context, string) (content.Document, error) { return nil, nil })
	if !slices.Contains(Exts(), ".tst") {
		t.Errorf("Exts() = %v", Exts())
	}
	if !Supports("x.tst") {
		t.Error("extension not normalised")
	}
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register(".tst", func(context.Context, string) (content.Document, error) { return nil, nil })
}
