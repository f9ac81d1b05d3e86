package backend

import (
	"bytes"
	"slices"
	"testing"

	"github.com/gogpu/convert/content"
	"github.com/gogpu/convert/flatten"
)

type mockWriter struct {
	pages int
}

func (*mockWriter) Caps() Caps { return Caps{} }
func (*mockWriter) Begin(Output, Info) error { return nil }
func (w *mockWriter) WritePage(*Page) error { w.pages++; return nil }
func (*mockWriter) End() error { return nil }

func TestRegistry(t *testing.T) {
	Register("mock", func(any) (Writer, error) { return &mockWriter{}, nil })
	t.Cleanup(func() { Unregister("mock") })

	if !IsRegistered("mock") {
		t.Fatal("IsRegistered(mock) = false")
	}
	if !slices.Contains(Names(), "mock") {
		t.Errorf("Names() = %v, want mock listed", Names())
	}
	w, err := New("mock", nil)
	if err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	if _, ok := w.(*mockWriter); !ok {
		t.Errorf("New(mock) = %T", w)
	}

	if _, err := New("nope", nil); err == nil {
		t.Error("New(nope) succeeded")
	}
}

func TestRegister_Panics(t *testing.T) {
	Register("dup", func(any) (Writer, error) { return &mockWriter{}, nil })
	t.Cleanup(func() { Unregister("dup") })

	for name, fn := range map[string]func(){
		"duplicate": func() { Register("dup", func(any) (Writer, error) { return nil, nil }) },
		"nil":       func() { Register("nil", nil) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register did not panic")
				}
			}()
			fn()
		})
	}
}

func TestOutput_Container(t *testing.T) {
	var buf bytes.Buffer
	c := Output{W: &buf}.Container()
	w, err := c.Create("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("hello"))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("zip container did not write a zip archive")
	}
}

func TestPage_Annotations(t *testing.T) {
	p := &Page{Layers: []Layer{
		{Kind: flatten.LayerVector, Runs: []content.Run{{Kind: content.KindText}}},
		{Kind: flatten.LayerAnnotations, Runs: []content.Run{{Kind: content.KindAnnotation}, {Kind: content.KindAnnotation}}},
	}}
	if got := len(p.Annotations()); got != 2 {
		t.Errorf("Annotations() = %d runs, want 2", got)
	}
}
