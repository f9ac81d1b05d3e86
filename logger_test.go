package convert

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureLogger installs a text logger writing to the returned buffer and
// restores the previous one at cleanup.
func captureLogger(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelError) {
		t.Error("Enabled(Error) = true")
	}
	if err := h.Handle(ctx, slog.Record{}); err != nil {
		t.Errorf("Handle() = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.Int("page", 1)}).(nopHandler); !ok {
		t.Error("WithAttrs() left the nop handler")
	}
	if _, ok := h.WithGroup("job").(nopHandler); !ok {
		t.Error("WithGroup() left the nop handler")
	}
}

func TestLogger_Silent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil after SetLogger(nil)")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("silent logger enabled at %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	buf := captureLogger(t, slog.LevelDebug)

	Logger().Debug("page flattened", "page", 3)
	if !strings.Contains(buf.String(), "page=3") {
		t.Errorf("log output = %q, want page=3", buf.String())
	}
}

func TestConverterUsesPackageLogger(t *testing.T) {
	buf := captureLogger(t, slog.LevelInfo)

	c := newTestConverter(t)
	opts := DefaultSVGOptions()
	opts.Flatten = lowRes(opts.Flatten)
	art, err := c.ConvertTo(context.Background(), testDoc(1), opts, ToStream())
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"conversion started", "conversion finished", "job=" + art.Report.JobID, "format=svg"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output lacks %q:\n%s", want, out)
		}
	}
}

func TestWithLoggerOverridesPackageLogger(t *testing.T) {
	pkg := captureLogger(t, slog.LevelInfo)

	var own bytes.Buffer
	c := newTestConverter(t, WithLogger(slog.New(slog.NewTextHandler(&own, nil))))
	opts := DefaultSVGOptions()
	opts.Flatten = lowRes(opts.Flatten)
	if _, err := c.ConvertTo(context.Background(), testDoc(1), opts, ToStream()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(own.String(), "conversion finished") {
		t.Errorf("converter logger got no records:\n%s", own.String())
	}
	if pkg.Len() != 0 {
		t.Errorf("package logger got records:\n%s", pkg.String())
	}
}

// Swapping the package logger while conversions run must be race free.
func TestSetLogger_DuringConversion(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	c := newTestConverter(t)
	opts := DefaultHTMLOptions()
	opts.Flatten = lowRes(opts.Flatten)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ConvertTo(context.Background(), testDoc(2), opts, ToStream()); err != nil {
				t.Error(err)
			}
		}()
	}
	for range 50 {
		SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
		SetLogger(nil)
	}
	wg.Wait()
}

func BenchmarkLoggerDisabled(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("tile rendered", "page", 1, "tile", 2)
	}
}
