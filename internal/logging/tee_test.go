package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsEachLevel(t *testing.T) {
	var infoBuf, warnBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	warn := slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	h := newTeeHandler(info, warn)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled for both handlers")
	}

	logger := slog.New(h)
	logger.Info("item scanned")
	if infoBuf.Len() == 0 {
		t.Fatal("expected info handler output")
	}
	if warnBuf.Len() != 0 {
		t.Fatalf("warn handler should drop info records, got %q", warnBuf.String())
	}

	logger.Warn("unknown item detected")
	if !bytes.Contains(warnBuf.Bytes(), []byte("unknown item detected")) {
		t.Fatalf("expected warn record in warn handler, got %q", warnBuf.String())
	}
}

func TestTeeLoggerCarriesAttrsAndGroups(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))
	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil)).
		With(slog.String(FieldComponent, "scanner")).
		WithGroup("frame")

	logger.Info("decision", slog.String("label", "Lays"))

	for name, buf := range map[string]*bytes.Buffer{"base": &baseBuf, "tee": &teeBuf} {
		out := buf.Bytes()
		if !bytes.Contains(out, []byte(`"component":"scanner"`)) {
			t.Fatalf("%s: expected component attr, got %q", name, out)
		}
		if !bytes.Contains(out, []byte(`"frame":{"label":"Lays"}`)) {
			t.Fatalf("%s: expected grouped label, got %q", name, out)
		}
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&buf, nil)).Info("no base")
	if buf.Len() == 0 {
		t.Fatal("expected output from tee handler")
	}
}
