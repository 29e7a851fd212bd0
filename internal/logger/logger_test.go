package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritersDeriveFromDir(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	outW, errW, err := c.Writers("lightweight_server")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatal("writers not created from Dir")
	}
	if _, err := outW.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write stdout capture: %v", err)
	}
	_ = outW.Close()
	_ = errW.Close()
}

func TestWritersExplicitPathsOverrideDir(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir, StdoutPath: filepath.Join(dir, "custom.out")}
	outW, errW, err := c.Writers("x")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatal("expected both writers")
	}
	_ = outW.Close()
	_ = errW.Close()
}

func TestWritersEmptyConfig(t *testing.T) {
	var c Config
	outW, errW, err := c.Writers("x")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatal("writers created without any destination")
	}
}

func TestColorHandlerTagsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	log := slog.New(h)
	log.Warn("backend slow")
	out := buf.String()
	if !strings.Contains(out, colorYellow) || !strings.Contains(out, "backend slow") {
		t.Fatalf("colored level tag missing: %q", out)
	}
}
