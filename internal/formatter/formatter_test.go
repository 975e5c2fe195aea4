package formatter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatecode-ai/gatecode/internal/config"
	"github.com/gatecode-ai/gatecode/internal/event"
)

func TestDefaultsCoverCommonExtensions(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"main.go", "gofmt", true},
		{"app.ts", "prettier", true},
		{"main.py", "black", true},
		{"lib.rs", "rustfmt", true},
		{"notes.xyz", "", false},
	}
	for _, tt := range tests {
		f, ok := m.ForFile(tt.file)
		if ok != tt.ok {
			t.Errorf("ForFile(%s): ok=%v, want %v", tt.file, ok, tt.ok)
			continue
		}
		if ok && f.Name != tt.want {
			t.Errorf("ForFile(%s) = %s, want %s", tt.file, f.Name, tt.want)
		}
	}
}

func TestConfigOverridesDefault(t *testing.T) {
	m := NewManager(t.TempDir(), map[string]config.FormatterConfig{
		"gofmt": {
			Command:    []string{"custom-gofmt", "$file"},
			Extensions: []string{".go"},
		},
	})

	f, ok := m.ForFile("main.go")
	if !ok {
		t.Fatal("expected a formatter for .go")
	}
	if f.Command[0] != "custom-gofmt" {
		t.Errorf("expected config command to win, got %v", f.Command)
	}
}

func TestDisabledFormatterIsSkipped(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, map[string]config.FormatterConfig{
		"gofmt": {
			Command:    []string{"gofmt", "-w", "$file"},
			Extensions: []string{"go"},
			Disabled:   true,
		},
	})

	if _, ok := m.ForFile("main.go"); ok {
		t.Error("disabled formatter should not claim files")
	}

	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := m.Format(context.Background(), path)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if result.Formatter != "" || result.Changed {
		t.Errorf("expected no-op result, got %+v", result)
	}
}

func TestFormatRunsCommand(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, map[string]config.FormatterConfig{
		"rewrite": {
			Command:    []string{"sh", "-c", "printf formatted > $file"},
			Extensions: []string{"txt"},
		},
	})

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := m.Format(context.Background(), path)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if result.Formatter != "rewrite" {
		t.Errorf("formatter = %q, want rewrite", result.Formatter)
	}
	if !result.Changed {
		t.Error("expected the file to change")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "formatted" {
		t.Errorf("file content = %q", data)
	}
}

func TestFormatUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, map[string]config.FormatterConfig{
		"noop": {
			Command:    []string{"true"},
			Extensions: []string{"txt"},
		},
	})

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := m.Format(context.Background(), path)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if result.Changed {
		t.Error("expected no change")
	}
}

func TestFormatFailureSurfacesStderr(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, map[string]config.FormatterConfig{
		"broken": {
			Command:    []string{"sh", "-c", "echo boom >&2; exit 1"},
			Extensions: []string{"txt"},
		},
	})

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := m.Format(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); got != "formatter broken: boom" {
		t.Errorf("error = %q", got)
	}
}

func TestFormatMissingFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)

	if _, err := m.Format(context.Background(), filepath.Join(dir, "missing.go")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestFormatDisabledGlobally(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)
	m.SetEnabled(false)

	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package  main"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := m.Format(context.Background(), path)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if result.Formatter != "" {
		t.Errorf("expected no formatter while disabled, got %q", result.Formatter)
	}
}

func TestReloadReplacesSet(t *testing.T) {
	m := NewManager(t.TempDir(), map[string]config.FormatterConfig{
		"custom": {Command: []string{"custom", "$file"}, Extensions: []string{"cst"}},
	})

	if _, ok := m.ForFile("a.cst"); !ok {
		t.Fatal("expected custom formatter before reload")
	}

	m.Reload(nil)

	if _, ok := m.ForFile("a.cst"); ok {
		t.Error("expected custom formatter gone after reload")
	}
	if _, ok := m.ForFile("main.go"); !ok {
		t.Error("expected defaults back after reload")
	}
}

func TestWatchFormatsOnFileEdited(t *testing.T) {
	event.Reset()
	t.Cleanup(event.Reset)

	dir := t.TempDir()
	m := NewManager(dir, map[string]config.FormatterConfig{
		"rewrite": {
			Command:    []string{"sh", "-c", "printf formatted > $file"},
			Extensions: []string{"txt"},
		},
	})
	m.Watch()
	defer m.Close()

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path},
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && string(data) == "formatted" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("file was not formatted after file.edited event")
}
