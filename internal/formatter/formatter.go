// Package formatter runs configured code formatters over files after the
// write and edit tools change them.
package formatter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatecode-ai/gatecode/internal/config"
	"github.com/gatecode-ai/gatecode/internal/event"
)

// formatTimeout bounds a single formatter run triggered by a file event.
const formatTimeout = 30 * time.Second

// Formatter is one resolved formatter definition.
type Formatter struct {
	Name       string
	Extensions []string
	Command    []string
	Env        map[string]string
	Disabled   bool
}

// Result reports what a Format call did to one file.
type Result struct {
	File      string `json:"file"`
	Formatter string `json:"formatter,omitempty"`
	Changed   bool   `json:"changed"`
}

// Manager resolves formatters by file extension and runs them. Config
// entries override the built-in defaults by name.
type Manager struct {
	mu      sync.RWMutex
	workDir string
	byName  map[string]Formatter
	byExt   map[string]Formatter
	enabled bool
	unsub   func()
}

// NewManager builds a manager for workDir from the formatter config section.
func NewManager(workDir string, cfgs map[string]config.FormatterConfig) *Manager {
	m := &Manager{
		workDir: workDir,
		enabled: true,
	}
	m.load(cfgs)
	return m
}

func defaults() []Formatter {
	return []Formatter{
		{Name: "gofmt", Extensions: []string{"go"}, Command: []string{"gofmt", "-w", "$file"}},
		{Name: "prettier", Extensions: []string{"js", "jsx", "ts", "tsx", "json", "css", "scss", "md", "yaml", "yml"}, Command: []string{"npx", "prettier", "--write", "$file"}},
		{Name: "black", Extensions: []string{"py"}, Command: []string{"black", "$file"}},
		{Name: "rustfmt", Extensions: []string{"rs"}, Command: []string{"rustfmt", "$file"}},
	}
}

func (m *Manager) load(cfgs map[string]config.FormatterConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byName = make(map[string]Formatter)
	m.byExt = make(map[string]Formatter)

	for name, cfg := range cfgs {
		m.add(Formatter{
			Name:       name,
			Extensions: cfg.Extensions,
			Command:    cfg.Command,
			Env:        cfg.Environment,
			Disabled:   cfg.Disabled,
		})
	}
	for _, f := range defaults() {
		if _, taken := m.byName[f.Name]; !taken {
			m.add(f)
		}
	}
}

// add registers f under lock. First claim on an extension wins, so config
// entries registered before the defaults shadow them.
func (m *Manager) add(f Formatter) {
	m.byName[f.Name] = f
	for _, ext := range f.Extensions {
		ext = strings.TrimPrefix(ext, ".")
		if _, taken := m.byExt[ext]; !taken {
			m.byExt[ext] = f
		}
	}
}

// Reload replaces the formatter set from a fresh config section.
func (m *Manager) Reload(cfgs map[string]config.FormatterConfig) {
	m.load(cfgs)
}

// ForFile returns the formatter responsible for path, if any.
func (m *Manager) ForFile(path string) (Formatter, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.byExt[ext]
	if !ok || f.Disabled {
		return Formatter{}, false
	}
	return f, true
}

// SetEnabled toggles formatting globally.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Enabled reports whether formatting is on.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Format runs the matching formatter over path. When formatting is off or no
// formatter claims the extension, it returns an empty Result and no error.
func (m *Manager) Format(ctx context.Context, path string) (Result, error) {
	result := Result{File: path}

	if !m.Enabled() {
		return result, nil
	}
	f, ok := m.ForFile(path)
	if !ok {
		return result, nil
	}
	result.Formatter = f.Name

	before, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", path, err)
	}

	if err := m.run(ctx, f, path); err != nil {
		return result, err
	}

	after, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", path, err)
	}
	result.Changed = !bytes.Equal(before, after)
	return result, nil
}

func (m *Manager) run(ctx context.Context, f Formatter, path string) error {
	if len(f.Command) == 0 {
		return fmt.Errorf("formatter %s has no command", f.Name)
	}

	args := make([]string, len(f.Command))
	for i, arg := range f.Command {
		args[i] = strings.ReplaceAll(arg, "$file", path)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = m.workDir
	cmd.Env = os.Environ()
	for k, v := range f.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("formatter %s: %s", f.Name, msg)
	}
	return nil
}

// Watch formats files as the write and edit tools report them. Stop with
// Close.
func (m *Manager) Watch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsub != nil {
		return
	}
	m.unsub = event.Subscribe(event.FileEdited, func(e event.Event) {
		data, ok := e.Data.(event.FileEditedData)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), formatTimeout)
		defer cancel()

		result, err := m.Format(ctx, data.File)
		if err != nil {
			log.Warn().Err(err).Str("file", data.File).Msg("post-edit format failed")
			return
		}
		if result.Changed {
			log.Debug().Str("file", data.File).Str("formatter", result.Formatter).Msg("formatted")
		}
	})
}

// Close stops watching file events.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}
