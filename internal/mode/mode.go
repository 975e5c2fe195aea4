// Package mode defines the operating modes of the agent and the write-path
// gate enforced under each mode.
package mode

import (
	"fmt"
	"sync"

	"github.com/gatecode-ai/gatecode/internal/event"
)

// Mode is the closed set of operating modes.
type Mode string

const (
	// ModeAuto is the unrestricted-explore default.
	ModeAuto Mode = "auto"
	// ModeWrite allows everything, including writes anywhere in the project.
	ModeWrite Mode = "write"
	// ModeReadOnly disables all write and exec tools.
	ModeReadOnly Mode = "readonly"
	// ModeDocs restricts writes to the designated docs subdirectory.
	ModeDocs Mode = "docs"
	// ModeScratch restricts writes to a single designated file.
	ModeScratch Mode = "scratch"
	// ModeDebug allows everything; used for troubleshooting runs.
	ModeDebug Mode = "debug"
)

// Parse returns the Mode for a string, or an error for unknown values.
func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeWrite, ModeReadOnly, ModeDocs, ModeScratch, ModeDebug:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode: %q", s)
}

// Unrestricted reports whether the mode places no write-path restrictions.
func (m Mode) Unrestricted() bool {
	return m == ModeAuto || m == ModeWrite || m == ModeDebug
}

// Controller owns the current mode and the gate parameters. It is created
// once in main and handed to the registry and tool handlers; only the
// orchestrator calls Set, ahead of each dispatch cycle.
type Controller struct {
	mu          sync.RWMutex
	current     Mode
	docsDir     string
	scratchFile string
}

// Option configures a Controller.
type Option func(*Controller)

// WithDocsDir overrides the docs-scoped subdirectory (default "docs").
func WithDocsDir(dir string) Option {
	return func(c *Controller) { c.docsDir = dir }
}

// WithScratchFile overrides the single-file-scoped filename (default "PLAN.md").
func WithScratchFile(name string) Option {
	return func(c *Controller) { c.scratchFile = name }
}

// NewController creates a controller starting in ModeAuto.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		current:     ModeAuto,
		docsDir:     "docs",
		scratchFile: "PLAN.md",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the current mode.
func (c *Controller) Current() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Set switches the current mode and publishes a mode.changed event.
func (c *Controller) Set(m Mode) {
	c.mu.Lock()
	changed := c.current != m
	c.current = m
	c.mu.Unlock()

	if changed {
		event.Publish(event.Event{
			Type: event.ModeChanged,
			Data: event.ModeChangedData{Mode: string(m)},
		})
	}
}

// DocsDir returns the docs-scoped subdirectory name.
func (c *Controller) DocsDir() string {
	return c.docsDir
}

// ScratchFile returns the single-file-scoped filename.
func (c *Controller) ScratchFile() string {
	return c.scratchFile
}
