package permission

import (
	"sync"

	"github.com/gatecode-ai/gatecode/internal/logging"
)

// ExpressState is the process-wide express mode toggle. When enabled, every
// check bypasses the broker entirely: no cache lookups, no events, immediate
// approval. Acknowledged records that the UI has shown its one-time warning;
// it is sticky across toggles for the process lifetime.
type ExpressState struct {
	mu           sync.RWMutex
	enabled      bool
	acknowledged bool
}

// NewExpressState returns a disabled, unacknowledged state.
func NewExpressState() *ExpressState {
	return &ExpressState{}
}

// Enable turns express mode on.
func (s *ExpressState) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		logging.Warn().Msg("express mode enabled, permission prompts bypassed")
	}
	s.enabled = true
}

// Disable turns express mode off. Acknowledged state is retained.
func (s *ExpressState) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Enabled reports whether express mode is on.
func (s *ExpressState) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Acknowledge records that the warning has been shown.
func (s *ExpressState) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acknowledged = true
}

// Acknowledged reports whether the warning has been shown.
func (s *ExpressState) Acknowledged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acknowledged
}
