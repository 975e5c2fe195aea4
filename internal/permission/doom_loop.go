package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical calls before triggering.
const DoomLoopThreshold = 3

// doomLoopHistoryLimit caps retained hashes per session.
const doomLoopHistoryLimit = 10

// DoomLoopDetector tracks repeated tool calls. When the same tool is invoked
// with the same input DoomLoopThreshold times in a row, the dispatcher asks
// the broker (kind doom_loop) before letting the call proceed.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string // sessionID -> recent call hashes
}

// NewDoomLoopDetector creates a new doom loop detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{
		history: make(map[string][]string),
	}
}

// Check records a call and reports whether it completes a loop of
// DoomLoopThreshold identical calls.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]

	looping := false
	if len(history) >= DoomLoopThreshold-1 {
		looping = true
		for _, h := range history[len(history)-(DoomLoopThreshold-1):] {
			if h != hash {
				looping = false
				break
			}
		}
	}

	history = append(history, hash)
	if len(history) > doomLoopHistoryLimit {
		history = history[len(history)-doomLoopHistoryLimit:]
	}
	d.history[sessionID] = history

	return looping
}

// Clear drops the history for a session.
func (d *DoomLoopDetector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

// hashCall hashes the tool name and input together.
func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{
		"tool":  toolName,
		"input": input,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
