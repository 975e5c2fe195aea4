package permission

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/logging"
)

// reply carries a decision back to a suspended Ask call.
type reply struct {
	decision Decision
	message  string
}

// pendingApproval is owned exclusively by the broker from registration until
// exactly one decision resolves it.
type pendingApproval struct {
	req Request
	ch  chan reply
}

// Action is a configured default applied to a permission kind before the
// ask protocol runs.
type Action string

const (
	// ActionAsk runs the normal ask protocol. The zero default.
	ActionAsk Action = "ask"
	// ActionAllow approves without prompting or touching the cache.
	ActionAllow Action = "allow"
	// ActionDeny rejects without prompting.
	ActionDeny Action = "deny"
)

// Broker mediates tool side effects. Ask suspends the calling tool handler
// until Respond is invoked with a decision; approvals granted with "always"
// are memoized per session so repeat requests return without prompting.
type Broker struct {
	mu      sync.RWMutex
	pending map[string]*pendingApproval
	// cache is the session approval cache: sessionID -> kind -> pattern set.
	cache    map[string]map[Kind]map[string]bool
	defaults map[Kind]Action
	express  *ExpressState
}

// NewBroker creates a broker with express mode disabled.
func NewBroker() *Broker {
	return &Broker{
		pending:  make(map[string]*pendingApproval),
		cache:    make(map[string]map[Kind]map[string]bool),
		defaults: make(map[Kind]Action),
		express:  NewExpressState(),
	}
}

// SetDefaults replaces the per-kind policy table. Kinds without an entry
// run the normal ask protocol.
func (b *Broker) SetDefaults(defaults map[Kind]Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaults = make(map[Kind]Action, len(defaults))
	for kind, action := range defaults {
		b.defaults[kind] = action
	}
}

func (b *Broker) defaultFor(kind Kind) Action {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if action, ok := b.defaults[kind]; ok {
		return action
	}
	return ActionAsk
}

// Express returns the broker's express mode state.
func (b *Broker) Express() *ExpressState {
	return b.express
}

// Ask requests approval for the given patterns. It returns nil immediately
// when express mode is on, the kind's configured default is allow, or every
// pattern is already covered by the session's approvals; a configured deny
// rejects without prompting. Otherwise it registers a pending request, publishes
// permission.asked, and blocks until Respond resolves it or ctx is done.
// There is no timeout: an unanswered request blocks its handler forever.
func (b *Broker) Ask(ctx context.Context, req Request) error {
	if b.express.Enabled() {
		return nil
	}

	switch b.defaultFor(req.Kind) {
	case ActionAllow:
		return nil
	case ActionDeny:
		logging.Warn().
			Str("sessionID", req.SessionID).
			Str("kind", string(req.Kind)).
			Msg("permission denied by policy")
		return &RejectedError{
			SessionID: req.SessionID,
			Kind:      req.Kind,
			CallID:    req.CallID,
			Metadata:  req.Metadata,
			Message:   fmt.Sprintf("Permission denied: %s is blocked by policy", req.Kind),
		}
	}

	uncovered := b.uncovered(req.SessionID, req.Kind, req.Patterns)
	if len(uncovered) == 0 {
		return nil
	}

	req.ID = ulid.Make().String()
	asked := req
	asked.Patterns = uncovered

	entry := &pendingApproval{req: req, ch: make(chan reply, 1)}
	b.mu.Lock()
	b.pending[req.ID] = entry
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	logging.Debug().
		Str("id", req.ID).
		Str("sessionID", req.SessionID).
		Str("kind", string(req.Kind)).
		Strs("patterns", uncovered).
		Msg("permission requested")

	event.Publish(event.Event{
		Type: event.PermissionAsked,
		Data: event.PermissionAskedData{
			ID:        asked.ID,
			SessionID: asked.SessionID,
			Kind:      string(asked.Kind),
			Patterns:  asked.Patterns,
			Title:     asked.Title,
			Metadata:  asked.Metadata,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-entry.ch:
		if !r.decision.Approves() {
			msg := "Permission rejected by user"
			if r.message != "" {
				msg = fmt.Sprintf("Permission denied: %s", r.message)
			}
			logging.Warn().
				Str("id", req.ID).
				Str("kind", string(req.Kind)).
				Msg("permission rejected")
			return &RejectedError{
				SessionID: req.SessionID,
				Kind:      req.Kind,
				CallID:    req.CallID,
				Metadata:  req.Metadata,
				Message:   msg,
			}
		}
		if r.decision.Remembers() {
			// Record every pattern of the original request, covered ones
			// included, so later requests hit the fast path.
			b.remember(req.SessionID, req.Kind, req.Patterns)
		}
		return nil
	}
}

// Respond resolves a pending request. Resolution is at-most-once: a second
// respond for the same id is a no-op other than a warning. A replied event
// is published for every effective resolution regardless of the decision.
func (b *Broker) Respond(id string, decision Decision, message string) {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		logging.Warn().Str("id", id).Msg("respond for unknown or already-resolved permission")
		return
	}

	entry.ch <- reply{decision: decision, message: message}

	event.Publish(event.Event{
		Type: event.PermissionReplied,
		Data: event.PermissionRepliedData{
			PermissionID: id,
			SessionID:    entry.req.SessionID,
			Decision:     string(decision),
			Message:      message,
		},
	})
}

// ListPending returns a snapshot of all outstanding requests, ordered by id.
// The UI uses it to reconcile state after a reconnect.
func (b *Broker) ListPending() []Request {
	b.mu.RLock()
	defer b.mu.RUnlock()

	reqs := make([]Request, 0, len(b.pending))
	for _, entry := range b.pending {
		reqs = append(reqs, entry.req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs
}

// ClearSession drops the whole approval cache entry for a session. Called
// when a session terminates.
func (b *Broker) ClearSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cache, sessionID)
}

// Covered reports whether a single pattern is already approved for the
// session and kind.
func (b *Broker) Covered(sessionID string, kind Kind, pattern string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.covered(sessionID, kind, pattern)
}

// ApprovePattern records a pattern approval directly, bypassing the ask
// protocol. Used when configuration pre-approves patterns for a session.
func (b *Broker) ApprovePattern(sessionID string, kind Kind, pattern string) {
	b.remember(sessionID, kind, []string{pattern})
}

// uncovered partitions patterns and returns those not yet approved.
func (b *Broker) uncovered(sessionID string, kind Kind, patterns []string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for _, p := range patterns {
		if !b.covered(sessionID, kind, p) {
			out = append(out, p)
		}
	}
	return out
}

// covered must be called with at least the read lock held.
func (b *Broker) covered(sessionID string, kind Kind, pattern string) bool {
	kinds, ok := b.cache[sessionID]
	if !ok {
		return false
	}
	set, ok := kinds[kind]
	if !ok {
		return false
	}
	if set[pattern] || set["*"] {
		return true
	}
	for approved := range set {
		if Matches(approved, pattern) {
			return true
		}
	}
	return false
}

func (b *Broker) remember(sessionID string, kind Kind, patterns []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cache[sessionID] == nil {
		b.cache[sessionID] = make(map[Kind]map[string]bool)
	}
	if b.cache[sessionID][kind] == nil {
		b.cache[sessionID][kind] = make(map[string]bool)
	}
	for _, p := range patterns {
		b.cache[sessionID][kind][p] = true
	}
}
