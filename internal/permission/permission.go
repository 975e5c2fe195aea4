// Package permission implements the broker mediating tool side effects
// through an approve/deny protocol with session-scoped memoization.
package permission

// Kind tags the category of permission being requested. The set is open:
// tools may introduce new kinds without changing the broker.
type Kind string

const (
	KindBash        Kind = "bash"
	KindEdit        Kind = "edit"
	KindWebFetch    Kind = "webfetch"
	KindExternalDir Kind = "external_directory"
	KindDoomLoop    Kind = "doom_loop"
)

// Request is a single permission request. Immutable once created; identity
// is ID, allocated by the broker when the request is registered.
type Request struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Kind      Kind           `json:"kind"`
	Patterns  []string       `json:"patterns,omitempty"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	MessageID string         `json:"messageID,omitempty"`
	CallID    string         `json:"callID,omitempty"`
}

// Decision is the user's answer to a request. The set is extensible; the
// broker fails closed on values it does not recognize.
type Decision string

const (
	// DecisionOnce approves this instance only.
	DecisionOnce Decision = "once"
	// DecisionAlways approves and records the request's patterns for the session.
	DecisionAlways Decision = "always"
	// DecisionSession approves for the rest of the session. The approval
	// cache is session memory already, so it records exactly like always.
	DecisionSession Decision = "session"
	// DecisionReject denies the request.
	DecisionReject Decision = "reject"
)

// Approves reports whether the decision grants the request. Unknown
// decisions do not approve.
func (d Decision) Approves() bool {
	switch d {
	case DecisionOnce, DecisionAlways, DecisionSession:
		return true
	}
	return false
}

// Remembers reports whether the decision records patterns in the session
// approval cache.
func (d Decision) Remembers() bool {
	return d == DecisionAlways || d == DecisionSession
}

// RejectedError is returned when permission is denied.
type RejectedError struct {
	SessionID string
	Kind      Kind
	CallID    string
	Metadata  map[string]any
	Message   string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// IsRejectedError checks if an error is a permission rejection.
func IsRejectedError(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}
