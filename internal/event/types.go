package event

// PermissionAskedData is the data for permission.asked events. It carries the
// full request so the UI can render the prompt without a follow-up fetch.
type PermissionAskedData struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Kind      string         `json:"kind"`
	Patterns  []string       `json:"patterns"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PermissionRepliedData is the data for permission.replied events.
type PermissionRepliedData struct {
	PermissionID string `json:"permissionID"`
	SessionID    string `json:"sessionID"`
	Decision     string `json:"decision"`
	Message      string `json:"message,omitempty"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// ModeChangedData is the data for mode.changed events.
type ModeChangedData struct {
	Mode string `json:"mode"`
}

// ConfigUpdatedData is the data for config.updated events.
type ConfigUpdatedData struct {
	Path string `json:"path"`
}

// BranchChangedData is the data for vcs.branch events.
type BranchChangedData struct {
	Branch string `json:"branch"`
}

// ToolRegisteredData is the data for tool.registered events, published when a
// tool is added to the registry after startup (e.g. from an MCP server).
type ToolRegisteredData struct {
	Name       string `json:"name"`
	Visibility string `json:"visibility"`
	Source     string `json:"source,omitempty"`
}
