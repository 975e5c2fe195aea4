package config

import (
	"os"
	"path/filepath"
)

// Paths contains the standard directories for gatecode data.
type Paths struct {
	Data   string // ~/.local/share/gatecode
	Config string // ~/.config/gatecode
	State  string // ~/.local/state/gatecode
}

// GetPaths returns the standard paths, honoring XDG overrides.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultHome(".local", "share")), "gatecode"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultHome(".config")), "gatecode"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultHome(".local", "state")), "gatecode"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the directory backing the JSON storage.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// AgentPath returns the directory holding custom agent definitions.
func (p *Paths) AgentPath() string {
	return filepath.Join(p.Config, "agents")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultHome(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append([]string{home}, parts...)...)
}
