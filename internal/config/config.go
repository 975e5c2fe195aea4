// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/jsonc"
)

// Config is the resolved gatecode configuration.
type Config struct {
	// Mode is the initial operating mode (auto|write|readonly|docs|scratch|debug).
	Mode string `json:"mode,omitempty"`
	// DocsDir is the subdirectory writable in docs mode.
	DocsDir string `json:"docsDir,omitempty"`
	// ScratchFile is the single file writable in scratch mode.
	ScratchFile string `json:"scratchFile,omitempty"`
	// Express enables the permission bypass at startup. Off by default.
	Express bool `json:"express,omitempty"`
	// Permission sets per-kind defaults (allow|deny|ask); kinds without an
	// entry prompt normally.
	Permission map[string]string `json:"permission,omitempty"`
	// AgentDir holds custom subagent YAML definitions.
	AgentDir string `json:"agentDir,omitempty"`
	// MCP configures external MCP tool servers by name.
	MCP map[string]MCPServer `json:"mcp,omitempty"`
	// Formatter configures post-edit code formatters by name. Entries
	// override the built-in defaults of the same name.
	Formatter map[string]FormatterConfig `json:"formatter,omitempty"`
	// Log configures logging.
	Log LogConfig `json:"log,omitempty"`
}

// MCPServer describes one external MCP server connection.
type MCPServer struct {
	// Command plus Args launch a stdio server; URL connects over HTTP.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Enabled *bool             `json:"enabled,omitempty"`
}

// IsEnabled reports whether the server should be connected.
func (s MCPServer) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// FormatterConfig describes one post-edit formatter.
type FormatterConfig struct {
	// Extensions selects files by extension, with or without the leading dot.
	Extensions []string `json:"extensions,omitempty"`
	// Command is run with $file replaced by the edited path.
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Mode:        "auto",
		DocsDir:     "docs",
		ScratchFile: "PLAN.md",
		Log:         LogConfig{Level: "INFO"},
	}
}

// Load loads configuration from multiple sources (later wins):
//  1. built-in defaults
//  2. global config (~/.config/gatecode/gatecode.json[c])
//  3. project config (<directory>/gatecode.json[c], <directory>/.gatecode/gatecode.json[c])
//  4. GATECODE_CONFIG file
//  5. environment variables
func Load(directory string) (*Config, error) {
	cfg := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		if loadFile(path, cfg) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "gatecode.json"))
	loadOnce(filepath.Join(globalDir, "gatecode.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "gatecode.json"))
		loadOnce(filepath.Join(directory, "gatecode.jsonc"))
		loadOnce(filepath.Join(directory, ".gatecode", "gatecode.json"))
		loadOnce(filepath.Join(directory, ".gatecode", "gatecode.jsonc"))
	}

	if path := os.Getenv("GATECODE_CONFIG"); path != "" {
		loadOnce(path)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFile loads a single config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges one JSONC file into cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	merge(cfg, &fileCfg)
	return nil
}

// interpolate replaces {env:VAR} placeholders with environment values.
func interpolate(data []byte) []byte {
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// merge overlays src onto dst, field by field.
func merge(dst, src *Config) {
	if src.Mode != "" {
		dst.Mode = src.Mode
	}
	if src.DocsDir != "" {
		dst.DocsDir = src.DocsDir
	}
	if src.ScratchFile != "" {
		dst.ScratchFile = src.ScratchFile
	}
	if src.Express {
		dst.Express = true
	}
	if len(src.Permission) > 0 {
		if dst.Permission == nil {
			dst.Permission = make(map[string]string)
		}
		for kind, action := range src.Permission {
			dst.Permission[kind] = action
		}
	}
	if src.AgentDir != "" {
		dst.AgentDir = src.AgentDir
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Pretty {
		dst.Log.Pretty = true
	}
	if len(src.MCP) > 0 {
		if dst.MCP == nil {
			dst.MCP = make(map[string]MCPServer)
		}
		for name, server := range src.MCP {
			dst.MCP[name] = server
		}
	}
	if len(src.Formatter) > 0 {
		if dst.Formatter == nil {
			dst.Formatter = make(map[string]FormatterConfig)
		}
		for name, f := range src.Formatter {
			dst.Formatter[name] = f
		}
	}
}

// applyEnvOverrides applies GATECODE_* environment variables, the highest
// priority source.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATECODE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("GATECODE_DOCS_DIR"); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv("GATECODE_SCRATCH_FILE"); v != "" {
		cfg.ScratchFile = v
	}
	if v := os.Getenv("GATECODE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if os.Getenv("GATECODE_EXPRESS") == "1" {
		cfg.Express = true
	}
}
