package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gatecode-ai/gatecode/internal/logging"
)

// Registry manages agent configurations.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates a registry pre-populated with the built-in agents.
func NewRegistry() *Registry {
	r := &Registry{
		agents: make(map[string]*Agent),
	}

	for name, a := range BuiltInAgents() {
		r.agents[name] = a
	}

	return r
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", name)
	}

	return a, nil
}

// Register adds or updates an agent.
func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name] = a
}

// List returns all registered agents, sorted by name.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}

// Names returns all agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers custom agents from YAML files in dir. Files that fail
// to parse are skipped with a warning; a missing dir is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read agent dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("skipping unreadable agent file")
			continue
		}

		var a Agent
		if err := yaml.Unmarshal(data, &a); err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("skipping invalid agent file")
			continue
		}
		if a.Name == "" {
			a.Name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}

		r.Register(&a)
		logging.Debug().Str("agent", a.Name).Msg("loaded custom agent")
	}

	return nil
}
