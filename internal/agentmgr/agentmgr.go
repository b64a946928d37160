// Package agentmgr is the Agent Manager (§4.8): loads the set of available
// agent definitions (a built-in default plus any JSON files the user
// drops in), tracks which one a session is currently switched to, and
// resolves the effective model for a turn. Grounded on the teacher's
// internal/agent.Service, which hard-codes a single assistant persona and
// a SpawnSubAgent escape hatch (internal/agent/session.go); generalized
// here into a named registry of personas so InvokeAgent has real targets
// to address.
package agentmgr

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/settings"
)

// Manager holds the loaded agent definitions and the current selection.
type Manager struct {
	mu       sync.RWMutex
	agents   map[string]domain.AgentDefinition
	builtins []domain.AgentDefinition
	current  string
	settings *settings.Store
	fallback string // D, the default model when neither a pin nor the agent carry one
}

// New builds a Manager seeded with builtins, with current defaulting to the
// first builtin by name. settingsStore provides the agent-pin lookups used
// by EffectiveModel; fallbackModel is D in the §4.8 effective-model rule.
func New(settingsStore *settings.Store, fallbackModel string, builtins []domain.AgentDefinition) (*Manager, error) {
	m := &Manager{
		agents:   map[string]domain.AgentDefinition{},
		builtins: builtins,
		settings: settingsStore,
		fallback: fallbackModel,
	}
	for _, a := range builtins {
		if err := m.add(a); err != nil {
			return nil, err
		}
	}
	names := m.names()
	if len(names) > 0 {
		m.current = names[0]
	}
	return m, nil
}

func (m *Manager) add(a domain.AgentDefinition) error {
	if _, exists := m.agents[a.Name]; exists {
		return herr.New(herr.Config, "agentmgr.add: duplicate agent name "+a.Name)
	}
	if a.Visibility == 0 && a.VisibilityRaw != "" {
		a.Visibility = domain.ParseVisibility(a.VisibilityRaw)
	}
	m.agents[a.Name] = a
	return nil
}

// LoadDir reads every *.json file in dir as an AgentDefinition and adds it,
// failing on a name collision with an already-loaded agent (built-in or
// otherwise) — agent names must be unique (§3).
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return herr.Wrap(herr.Config, "agentmgr.LoadDir", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return herr.Wrap(herr.Config, "agentmgr.LoadDir: "+path, err)
		}
		var def domain.AgentDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return herr.Wrap(herr.Config, "agentmgr.LoadDir: parse "+path, err)
		}
		if def.Name == "" {
			return herr.New(herr.Config, "agentmgr.LoadDir: "+path+" missing name")
		}
		if err := m.add(def); err != nil {
			return err
		}
	}
	return nil
}

// ReloadDir re-reads dir's agent-definition files from scratch: builtins
// are kept, every previously dir-loaded agent is dropped, then dir is
// loaded fresh. Used by the directory watcher so editing or removing a
// JSON file under the agents dir takes effect without a restart. The
// current selection is preserved if it still exists, else reset to the
// first loaded agent by name.
func (m *Manager) ReloadDir(dir string) error {
	m.mu.Lock()
	agents := map[string]domain.AgentDefinition{}
	for _, a := range m.builtins {
		agents[a.Name] = a
	}
	prevCurrent := m.current
	m.agents = agents
	m.mu.Unlock()

	if err := m.LoadDir(dir); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[prevCurrent]; ok {
		m.current = prevCurrent
	} else {
		names := m.names()
		if len(names) > 0 {
			m.current = names[0]
		}
	}
	return nil
}

func (m *Manager) names() []string {
	out := make([]string, 0, len(m.agents))
	for n := range m.agents {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// List returns every loaded agent, sorted by name.
func (m *Manager) List() []domain.AgentDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AgentDefinition, 0, len(m.agents))
	for _, n := range m.names() {
		out = append(out, m.agents[n])
	}
	return out
}

// ListFiltered returns agents whose Visibility is at most userMode —
// normal < expert < developer (§4.8).
func (m *Manager) ListFiltered(userMode domain.Visibility) []domain.AgentDefinition {
	all := m.List()
	out := all[:0:0]
	for _, a := range all {
		if a.Visibility <= userMode {
			out = append(out, a)
		}
	}
	return out
}

// Exists reports whether name is a loaded agent.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.agents[name]
	return ok
}

// Switch changes the current agent, failing if name is not loaded.
func (m *Manager) Switch(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[name]; !ok {
		return herr.New(herr.UserInput, "agentmgr.Switch: unknown agent "+name)
	}
	m.current = name
	return nil
}

// CurrentName returns the presently selected agent's name.
func (m *Manager) CurrentName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Get returns the named agent definition.
func (m *Manager) Get(name string) (domain.AgentDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

// EffectiveModel implements the §4.8 rule: the model pinned for this agent
// in settings, else the agent's own default_model, else the host-wide fallback D.
func (m *Manager) EffectiveModel(name string) (string, error) {
	a, ok := m.Get(name)
	if !ok {
		return "", herr.New(herr.UserInput, "agentmgr.EffectiveModel: unknown agent "+name)
	}
	if m.settings != nil {
		pinned, ok, err := m.settings.GetAgentPinnedModel(name)
		if err != nil {
			return "", herr.Wrap(herr.Storage, "agentmgr.EffectiveModel", err)
		}
		if ok {
			return pinned, nil
		}
	}
	if a.DefaultModel != "" {
		return a.DefaultModel, nil
	}
	return m.fallback, nil
}

// Resolve implements runtime.AgentResolver: look up name and its effective
// model in one call, the shape InvokeAgent needs to build a nested turn.
func (m *Manager) Resolve(name string) (domain.AgentDefinition, string, bool) {
	a, ok := m.Get(name)
	if !ok {
		return domain.AgentDefinition{}, "", false
	}
	model, err := m.EffectiveModel(name)
	if err != nil {
		return domain.AgentDefinition{}, "", false
	}
	return a, model, true
}

// DefaultBuiltins returns the always-available agent set shipped with the
// host, analogous to the teacher's single hard-coded assistant persona but
// split into a general assistant, a narrowly-scoped coding helper, and a
// developer-visibility debugger, to give InvokeAgent and the visibility
// filter something real to exercise.
func DefaultBuiltins() []domain.AgentDefinition {
	return []domain.AgentDefinition{
		{
			Name:         "assistant",
			DisplayName:  "Assistant",
			SystemPrompt: "You are a helpful general-purpose assistant.",
			Visibility:   domain.VisibilityNormal,
		},
		{
			Name:          "coder",
			DisplayName:   "Coder",
			SystemPrompt:  "You write and review code. Prefer small, correct diffs.",
			AllowedTools:  []string{"read_file", "write_file", "run_shell"},
			AllowedAgents: []string{},
			Visibility:    domain.VisibilityExpert,
		},
		{
			Name:         "debugger",
			DisplayName:  "Debugger",
			SystemPrompt: "You investigate and fix bugs. You may run shell commands and roll back changes via checkpoints if an attempted fix makes things worse.",
			AllowedTools: []string{"read_file", "write_file", "run_shell", "checkpoint_restore"},
			Visibility:   domain.VisibilityDeveloper,
		},
	}
}
