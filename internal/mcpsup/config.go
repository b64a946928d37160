package mcpsup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/corehost/agentcore/internal/domain"
)

// rawServerConfig mirrors the JSON shape of one server entry in a config
// document (§6).
type rawServerConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env"`
	Description string            `json:"description"`
	Enabled     *bool             `json:"enabled"`
}

// rawConfigDoc accepts either top-level key per §6.
type rawConfigDoc struct {
	MCPServers map[string]rawServerConfig `json:"mcpServers"`
	Servers    map[string]rawServerConfig `json:"servers"`
}

// ParseConfig decodes doc into a list of entries. Entries without a
// command are skipped, not errored (§6, testable scenario #3). If both
// "mcpServers" and "servers" keys are present, "servers" entries are
// merged in after (and so override) "mcpServers" entries of the same
// name — the importer is idempotent either way since re-importing the
// same name overwrites it.
func ParseConfig(doc []byte) ([]domain.McpServerEntry, error) {
	var raw rawConfigDoc
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, err
	}

	merged := map[string]rawServerConfig{}
	for name, sc := range raw.MCPServers {
		merged[name] = sc
	}
	for name, sc := range raw.Servers {
		merged[name] = sc
	}

	var out []domain.McpServerEntry
	for name, sc := range merged {
		if sc.Command == "" {
			continue
		}
		enabled := true
		if sc.Enabled != nil {
			enabled = *sc.Enabled
		}
		out = append(out, domain.McpServerEntry{
			Name:        name,
			Command:     sc.Command,
			Args:        sc.Args,
			Env:         expandEnvMap(sc.Env),
			Description: sc.Description,
			Enabled:     enabled,
		})
	}
	return out, nil
}

// LoadMergedConfig merges a user-scope config (typically
// <configDir>/mcp.json) with a project-scope one (typically
// <cwd>/.mcp.json); project entries override user entries of the same
// name. A missing file at either path is not an error.
func LoadMergedConfig(userPath, projectPath string) ([]domain.McpServerEntry, error) {
	byName := map[string]domain.McpServerEntry{}

	for _, path := range []string{userPath, projectPath} {
		entries, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			byName[e.Name] = e
		}
	}

	out := make([]domain.McpServerEntry, 0, len(byName))
	for _, e := range byName {
		out = append(out, e)
	}
	return out, nil
}

func loadConfigFile(path string) ([]domain.McpServerEntry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// lookupEnv is overridable in tests.
var lookupEnv = os.LookupEnv

func expandEnvMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = expandEnvVars(v)
	}
	return out
}

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if v, ok := lookupEnv(name); ok {
			return v
		}
		return def
	})
}

// UserConfigPath is a small helper for locating <configDir>/mcp.json.
func UserConfigPath(configDir string) string {
	return filepath.Join(configDir, "mcp.json")
}

// ProjectConfigPath is a small helper for locating <cwd>/.mcp.json.
func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, ".mcp.json")
}
