package hostconfig

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// Preferences holds process-wide tunables that are fixed at startup rather
// than changed at runtime through the Settings Store (those are typed,
// schema-free strings; these are structured and validated once on load).
type Preferences struct {
	LogLevel             string `json:"log_level"`
	DefaultKeepRecent    int    `json:"default_keep_recent"`
	CompactThreshold     float64 `json:"compact_threshold"`
	MaxParallelTools     int    `json:"max_parallel_tools"`
	MaxNestingDepth      int    `json:"max_nesting_depth"`
	MCPInitTimeoutMillis int    `json:"mcp_init_timeout_ms"`
	MaxSessions          int    `json:"max_sessions"`
}

// Default mirrors the values the spec's design notes call out as sensible
// defaults: sequential tools unless configured otherwise, depth 4, an MCP
// init timeout distinct from the fixed 5s list-tools timeout.
func Default() Preferences {
	return Preferences{
		LogLevel:             "info",
		DefaultKeepRecent:    20,
		CompactThreshold:     0.8,
		MaxParallelTools:     1,
		MaxNestingDepth:      4,
		MCPInitTimeoutMillis: 30_000,
		MaxSessions:          0,
	}
}

// Load reads <configDir>/config.json, filling in defaults for anything
// absent or malformed. A missing file is not an error — it simply yields
// Default(). A BOM is stripped the way the teacher's preferences loader
// does, since editors on Windows commonly reintroduce one.
func Load(configDir string) (Preferences, error) {
	p := Default()
	path := filepath.Join(configDir, "config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	data = stripBOM(data)
	if err := json.Unmarshal(data, &p); err != nil {
		return Default(), nil // corrupt config: fall back, don't fail startup
	}
	return p, nil
}

// Save writes p to <configDir>/config.json with owner-only permissions.
func Save(configDir string, p Preferences) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, "config.json"), data, 0o600)
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}
