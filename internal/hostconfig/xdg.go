// Package hostconfig resolves the process-scoped directories and tunables
// every other component reads at startup: XDG base directories, the legacy
// single-dot migration path, and a small typed Preferences struct for knobs
// that don't belong in the Settings Store's string K/V (compaction defaults,
// parallelism bounds, log level).
package hostconfig

import (
	"os"
	"path/filepath"
)

const appName = "agentcore"

// Dirs holds the four XDG base directories resolved for this app, plus the
// legacy single-directory path recognized for migration.
type Dirs struct {
	Config string
	Data   string
	Cache  string
	State  string
	Legacy string
}

// homeOverride lets tests pin a home directory without touching the real one.
var homeOverride string

// ResolveDirs computes the four XDG directories honoring
// XDG_CONFIG_HOME/XDG_DATA_HOME/XDG_CACHE_HOME/XDG_STATE_HOME, falling back
// to ~/.config, ~/.local/share, ~/.cache, ~/.local/state respectively, plus
// the legacy ~/.agentcore path. It does not create any directory; callers
// call EnsureDirs for that.
func ResolveDirs() (Dirs, error) {
	home, err := homeDir()
	if err != nil {
		return Dirs{}, err
	}
	return Dirs{
		Config: xdgOr(home, "XDG_CONFIG_HOME", ".config"),
		Data:   xdgOr(home, "XDG_DATA_HOME", filepath.Join(".local", "share")),
		Cache:  xdgOr(home, "XDG_CACHE_HOME", ".cache"),
		State:  xdgOr(home, "XDG_STATE_HOME", filepath.Join(".local", "state")),
		Legacy: filepath.Join(home, "."+appName),
	}, nil
}

func xdgOr(home, envVar, fallbackRel string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(home, fallbackRel, appName)
}

func homeDir() (string, error) {
	if homeOverride != "" {
		return homeOverride, nil
	}
	return os.UserHomeDir()
}

// EnsureDirs creates the config/data/cache/state directories (mode 0700) and
// returns them. Legacy is never created — it is only ever read from.
func EnsureDirs() (Dirs, error) {
	d, err := ResolveDirs()
	if err != nil {
		return Dirs{}, err
	}
	for _, dir := range []string{d.Config, d.Data, d.Cache, d.State} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Dirs{}, err
		}
	}
	return d, nil
}

// MigrateLegacy copies files directly under the legacy directory into dest
// if dest does not already contain them and the legacy directory exists.
// It never deletes the legacy directory; it is left in place as a backup.
func MigrateLegacy(legacy, dest string) error {
	entries, err := os.ReadDir(legacy)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		dst := filepath.Join(dest, e.Name())
		if _, err := os.Stat(dst); err == nil {
			continue // already migrated or present
		}
		data, err := os.ReadFile(filepath.Join(legacy, e.Name()))
		if err != nil {
			continue
		}
		_ = os.WriteFile(dst, data, 0o600)
	}
	return nil
}
