// Package settings is the Settings Store (§4.1): durable typed key-value
// persistence over an embedded SQL database, with namespace helpers for
// agent-model pins and agent-MCP attachments. Grounded on the teacher's
// internal/store Store — same sqlite-over-database/sql plumbing, generalized
// from a session/message schema to a single generic key/value table.
package settings

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"

	_ "modernc.org/sqlite"
)

const op = "settings"

// Store is the Settings Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".Open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, herr.Wrap(herr.Storage, op+".Open", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already-open *sql.DB (used by tests against
// ":memory:").
func NewFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".migrate", err)
	}
	return nil
}

// Get returns the value for key, or "", false if absent. I/O failures are
// the only error case; a missing key is not an error.
func (s *Store) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, herr.Wrap(herr.Storage, op+".Get", err)
	}
	return v, true, nil
}

// Set upserts key=value, stamping updated_at to now. Last writer wins.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return herr.Wrap(herr.Storage, op+".Set", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds (idempotent).
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".Delete", err)
	}
	return nil
}

// List returns every row sorted by key ascending.
func (s *Store) List() ([]domain.SettingRow, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".List", err)
	}
	defer rows.Close()

	var out []domain.SettingRow
	for rows.Next() {
		var r domain.SettingRow
		var ts string
		if err := rows.Scan(&r.Key, &r.Value, &ts); err != nil {
			return nil, herr.Wrap(herr.Storage, op+".List", err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GetBool maps {true,1,yes,on} case-insensitively to true; everything
// else, including a missing key, is false.
func (s *Store) GetBool(key string) bool {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// GetOr returns the stored value for key, or def if absent or on error.
func (s *Store) GetOr(key, def string) string {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def
	}
	return v
}

const (
	pinPrefix        = "agent_pin."
	mcpAttachPrefix  = "agent_mcp."
)

// GetAgentPinnedModel returns the model pinned to agent, if any.
func (s *Store) GetAgentPinnedModel(agent string) (string, bool, error) {
	return s.Get(pinPrefix + agent)
}

// SetAgentPinnedModel pins agent to model.
func (s *Store) SetAgentPinnedModel(agent, model string) error {
	return s.Set(pinPrefix+agent, model)
}

// ClearAgentPinnedModel removes agent's pin.
func (s *Store) ClearAgentPinnedModel(agent string) error {
	return s.Delete(pinPrefix + agent)
}

// GetAllAgentPins returns every pinned agent -> model mapping.
func (s *Store) GetAllAgentPins() (map[string]string, error) {
	return s.prefixMap(pinPrefix)
}

// GetAgentMCPs returns the comma-joined list stored for agent, split,
// trimmed, and with empty tokens dropped.
func (s *Store) GetAgentMCPs(agent string) ([]string, error) {
	v, ok, err := s.Get(mcpAttachPrefix + agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return splitTrimmed(v), nil
}

// SetAgentMCPs stores servers as a comma-joined list for agent. An empty
// slice clears the entry for GetAllAgentMCPs purposes (stores "").
func (s *Store) SetAgentMCPs(agent string, servers []string) error {
	return s.Set(mcpAttachPrefix+agent, strings.Join(servers, ","))
}

// GetAllAgentMCPs returns every agent -> server-list mapping.
func (s *Store) GetAllAgentMCPs() (map[string][]string, error) {
	raw, err := s.prefixMap(mcpAttachPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		out[k] = splitTrimmed(v)
	}
	return out, nil
}

func (s *Store) prefixMap(prefix string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE key LIKE ? ORDER BY key ASC`, prefix+"%")
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".prefixMap", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, herr.Wrap(herr.Storage, op+".prefixMap", err)
		}
		// Agent names containing dots remain valid keys: we only ever strip
		// the single fixed prefix, never parse further components.
		name := strings.TrimPrefix(k, prefix)
		out[name] = v
	}
	return out, nil
}

func splitTrimmed(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
