// Package sessionstore is the Session Store (§4.2): named, durable
// snapshots of (messages, agent, model, metadata). Grounded on the
// teacher's internal/store session CRUD, adapted from UUID-keyed sessions
// to the spec's name-keyed model with max-sessions pruning and
// collision-safe name generation.
package sessionstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/tokens"

	_ "modernc.org/sqlite"
)

const op = "sessionstore"

// Store is the Session Store.
type Store struct {
	db          *sql.DB
	maxSessions int // 0 = unbounded
}

// Open opens (or creates) the sqlite database at path. maxSessions of 0
// disables pruning.
func Open(path string, maxSessions int) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".Open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, herr.Wrap(herr.Storage, op+".Open", err)
	}
	s := &Store{db: db, maxSessions: maxSessions}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrateJobs(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already-open *sql.DB, for tests against ":memory:".
func NewFromDB(db *sql.DB, maxSessions int) (*Store, error) {
	s := &Store{db: db, maxSessions: maxSessions}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	if err := s.migrateJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			name TEXT PRIMARY KEY,
			agent TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			messages_json TEXT NOT NULL DEFAULT '[]',
			message_count INTEGER NOT NULL DEFAULT 0,
			token_estimate INTEGER NOT NULL DEFAULT 0,
			parent_session TEXT NOT NULL DEFAULT '',
			branch_point INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".migrate", err)
	}

	// Add missing columns to existing DBs. ALTER TABLE errors expected
	// (column already exists) and are ignored.
	for _, q := range []string{
		`ALTER TABLE sessions ADD COLUMN title TEXT NOT NULL DEFAULT ''`,
	} {
		_, _ = s.db.Exec(q)
	}
	return nil
}

// invalidName reports whether name contains a path separator or traversal
// segment — Session names become filenames/keys and must never escape the
// store.
func invalidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return true
	}
	return strings.ContainsAny(name, "/\\")
}

// Save creates or overwrites the session named name. token_estimate and
// message_count are recomputed from messages; updated_at is bumped to now.
// If maxSessions is configured, sessions beyond the limit are pruned by
// updated_at ascending after the save.
func (s *Store) Save(name string, messages []domain.Message, agent, model string) error {
	if invalidName(name) {
		return herr.New(herr.UserInput, op+".Save")
	}
	blob, err := json.Marshal(messages)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".Save", err)
	}
	now := nowRFC3339()
	estimate := tokens.EstimateTokens(messages)

	existing, err := s.exists(name)
	if err != nil {
		return err
	}
	if existing {
		_, err = s.db.Exec(`
			UPDATE sessions SET agent = ?, model = ?, messages_json = ?,
				message_count = ?, token_estimate = ?, updated_at = ?
			WHERE name = ?`,
			agent, model, string(blob), len(messages), estimate, now, name)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO sessions (name, agent, model, messages_json, message_count,
				token_estimate, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			name, agent, model, string(blob), len(messages), estimate, now, now)
	}
	if err != nil {
		return herr.Wrap(herr.Storage, op+".Save", err)
	}
	return s.pruneOverflow()
}

func (s *Store) pruneOverflow() error {
	if s.maxSessions <= 0 {
		return nil
	}
	rows, err := s.db.Query(`SELECT name FROM sessions ORDER BY updated_at ASC`)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".pruneOverflow", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return herr.Wrap(herr.Storage, op+".pruneOverflow", err)
		}
		names = append(names, n)
	}
	rows.Close()

	overflow := len(names) - s.maxSessions
	for i := 0; i < overflow; i++ {
		if _, err := s.db.Exec(`DELETE FROM sessions WHERE name = ?`, names[i]); err != nil {
			return herr.Wrap(herr.Storage, op+".pruneOverflow", err)
		}
	}
	return nil
}

// Load returns the full blob for name, or a UserInput-kind error if absent
// (herr has no separate NotFound kind).
func (s *Store) Load(name string) (domain.SessionBlob, error) {
	row := s.db.QueryRow(`
		SELECT agent, model, messages_json, message_count, token_estimate,
			parent_session, branch_point, title, created_at, updated_at
		FROM sessions WHERE name = ?`, name)

	var blob domain.SessionBlob
	var messagesJSON, createdAt, updatedAt string
	blob.Meta.Name = name
	err := row.Scan(&blob.Meta.Agent, &blob.Meta.Model, &messagesJSON,
		&blob.Meta.MessageCount, &blob.Meta.TokenEstimate,
		&blob.Meta.ParentSession, &blob.Meta.BranchPoint, &blob.Meta.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.SessionBlob{}, herr.New(herr.UserInput, op+".Load")
	}
	if err != nil {
		return domain.SessionBlob{}, herr.Wrap(herr.Storage, op+".Load", err)
	}
	blob.Meta.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	blob.Meta.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if err := json.Unmarshal([]byte(messagesJSON), &blob.Messages); err != nil {
		return domain.SessionBlob{}, herr.Wrap(herr.Storage, op+".Load", err)
	}
	return blob, nil
}

// List returns every session's meta, sorted by updated_at descending.
func (s *Store) List() ([]domain.SessionMeta, error) {
	rows, err := s.db.Query(`
		SELECT name, agent, model, message_count, token_estimate,
			parent_session, branch_point, title, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".List", err)
	}
	defer rows.Close()

	var out []domain.SessionMeta
	for rows.Next() {
		var m domain.SessionMeta
		var createdAt, updatedAt string
		if err := rows.Scan(&m.Name, &m.Agent, &m.Model, &m.MessageCount, &m.TokenEstimate,
			&m.ParentSession, &m.BranchPoint, &m.Title, &createdAt, &updatedAt); err != nil {
			return nil, herr.Wrap(herr.Storage, op+".List", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, m)
	}
	return out, nil
}

// Delete removes name. Rejects path separators/traversal; otherwise
// idempotent — deleting an absent session is not an error.
func (s *Store) Delete(name string) error {
	if invalidName(name) {
		return herr.New(herr.UserInput, op+".Delete")
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return herr.Wrap(herr.Storage, op+".Delete", err)
	}
	return nil
}

// SetTitle records an auto-generated or user-chosen title for name. Does
// not bump updated_at — a title is metadata, not a content change.
func (s *Store) SetTitle(name, title string) error {
	if invalidName(name) {
		return herr.New(herr.UserInput, op+".SetTitle")
	}
	if _, err := s.db.Exec(`UPDATE sessions SET title = ? WHERE name = ?`, title, name); err != nil {
		return herr.Wrap(herr.Storage, op+".SetTitle", err)
	}
	return nil
}

// Exists reports whether name is present.
func (s *Store) Exists(name string) (bool, error) {
	return s.exists(name)
}

func (s *Store) exists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM sessions WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, herr.Wrap(herr.Storage, op+".exists", err)
	}
	return n > 0, nil
}

// GenerateName produces an agent-scoped unique name by appending a
// timestamp; on collision (same-second save for the same agent) appends a
// short numeric suffix.
func (s *Store) GenerateName(agent string, now time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s", agent, now.UTC().Format("20060102-150405"))
	name := base
	for suffix := 2; ; suffix++ {
		exists, err := s.exists(name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-%d", base, suffix)
	}
}

// Autosave implements the Controller-facing autosave contract: if current
// is non-empty, overwrite it silently; otherwise, iff len(messages) >= 2,
// create a new session named auto-<yyyymmdd-hhmmss>. Returns the name that
// was (or would have been) saved under, or "" if nothing was saved.
func (s *Store) Autosave(current string, messages []domain.Message, agent, model string, now time.Time) (string, error) {
	if current != "" {
		return current, s.Save(current, messages, agent, model)
	}
	if len(messages) < 2 {
		return "", nil
	}
	name := "auto-" + now.UTC().Format("20060102-150405")
	return name, s.Save(name, messages, agent, model)
}

// Branch forks fromName at atMessageIndex (exclusive upper bound) into a
// new session, recording provenance. Supplemented: extends §4.2 the way
// the teacher's BranchSession extends its session store.
func (s *Store) Branch(fromName string, atMessageIndex int) (domain.SessionMeta, error) {
	src, err := s.Load(fromName)
	if err != nil {
		return domain.SessionMeta{}, err
	}
	if atMessageIndex < 0 || atMessageIndex > len(src.Messages) {
		atMessageIndex = len(src.Messages)
	}
	newName, err := s.GenerateName(src.Meta.Agent+"-branch", time.Now())
	if err != nil {
		return domain.SessionMeta{}, err
	}
	branched := append([]domain.Message(nil), src.Messages[:atMessageIndex]...)
	if err := s.Save(newName, branched, src.Meta.Agent, src.Meta.Model); err != nil {
		return domain.SessionMeta{}, err
	}
	if _, err := s.db.Exec(`UPDATE sessions SET parent_session = ?, branch_point = ? WHERE name = ?`,
		fromName, atMessageIndex, newName); err != nil {
		return domain.SessionMeta{}, herr.Wrap(herr.Storage, op+".Branch", err)
	}
	blob, err := s.Load(newName)
	if err != nil {
		return domain.SessionMeta{}, err
	}
	return blob.Meta, nil
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// DataDirPath is a small helper mirroring the teacher's filepath.Join
// convention for locating the sqlite file under a data directory.
func DataDirPath(dataDir, filename string) string {
	return filepath.Join(dataDir, filename)
}
