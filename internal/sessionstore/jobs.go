package sessionstore

import (
	"encoding/json"
	"time"

	"github.com/corehost/agentcore/internal/herr"
	"github.com/google/uuid"
)

// ScheduledJob is one queued invocation of a tool, created by the
// schedule_tool built-in (§4.4 supplemented feature) and consumed by a
// ticker owned by the host process, not the Agent Runtime — a due job runs
// whether or not its originating turn is still active.
type ScheduledJob struct {
	ID           string
	Tool         string
	ArgsJSON     []byte
	ScheduledFor time.Time
	Recurrence   string // "once", "daily", "hourly"
	LastError    string
	LastResult   string
}

func (s *Store) migrateJobs() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			args_json TEXT NOT NULL DEFAULT '{}',
			scheduled_for TEXT NOT NULL,
			recurrence TEXT NOT NULL DEFAULT 'once',
			last_error TEXT NOT NULL DEFAULT '',
			last_result TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_due ON scheduled_jobs(scheduled_for);
	`)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".migrateJobs", err)
	}
	return nil
}

// ScheduleJob queues tool to run with args at scheduledFor, optionally
// repeating. Returns the new job's ID.
func (s *Store) ScheduleJob(tool string, args json.RawMessage, scheduledFor time.Time, recurrence string) (string, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO scheduled_jobs (id, tool, args_json, scheduled_for, recurrence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, tool, string(args), scheduledFor.UTC().Format(time.RFC3339), recurrence, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", herr.Wrap(herr.Storage, op+".ScheduleJob", err)
	}
	return id, nil
}

// DueJobs returns up to limit jobs scheduled at or before now, earliest first.
func (s *Store) DueJobs(now time.Time, limit int) ([]ScheduledJob, error) {
	rows, err := s.db.Query(
		`SELECT id, tool, args_json, scheduled_for, recurrence, last_error, last_result
		 FROM scheduled_jobs WHERE scheduled_for <= ? ORDER BY scheduled_for ASC LIMIT ?`,
		now.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, herr.Wrap(herr.Storage, op+".DueJobs", err)
	}
	defer rows.Close()

	var out []ScheduledJob
	for rows.Next() {
		var j ScheduledJob
		var scheduledFor, argsJSON string
		if err := rows.Scan(&j.ID, &j.Tool, &argsJSON, &scheduledFor, &j.Recurrence, &j.LastError, &j.LastResult); err != nil {
			return nil, herr.Wrap(herr.Storage, op+".DueJobs", err)
		}
		j.ArgsJSON = []byte(argsJSON)
		j.ScheduledFor, _ = time.Parse(time.RFC3339, scheduledFor)
		out = append(out, j)
	}
	return out, rows.Err()
}

// CompleteJob records a job's outcome. A "once" job is deleted; a
// recurring job is rescheduled to next and its last_result/last_error
// fields are set to this run's result and errText.
func (s *Store) CompleteJob(id string, next time.Time, recurring bool, result, errText string) error {
	if !recurring {
		_, err := s.db.Exec(`DELETE FROM scheduled_jobs WHERE id = ?`, id)
		if err != nil {
			return herr.Wrap(herr.Storage, op+".CompleteJob", err)
		}
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE scheduled_jobs SET scheduled_for = ?, last_result = ?, last_error = ? WHERE id = ?`,
		next.UTC().Format(time.RFC3339), result, errText, id,
	)
	if err != nil {
		return herr.Wrap(herr.Storage, op+".CompleteJob", err)
	}
	return nil
}

// ListJobs returns every pending job, earliest first.
func (s *Store) ListJobs() ([]ScheduledJob, error) {
	return s.DueJobs(farFuture, 1000)
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
