// Package persistence stores the host's session journal in SQLite.
package persistence

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/rlshost/host"
)

// Session is one journal row: a single launch attempt and its outcome.
type Session struct {
	ID         string
	Strategy   string
	Executable string
	Workspace  string
	StartedAt  time.Time
	EndedAt    *time.Time
	ExitCode   *int
	Fault      string
}

// SessionStore persists session lifecycle events. It implements the
// supervisor's Journal contract.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore opens/creates the database at dbPath.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	store := &SessionStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		executable TEXT,
		workspace TEXT,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		exit_code INTEGER,
		fault TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordStart inserts a row for a freshly launched session.
func (s *SessionStore) RecordStart(rec host.SessionRecord) error {
	if rec.ID == "" {
		return errors.New("session id required")
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, strategy, executable, workspace, started_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Strategy), rec.Executable, rec.Workspace, rec.StartedAt.UTC(),
	)
	return err
}

// RecordEnd marks a session as finished with its exit details.
func (s *SessionStore) RecordEnd(id string, exitCode int, fault string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, exit_code = ?, fault = ? WHERE id = ?`,
		time.Now().UTC(), exitCode, fault, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("unknown session " + id)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *SessionStore) Recent(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, strategy, executable, workspace, started_at, ended_at, exit_code, fault
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var endedAt sql.NullTime
		var exitCode sql.NullInt64
		var fault sql.NullString
		if err := rows.Scan(&sess.ID, &sess.Strategy, &sess.Executable, &sess.Workspace,
			&sess.StartedAt, &endedAt, &exitCode, &fault); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			sess.ExitCode = &code
		}
		sess.Fault = fault.String
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
