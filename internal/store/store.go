// Package store is the persistence collaborator: a sqlite-backed mirror
// of the live registry, written after the fact so a restart can explain
// what existed without depending on in-memory state.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("store: session not found")

// isBusyLock reports whether err indicates SQLite database lock
// (SQLITE_BUSY). Handles wrapped errors from database/sql.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// SessionRow is the persisted mirror of one session.
type SessionRow struct {
	ID            string
	ProjectID     string
	WorkspacePath string
	BranchName    string
	Status        string
	AutoYes       bool
	OutputLog     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	workspace_path TEXT NOT NULL,
	branch_name    TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	auto_yes       INTEGER NOT NULL DEFAULT 0,
	output_log     TEXT NOT NULL DEFAULT '',
	error_message  TEXT,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id);
`

// DefaultMaxOpenConns is the default connection pool size. WAL mode
// allows multiple readers plus one writer; a handful of conns is enough
// for this orchestrator's read/write mix.
const DefaultMaxOpenConns = 4

// dsnWithPragmas returns a connection string with WAL, busy-timeout and
// perf pragmas applied per-connection by the driver.
func dsnWithPragmas(dbPath string) string {
	// busy_timeout: tolerate overlap between manager writes and the
	// health sweeper; journal_mode=WAL: concurrent reads during writes.
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-64000)" +
		"&_pragma=temp_store(MEMORY)"
}

// New opens the store at dbPath (":memory:" is fine for tests).
func New(dbPath string) (*Store, error) {
	dsn := dsnWithPragmas(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxOpenConns)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(row SessionRow) error {
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO sessions (id, project_id, workspace_path, branch_name, status, auto_yes, output_log, error_message, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.ProjectID, row.WorkspacePath, row.BranchName, row.Status, row.AutoYes, row.OutputLog,
			nullableString(row.ErrorMessage), row.CreatedAt.UTC(), row.UpdatedAt.UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(id string) (*SessionRow, error) {
	row := s.db.QueryRow(
		`SELECT id, project_id, workspace_path, branch_name, status, auto_yes, output_log, error_message, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	)
	return scanSession(row)
}

func (s *Store) ListSessions() ([]*SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, workspace_path, branch_name, status, auto_yes, output_log, error_message, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *Store) UpdateStatus(id string, status string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	return checkRowAffected(result, id)
}

func (s *Store) UpdateAutoYes(id string, autoYes bool) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE sessions SET auto_yes = ?, updated_at = ? WHERE id = ?`, autoYes, time.Now().UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("updating auto_yes: %w", err)
	}
	return checkRowAffected(result, id)
}

func (s *Store) UpdateOutputLog(id string, log string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE sessions SET output_log = ?, updated_at = ? WHERE id = ?`, log, time.Now().UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("updating output log: %w", err)
	}
	return checkRowAffected(result, id)
}

func (s *Store) UpdateErrorMessage(id string, message string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE sessions SET error_message = ?, updated_at = ? WHERE id = ?`, message, time.Now().UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("updating error message: %w", err)
	}
	return checkRowAffected(result, id)
}

func (s *Store) DeleteSession(id string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
		return e
	})
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return checkRowAffected(result, id)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*SessionRow, error) {
	var r SessionRow
	var errMsg sql.NullString
	err := row.Scan(
		&r.ID, &r.ProjectID, &r.WorkspacePath, &r.BranchName, &r.Status, &r.AutoYes, &r.OutputLog,
		&errMsg, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	return &r, nil
}

func scanSessions(rows *sql.Rows) ([]*SessionRow, error) {
	var sessions []*SessionRow
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func checkRowAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
