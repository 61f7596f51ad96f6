// Package state provides SQLite-based storage for editing sessions and the
// repository sync history.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jayteealao/colab/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// Session statuses.
const (
	SessionStarting = "starting"
	SessionRunning  = "running"
	SessionStopped  = "stopped"
	SessionFinished = "finished"
	SessionFailed   = "failed"
)

// Sync event kinds.
const (
	EventClone    = "clone"
	EventFetch    = "fetch"
	EventPull     = "pull"
	EventCheckout = "checkout"
	EventReset    = "reset"
)

// Sync event outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Store provides state management using SQLite.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Session is one time-boxed editing session.
type Session struct {
	ID     string
	Status string
	// Rev is the commit HEAD pointed at when the session started.
	Rev          string
	Branch       string
	JarName      string
	JarSHA256    string
	PID          int
	Dir          string
	PatchPath    string
	PatchSize    int64
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// IsActive reports whether the session still owns the working tree.
func (s *Session) IsActive() bool {
	switch s.Status {
	case SessionStarting, SessionRunning, SessionStopped:
		return true
	}
	return false
}

// SyncEvent records one repository operation.
type SyncEvent struct {
	ID           string
	Kind         string
	Target       string
	Commit       string
	Outcome      string
	Details      map[string]any
	ErrorMessage string
	SessionID    string
	CreatedAt    time.Time
}

// New creates a new Store with the given data directory.
// The database file will be created at <dataDir>/colab.db.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "colab.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:      db,
		dataDir: dataDir,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the data directory path.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(initialMigration); err != nil {
			return fmt.Errorf("failed to run initial migration: %w", err)
		}
	}

	return nil
}

// --- Session Operations ---

const sessionColumns = `id, status, rev, branch, jar_name, jar_sha256, pid, dir, patch_path, patch_size, error_message, started_at, finished_at`

// CreateSession inserts a new session. At most one session may be active;
// a second one fails with ErrSessionActive.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Status == "" {
		sess.Status = SessionStarting
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var active string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sessions WHERE status IN (?, ?, ?) LIMIT 1`,
		SessionStarting, SessionRunning, SessionStopped,
	).Scan(&active)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", errors.ErrSessionActive, active)
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to check active session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, status, rev, branch, jar_name, jar_sha256, pid, dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		sess.ID, sess.Status, sess.Rev, nullString(sess.Branch),
		nullString(sess.JarName), nullString(sess.JarSHA256), sess.PID, sess.Dir,
	); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate id %s", errors.ErrSessionActive, sess.ID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	return s.reloadSession(ctx, sess)
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetActiveSession returns the session that owns the working tree.
func (s *Store) GetActiveSession(ctx context.Context) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status IN (?, ?, ?) ORDER BY started_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, SessionStarting, SessionRunning, SessionStopped)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions, most recent first. A limit of 0 lists all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// MarkSessionRunning records the editor process of a started session.
func (s *Store) MarkSessionRunning(ctx context.Context, id string, pid int) error {
	return s.updateSession(ctx,
		`UPDATE sessions SET status = ?, pid = ? WHERE id = ?`,
		SessionRunning, pid, id)
}

// UpdateSessionStatus updates a session's status and optionally sets an error
// message. Terminal statuses also set the finished time.
func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string, errorMsg *string) error {
	var query string
	if status == SessionFinished || status == SessionFailed {
		query = `UPDATE sessions SET status = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`
	} else {
		query = `UPDATE sessions SET status = ?, error_message = ? WHERE id = ?`
	}
	return s.updateSession(ctx, query, status, nullStringPtr(errorMsg), id)
}

// CompleteSession marks a session finished with its patch artifact.
func (s *Store) CompleteSession(ctx context.Context, id, patchPath string, patchSize int64) error {
	return s.updateSession(ctx,
		`UPDATE sessions SET status = ?, patch_path = ?, patch_size = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		SessionFinished, nullString(patchPath), patchSize, id)
}

func (s *Store) updateSession(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %v", errors.ErrSessionNotFound, args[len(args)-1])
	}
	return nil
}

func (s *Store) reloadSession(ctx context.Context, sess *Session) error {
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		return err
	}
	*sess = *got
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var branch, jarName, jarSHA, patchPath, errorMessage sql.NullString
	var finishedAt sql.NullTime

	if err := row.Scan(
		&sess.ID, &sess.Status, &sess.Rev, &branch, &jarName, &jarSHA,
		&sess.PID, &sess.Dir, &patchPath, &sess.PatchSize, &errorMessage,
		&sess.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	sess.Branch = branch.String
	sess.JarName = jarName.String
	sess.JarSHA256 = jarSHA.String
	sess.PatchPath = patchPath.String
	sess.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		sess.FinishedAt = &finishedAt.Time
	}
	return &sess, nil
}

// --- Sync Event Operations ---

// RecordSyncEvent appends an event to the sync history.
func (s *Store) RecordSyncEvent(ctx context.Context, e *SyncEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	var details sql.NullString
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO sync_events (id, kind, target, commit_sha, outcome, details, error_message, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		e.ID, e.Kind, nullString(e.Target), nullString(e.Commit), e.Outcome,
		details, nullString(e.ErrorMessage), nullString(e.SessionID),
	); err != nil {
		return fmt.Errorf("failed to record sync event: %w", err)
	}
	return nil
}

// ListSyncEvents returns the most recent events first. A limit of 0 lists all.
func (s *Store) ListSyncEvents(ctx context.Context, limit int) ([]*SyncEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, kind, target, commit_sha, outcome, details, error_message, session_id, created_at
		FROM sync_events ORDER BY created_at DESC, rowid DESC LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}
	defer rows.Close()

	var events []*SyncEvent
	for rows.Next() {
		var e SyncEvent
		var target, commit, details, errorMessage, sessionID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Kind, &target, &commit, &e.Outcome,
			&details, &errorMessage, &sessionID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		e.Target = target.String
		e.Commit = commit.String
		e.ErrorMessage = errorMessage.String
		e.SessionID = sessionID.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode event details: %w", err)
			}
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
