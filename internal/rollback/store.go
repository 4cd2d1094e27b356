package rollback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status is the lifecycle state of a rollback session.
type Status string

const (
	// StatusActive sessions accept appended operations and may be rolled back.
	StatusActive Status = "active"
	// StatusCompleted is the commit point; the log is kept for audit only.
	StatusCompleted Status = "completed"
	// StatusRolledBack means every pending operation was reversed.
	StatusRolledBack Status = "rolled_back"
)

// ActionKind identifies the forward mutation a compensating action reverses.
type ActionKind string

const (
	// ActionMove records "item was moved from FromParentID to ToParentID";
	// the reverse moves it back to FromParentID.
	ActionMove ActionKind = "move"
	// ActionTrash records "item was trashed"; the reverse untrashes it.
	ActionTrash ActionKind = "trash"
)

// Action describes one primitive remote mutation with enough information to
// reverse it.
type Action struct {
	Kind         ActionKind
	ItemID       string
	FromParentID string
	ToParentID   string
	// Reversible is false when the remote cannot undo the mutation (for
	// example a backend without untrash). Irreversible actions are skipped
	// during replay and reported.
	Reversible bool
}

// Operation is a persisted action with its position in the session log.
type Operation struct {
	ID  int64
	Seq int
	Action
	ReversedAt *time.Time
	CreatedAt  time.Time
}

// Session is a durable, ordered log of compensating actions for one logical
// multi-step operation.
type Session struct {
	ID        string
	Label     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrSessionNotActive is returned when appending to or completing a session
// in a terminal state.
var ErrSessionNotActive = errors.New("rollback session is not active")

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("rollback session not found")

// Store manages rollback session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the rollback database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: filepath.Clean(path)}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            label TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS operations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
            seq INTEGER NOT NULL,
            kind TEXT NOT NULL,
            item_id TEXT NOT NULL,
            from_parent_id TEXT,
            to_parent_id TEXT,
            reversible INTEGER NOT NULL DEFAULT 1,
            reversed_at TEXT,
            created_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_operations_session_seq
            ON operations (session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status
            ON sessions (status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, label string) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, label, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id, label, StatusActive, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, label, status, created_at, updated_at FROM sessions WHERE id = ?`,
		id,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, err
}

// ListSessions returns every session newest-first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	return s.querySessions(ctx,
		`SELECT id, label, status, created_at, updated_at FROM sessions
         ORDER BY created_at DESC`)
}

// ListOpen returns sessions still eligible for rollback, oldest-first so
// startup recovery handles them in creation order.
func (s *Store) ListOpen(ctx context.Context) ([]*Session, error) {
	return s.querySessions(ctx,
		`SELECT id, label, status, created_at, updated_at FROM sessions
         WHERE status = 'active' ORDER BY created_at ASC`)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// AppendOperation records a compensating action at the tail of an active
// session's log. Appending to a terminal session fails with
// ErrSessionNotActive.
func (s *Store) AppendOperation(ctx context.Context, sessionID string, action Action) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != StatusActive {
		return fmt.Errorf("%w: %s is %s", ErrSessionNotActive, sessionID, session.Status)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO operations (session_id, seq, kind, item_id, from_parent_id, to_parent_id, reversible, created_at)
         VALUES (
            ?,
            (SELECT COALESCE(MAX(seq), 0) + 1 FROM operations WHERE session_id = ?),
            ?, ?, ?, ?, ?, ?
         )`,
		sessionID, sessionID,
		action.Kind,
		action.ItemID,
		nullableString(action.FromParentID),
		nullableString(action.ToParentID),
		boolToInt(action.Reversible),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return s.touchSession(ctx, sessionID)
}

// Operations returns the full session log in append order.
func (s *Store) Operations(ctx context.Context, sessionID string) ([]Operation, error) {
	return s.queryOperations(ctx,
		`SELECT id, seq, kind, item_id, from_parent_id, to_parent_id, reversible, reversed_at, created_at
         FROM operations WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

// PendingOperations returns the not-yet-reversed operations in reverse
// append order, ready for replay.
func (s *Store) PendingOperations(ctx context.Context, sessionID string) ([]Operation, error) {
	return s.queryOperations(ctx,
		`SELECT id, seq, kind, item_id, from_parent_id, to_parent_id, reversible, reversed_at, created_at
         FROM operations WHERE session_id = ? AND reversed_at IS NULL ORDER BY seq DESC`, sessionID)
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...any) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var operations []Operation
	for rows.Next() {
		var (
			op         Operation
			kind       string
			fromParent sql.NullString
			toParent   sql.NullString
			reversible int
			reversedAt sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&op.ID, &op.Seq, &kind, &op.ItemID, &fromParent, &toParent, &reversible, &reversedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = ActionKind(kind)
		op.FromParentID = fromParent.String
		op.ToParentID = toParent.String
		op.Reversible = reversible != 0
		if reversedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, reversedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse reversed_at: %w", err)
			}
			op.ReversedAt = &parsed
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		op.CreatedAt = parsed
		operations = append(operations, op)
	}
	return operations, rows.Err()
}

// MarkReversed flags one operation as replayed so a resumed rollback does
// not double-reverse it.
func (s *Store) MarkReversed(ctx context.Context, operationID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE operations SET reversed_at = ? WHERE id = ? AND reversed_at IS NULL`,
		now, operationID,
	)
	if err != nil {
		return fmt.Errorf("mark operation reversed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %d already reversed or unknown", operationID)
	}
	return nil
}

// CompleteSession commits an active session. The log is retained for audit
// but no longer eligible for normal rollback.
func (s *Store) CompleteSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, StatusActive, StatusCompleted)
}

// MarkRolledBack transitions a fully replayed session to its terminal state.
func (s *Store) MarkRolledBack(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, StatusActive, StatusRolledBack)
}

func (s *Store) transition(ctx context.Context, sessionID string, from, to Status) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, sessionID, from,
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		session, getErr := s.GetSession(ctx, sessionID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s is %s", ErrSessionNotActive, sessionID, session.Status)
	}
	return nil
}

func (s *Store) touchSession(ctx context.Context, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now, sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		session   Session
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&session.ID, &session.Label, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	session.Status = Status(status)
	var err error
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &session, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
