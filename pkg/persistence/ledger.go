package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"omniagent/pkg/logx"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session status constants.
const (
	SessionStatusActive   = "active"
	SessionStatusShutdown = "shutdown"
)

// Run operations.
const (
	OperationPlan     = "plan"
	OperationRevise   = "revise"
	OperationDispatch = "dispatch"
	OperationEdit     = "edit"
)

// Run outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Session is one hub lifetime.
type Session struct {
	SessionID  string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	ConfigJSON string     `json:"config_json"`
}

// Run is the audit record of one planning or dispatch call.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Run struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Operation   string        `json:"operation"`
	Agent       string        `json:"agent,omitempty"`
	Outcome     string        `json:"outcome"`
	ErrorType   string        `json:"error_type,omitempty"`
	Error       string        `json:"error,omitempty"`
	PromptChars int           `json:"prompt_chars"` // runes, not bytes
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// Ledger stores sessions and runs in SQLite.
type Ledger struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens or creates the ledger at path. ":memory:" gives a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer; one connection also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	l := &Ledger{db: db, logger: logx.NewLogger("persistence")}
	l.logger.Info("📦 Run ledger opened: %s", path)
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// StartSession creates an active session record.
func (l *Ledger) StartSession(ctx context.Context, sessionID, configJSON string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, status, config_json)
		VALUES (?, ?, ?, ?)
	`, sessionID, formatTime(time.Now()), SessionStatusActive, configJSON)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession marks a session as ended with status.
func (l *Ledger) EndSession(ctx context.Context, sessionID, status string) error {
	result, err := l.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ? WHERE session_id = ?
	`, status, formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession loads one session.
func (l *Ledger) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT session_id, started_at, ended_at, status, config_json
		FROM sessions WHERE session_id = ?
	`, sessionID)

	var (
		s       Session
		started string
		ended   sql.NullString
	)
	err := row.Scan(&s.SessionID, &started, &ended, &s.Status, &s.ConfigJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	s.StartedAt = parseTime(started)
	if ended.Valid {
		t := parseTime(ended.String)
		s.EndedAt = &t
	}
	return &s, nil
}

// Record inserts a run. A missing ID or start time is filled in.
//
//nolint:gocritic // Run passed by value; callers build it inline
func (l *Ledger) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, operation, agent, outcome, error_type, error, prompt_chars, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.Operation, run.Agent, run.Outcome, run.ErrorType, run.Error,
		run.PromptChars, formatTime(run.StartedAt), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.queryRuns(ctx, `
		SELECT id, session_id, operation, agent, outcome, error_type, error, prompt_chars, started_at, duration_ms
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
}

// SessionRuns returns every run of a session in the order they started.
func (l *Ledger) SessionRuns(ctx context.Context, sessionID string) ([]Run, error) {
	return l.queryRuns(ctx, `
		SELECT id, session_id, operation, agent, outcome, error_type, error, prompt_chars, started_at, duration_ms
		FROM runs WHERE session_id = ? ORDER BY started_at, rowid
	`, sessionID)
}

func (l *Ledger) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		var (
			r          Run
			started    string
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Operation, &r.Agent, &r.Outcome, &r.ErrorType, &r.Error,
			&r.PromptChars, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
