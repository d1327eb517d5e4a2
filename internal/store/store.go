// Package store provides a SQLite-backed log of answered questions. Each
// completed bot query is recorded with its outcome and latency so operators
// can review what users ask and where the pipeline falls back. Logging is
// best-effort: callers treat a write failure as a warning, never as a
// request failure.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is a single answered question.
type Entry struct {
	// Question is the sanitized query as the pipeline saw it.
	Question string
	// Answer is the final answer text. Empty when the query failed.
	Answer string
	// Outcome labels how the query ended: "ok", "fallback", or an error kind.
	Outcome string
	// Latency is the end-to-end time spent answering.
	Latency time.Duration
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// QuestionLog persists and retrieves answered questions. Implementations
// must be safe for concurrent use.
type QuestionLog interface {
	// Record persists a single answered question.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest-first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is a QuestionLog backed by a local SQLite database.
type SQLiteLog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the question log database.
// It resolves to ~/.reachbot/questions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".reachbot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "questions.db"), nil
}

// Open opens (or creates) a SQLiteLog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteLog{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS questions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    answer      TEXT    NOT NULL,
    outcome     TEXT    NOT NULL,
    latency_ms  INTEGER NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_questions_created
    ON questions (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single answered question.
func (s *SQLiteLog) Record(ctx context.Context, e Entry) error {
	const q = `INSERT INTO questions (question, answer, outcome, latency_ms, created_at) VALUES (?, ?, ?, ?, ?)`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, q,
		e.Question, e.Answer, e.Outcome, e.Latency.Milliseconds(), createdAt.Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest-first.
func (s *SQLiteLog) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT question, answer, outcome, latency_ms, created_at
FROM   questions
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var latencyMS, ts int64
		if err := rows.Scan(&e.Question, &e.Answer, &e.Outcome, &latencyMS, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteLog) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
