package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Status of a journaled completion
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Mode is how the completion was delivered to the client
type Mode string

const (
	ModeStream    Mode = "stream"
	ModeBatch     Mode = "batch"
	ModeWebsocket Mode = "websocket"
)

// Entry is one completion served by the relay
type Entry struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Persona     string        `json:"persona"`
	Mode        Mode          `json:"mode"`
	Fingerprint string        `json:"fingerprint"`
	Turns       int           `json:"turns"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// Journal records completion metadata in SQLite
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	createCompletionsTable := `
	CREATE TABLE IF NOT EXISTS completions (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		persona TEXT,
		mode TEXT,
		fingerprint TEXT,
		turns INTEGER,
		status TEXT,
		error TEXT,
		duration_ms INTEGER
	);`

	if _, err := db.Exec(createCompletionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create completions table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores one entry. A missing ID or start time is filled in.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO completions (id, started_at, persona, mode, fingerprint, turns, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UTC(), e.Persona, string(e.Mode), e.Fingerprint, e.Turns,
		string(e.Status), e.Error, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, persona, mode, fingerprint, turns, status, error, duration_ms
		FROM completions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			mode       string
			status     string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.Persona, &mode, &e.Fingerprint,
			&e.Turns, &status, &e.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		e.Mode = Mode(mode)
		e.Status = Status(status)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completions: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}
