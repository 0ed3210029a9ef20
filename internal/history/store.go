// Package history persists finished conversation turns to SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/butler-ai/butler/internal/errors"
)

// Turn is one recorded conversation turn.
type Turn struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed turn log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the turn log at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.Wrap(err, "history_open", "failed to create data directory", apperrors.CategoryCollaborator)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, apperrors.Wrap(err, "history_open", "failed to open database", apperrors.CategoryCollaborator)
	}

	// sqlite handles one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "history_open", "failed to set pragmas", apperrors.CategoryCollaborator)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id         TEXT PRIMARY KEY,
			prompt     TEXT NOT NULL,
			response   TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
	`)
	if err != nil {
		return apperrors.Wrap(err, "history_migrate", "failed to create schema", apperrors.CategoryCollaborator)
	}
	return nil
}

// Record stores one finished turn.
func (s *Store) Record(ctx context.Context, prompt, response, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, prompt, response, outcome, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), prompt, response, outcome, time.Now().UTC(),
	)
	if err != nil {
		return apperrors.Wrap(err, "history_record", "failed to record turn", apperrors.CategoryCollaborator)
	}
	return nil
}

// Recent returns the most recent turns, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, response, outcome, created_at FROM turns ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "history_query", "failed to query turns", apperrors.CategoryCollaborator)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Prompt, &t.Response, &t.Outcome, &t.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "history_scan", "failed to scan turn", apperrors.CategoryCollaborator)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
