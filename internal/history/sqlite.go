// Package history records download runs so that past activity can be
// inspected and repeated downloads avoided.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/history/migrations"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run summarises one recorded download run.
type Run struct {
	ID         string
	Operation  string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Skipped    int
}

// Store persists download runs.
type Store interface {
	// RecordRun stores the outcome of one run and returns its generated ID.
	RecordRun(ctx context.Context, operation string, started, finished time.Time, result *tiktok.DownloadResult) (string, error)

	// Runs returns the most recent runs, newest first. limit <= 0 returns all.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// LinkDownloaded reports whether link succeeded in any recorded run.
	LinkDownloaded(ctx context.Context, link tiktok.Link) (bool, error)

	// CheckMigrations verifies the database schema is up-to-date.
	CheckMigrations() error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	ids  tiktok.IDGenerator
}

// NewSQLiteStore opens (and migrates) a run history database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &SQLiteStore{db: db, path: path, ids: tiktok.UUIDGenerator{}}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RecordRun stores the run and all of its link outcomes in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, operation string, started, finished time.Time, result *tiktok.DownloadResult) (string, error) {
	id := s.ids.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, operation, started_at, finished_at) VALUES (?, ?, ?, ?)",
		id, operation, started.UTC(), finished.UTC()); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	insert := func(links []tiktok.Link, outcome string) error {
		for _, link := range links {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO run_links (run_id, link, outcome) VALUES (?, ?, ?)",
				id, link.String(), outcome); err != nil {
				return fmt.Errorf("inserting %s link: %w", outcome, err)
			}
		}
		return nil
	}
	if err := insert(result.Succeeded, "succeeded"); err != nil {
		return "", err
	}
	if err := insert(result.Failed, "failed"); err != nil {
		return "", err
	}
	if err := insert(result.Skipped, "skipped"); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// Runs returns recorded runs with their outcome counts, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT r.id, r.operation, r.started_at, r.finished_at,
			COUNT(CASE WHEN l.outcome = 'succeeded' THEN 1 END),
			COUNT(CASE WHEN l.outcome = 'failed' THEN 1 END),
			COUNT(CASE WHEN l.outcome = 'skipped' THEN 1 END)
		FROM runs r
		LEFT JOIN run_links l ON l.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Operation, &run.StartedAt, &run.FinishedAt,
			&run.Succeeded, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	return runs, nil
}

// LinkDownloaded reports whether link has ever been downloaded successfully.
func (s *SQLiteStore) LinkDownloaded(ctx context.Context, link tiktok.Link) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM run_links WHERE link = ? AND outcome = 'succeeded' LIMIT 1",
		link.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying link history: %w", err)
	}
	return true, nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
