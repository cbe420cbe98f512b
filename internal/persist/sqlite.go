package persist

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS directories (
	key TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS entries (
	directory     TEXT NOT NULL REFERENCES directories(key) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	last_modified INTEGER NOT NULL,
	is_dir        INTEGER NOT NULL,
	PRIMARY KEY (directory, name)
);
`

// SQLiteStore keeps baselines in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateWrite, "failed to open state database", err).
			WithDetail("path", path)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to set pragma", err).
				WithDetail("path", path)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to initialize schema", err).
			WithDetail("path", path)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// HasData reports whether any directory was stored.
func (s *SQLiteStore) HasData(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM directories)").Scan(&exists)
	if err != nil {
		return false, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to query state", err)
	}
	return exists, nil
}

// Read returns the stored baselines.
func (s *SQLiteStore) Read(ctx context.Context) (map[string][]poller.CachedEntry, error) {
	state := make(map[string][]poller.CachedEntry)

	keys, err := s.db.QueryContext(ctx, "SELECT key FROM directories")
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to read directories", err)
	}
	for keys.Next() {
		var key string
		if err := keys.Scan(&key); err != nil {
			_ = keys.Close()
			return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to scan directory", err)
		}
		state[key] = []poller.CachedEntry{}
	}
	if err := keys.Close(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to read directories", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT directory, name, last_modified, is_dir FROM entries ORDER BY directory, position")
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to read entries", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var dir string
		var e poller.CachedEntry
		if err := rows.Scan(&dir, &e.Name, &e.LastModified, &e.IsDir); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to scan entry", err)
		}
		state[dir] = append(state[dir], e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to read entries", err)
	}
	return state, nil
}

// Write replaces the stored baselines in one transaction.
func (s *SQLiteStore) Write(ctx context.Context, state map[string][]poller.CachedEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to clear entries", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM directories"); err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to clear directories", err)
	}

	dirStmt, err := tx.PrepareContext(ctx, "INSERT INTO directories (key) VALUES (?)")
	if err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to prepare statement", err)
	}
	defer func() { _ = dirStmt.Close() }()

	entryStmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO entries (directory, position, name, last_modified, is_dir) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to prepare statement", err)
	}
	defer func() { _ = entryStmt.Close() }()

	for key, entries := range state {
		if _, err := dirStmt.ExecContext(ctx, key); err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, fmt.Sprintf("failed to store %s", key), err)
		}
		for i, e := range entries {
			if _, err := entryStmt.ExecContext(ctx, key, i, e.Name, e.LastModified, e.IsDir); err != nil {
				return apperrors.New(apperrors.ErrCodeStateWrite, fmt.Sprintf("failed to store %s", key), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to commit state", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
