// Package sqlite provides an embedded SQLite-backed implementation of the
// storage adapter, used for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jakechorley/charity-hub/pkg/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB provides database operations using an SQLite file.
//
// Transactions begin with BEGIN IMMEDIATE, so writers serialise on the
// database lock at Begin and every read inside a transaction is already a
// locking read.
type DB struct {
	sqlDB *sql.DB
}

// Open opens the SQLite database at path and applies embedded migrations
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	d := &DB{sqlDB: sqlDB}
	if err := d.RunMigrations(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the SQLite handle
func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// Begin starts an immediate transaction
func (d *DB) Begin(ctx context.Context) (db.Tx, error) {
	t, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin transaction", err)
	}
	return &tx{tx: t}, nil
}

// RunMigrations executes embedded migrations at most once per file
func (d *DB) RunMigrations(ctx context.Context) error {
	if _, err := d.sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		var applied int
		if err := d.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, filename,
		).Scan(&applied); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", filename, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		t, err := d.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}
		if _, err := t.ExecContext(ctx, string(content)); err != nil {
			_ = t.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err := t.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			filename, toMillis(time.Now()),
		); err != nil {
			_ = t.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		if err := t.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}
	}
	return nil
}

// tx implements db.Tx on top of a database/sql transaction
type tx struct {
	tx *sql.Tx
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return wrapErr("rollback transaction", err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNotFound
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	code := sqliteErr.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return db.ErrAlreadyExists
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return db.ErrReferenced
	}
	// extended codes keep the primary code in the low byte
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return db.ErrConflict
	case sqlite3.SQLITE_CONSTRAINT:
		message := strings.ToLower(err.Error())
		switch {
		case strings.Contains(message, "unique constraint"):
			return db.ErrAlreadyExists
		case strings.Contains(message, "foreign key constraint"):
			return db.ErrReferenced
		}
	}
	return nil
}

func wrapErr(action string, err error) error {
	if sentinel := classify(err); sentinel != nil {
		return fmt.Errorf("failed to %s: %w: %w", action, sentinel, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// execOne runs a statement expected to touch exactly one row
func (t *tx) execOne(ctx context.Context, action, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(action, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s: %w", action, db.ErrNotFound)
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}
