// Package sqlite implements repository.Store on top of SQLite using the pure-Go
// modernc.org/sqlite driver.
//
// CONNECTION SETTINGS:
// Every connection is opened with foreign keys on, a busy timeout, and
// _txlock=immediate. Immediate transactions take the database write lock at
// BEGIN, so two atomic units that touch the same group or fixture run one
// after the other and the second one reads what the first committed.
//
// ":memory:" databases exist per connection, so the pool is pinned to a single
// connection for them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/prediction-league/internal/repository"
)

const busyTimeout = 5 * time.Second

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every repository method. DB runs them against the pool; a
// transaction runs them against its *sql.Tx.
type queries struct {
	q querier
}

var (
	_ repository.Store = (*DB)(nil)
	_ repository.Tx    = (*queries)(nil)
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	*queries
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/league.db"  → file-based database
//   - ":memory:"        → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{queries: &queries{q: conn}, conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_txlock=immediate",
		"_time_format=sqlite",
	}
	return path + "?" + strings.Join(params, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// RunInTx runs fn inside one transaction. fn must use only the tx it is given.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	// A panicking fn must not leave the write lock held.
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &queries{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	for i, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		github_id     INTEGER UNIQUE,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS prediction_groups (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		creator_id TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS memberships (
		group_id  TEXT NOT NULL REFERENCES prediction_groups(id) ON DELETE CASCADE,
		user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at DATETIME NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id)`,

	`CREATE TABLE IF NOT EXISTS fixtures (
		id         INTEGER PRIMARY KEY,
		home_team  TEXT NOT NULL,
		away_team  TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		home_score INTEGER,
		away_score INTEGER,
		completed  INTEGER NOT NULL DEFAULT 0,
		season     TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL,
		CHECK (completed = 0 OR (home_score IS NOT NULL AND away_score IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fixtures_start_time ON fixtures(start_time)`,

	`CREATE TABLE IF NOT EXISTS predictions (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_id      TEXT NOT NULL REFERENCES prediction_groups(id) ON DELETE CASCADE,
		fixture_id    INTEGER NOT NULL REFERENCES fixtures(id) ON DELETE CASCADE,
		pred_home     INTEGER NOT NULL CHECK (pred_home >= 0),
		pred_away     INTEGER NOT NULL CHECK (pred_away >= 0),
		predicted_at  DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		locked        INTEGER NOT NULL DEFAULT 0,
		points_earned INTEGER,
		UNIQUE (user_id, group_id, fixture_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_fixture_id ON predictions(fixture_id)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_group_user ON predictions(group_id, user_id)`,

	// Locked predictions keep their score line forever.
	`CREATE TRIGGER IF NOT EXISTS trg_predictions_locked_scores
		BEFORE UPDATE OF pred_home, pred_away ON predictions
		WHEN OLD.locked = 1
		BEGIN
			SELECT RAISE(ABORT, 'prediction locked');
		END`,

	`CREATE TABLE IF NOT EXISTS leaderboard_entries (
		group_id      TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		total_points  INTEGER NOT NULL DEFAULT 0,
		rank_position INTEGER NOT NULL DEFAULT 0,
		updated_at    DATETIME NOT NULL,
		PRIMARY KEY (group_id, user_id),
		FOREIGN KEY (group_id, user_id) REFERENCES memberships(group_id, user_id) ON DELETE CASCADE
	)`,
}

// isConstraint reports whether err is a SQLite constraint violation whose
// message mentions target (for example "prediction_groups.code").
func isConstraint(err error, target string) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	if sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return target == "" || strings.Contains(sqlErr.Error(), target)
}

// ts normalises a timestamp before it is written. All stored times are UTC
// with second precision so their text form sorts chronologically.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
