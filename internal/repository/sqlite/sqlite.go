// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite: no CGo, no
// external server, works everywhere Go works. Use ":memory:" for tests.
//
// SQLite transactions give this package its most important property:
// everything written through the Store handed to InTx (instance rows,
// state values, events) commits or rolls back as one unit. That single
// transaction is the Go rendering of the ledger's unit of work, and it
// is what makes deploy+initialize atomic.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/trustful/badge-registry/internal/repository"
)

// Interface checks: both the pool-backed DB and the tx-scoped store
// must satisfy repository.Store.
var (
	_ repository.DB    = (*DB)(nil)
	_ repository.Store = (*store)(nil)
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// The Store methods are written once, against this interface, and work
// both inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements repository.Store over a querier.
type store struct {
	q querier
}

// DB wraps a sql.DB connection pool. Reads outside a transaction go
// through the embedded store directly; mutations go through InTx.
type DB struct {
	store
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pool connection to ":memory:" opens a distinct database, so
	// in-memory use (tests) must be pinned to a single connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{store: store{q: conn}, conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InTx runs fn inside a single transaction. fn receives a Store bound
// to that transaction; any error rolls everything back.
func (db *DB) InTx(ctx context.Context, fn func(repository.Store) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&store{q: tx}); err != nil {
		// Rollback error is secondary; the caller's error wins.
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS instances (
			address    TEXT PRIMARY KEY,
			code_hash  TEXT NOT NULL,
			deployer   TEXT NOT NULL,
			salt       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating instances table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS instance_state (
			address TEXT NOT NULL REFERENCES instances(address),
			key     TEXT NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (address, key)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating instance_state table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			instance   TEXT NOT NULL,
			topic      TEXT NOT NULL,
			action     TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			emitted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_instance ON events(instance, id);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	return nil
}
