// Package taskstore is the Store of spec.md §4.1: a durable embedded
// relational store holding all coordination state, reachable from any
// process on the host that opens the same file.
package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// TxMode selects the transaction isolation the claim protocol depends on.
type TxMode int

const (
	// TxDeferred opens a plain BEGIN; used for read-mostly or single-row
	// writes where no other writer can race the caller's logic.
	TxDeferred TxMode = iota
	// TxExclusive opens BEGIN IMMEDIATE, which SQLite grants a reserved
	// write lock for immediately — nothing else can start a concurrent
	// write transaction for the duration. This is what makes ClaimTask's
	// select-then-update atomic across OS processes, per spec.md §4.2.
	TxExclusive
)

// Store is a handle on the shared SQLite file. It is safe for concurrent
// use by multiple goroutines; database/sql's own pool stands in for the
// "thread-local connection per caller" model of the source system (spec.md
// §9, "From thread-local database handles to a connection pool").
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open creates the file if it does not already exist, applies the schema
// (idempotently — every statement is CREATE ... IF NOT EXISTS), and returns
// a ready Store. path may be ":memory:" for tests, though that forfeits
// cross-process sharing.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{
		"_busy_timeout": {"30000"},
		"_journal_mode": {"WAL"},
		"_foreign_keys": {"true"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	// SQLite serializes writers at the file level regardless of how many
	// connections this process holds; keeping the pool small avoids
	// thrashing on the busy-timeout lock under our own concurrent callers.
	db.SetMaxOpenConns(8)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema to %q: %w", path, err)
	}

	return &Store{db: db, log: logrus.WithField("component", "store")}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw *sql.DB for packages (queue) that need to prepare and
// run arbitrary statements outside a transaction.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Exec is a thin wrapper kept for symmetry with spec.md's "Handle.exec/query";
// most callers use DB() or WithTx directly.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Query is the read counterpart of Exec.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Tx is the subset of *sql.Tx (and *sql.Conn) that queue operations need to
// run statements inside either transaction mode without caring which one
// they got.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction of the given mode, committing on a
// nil return and rolling back otherwise. mode=TxExclusive is what the claim
// protocol (spec.md §4.2 "claim_task") and any other select-then-mutate
// sequence that must not race another writer should use.
func (s *Store) WithTx(ctx context.Context, mode TxMode, fn func(tx Tx) error) error {
	if mode == TxExclusive {
		// database/sql has no "begin with mode" API, and a *sql.Tx always
		// issues a bare BEGIN itself, so there is no way to get it to open
		// with IMMEDIATE. Instead we pin a connection and drive BEGIN
		// IMMEDIATE/COMMIT/ROLLBACK as plain statements on it, holding the
		// reserved write lock for the whole select-then-update sequence.
		return s.exclusiveTx(ctx, fn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// exclusiveTx runs fn under BEGIN IMMEDIATE on a single pinned connection.
func (s *Store) exclusiveTx(ctx context.Context, fn func(tx Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}
	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Now returns the current wall-clock time. Exists so queue package code
// never calls time.Now() directly, making Clock injection for stale-sweep
// tests (spec.md §9, "a monotonic clock and a clear second-granularity
// comparison") a one-line swap.
func Now() time.Time { return time.Now().UTC() }
