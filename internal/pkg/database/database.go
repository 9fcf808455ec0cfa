package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	apperror "stockledger/internal/errors"
)

// Dialect identifies the relational backend behind the gateway.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ForUpdate returns the row lock clause appended to a SELECT inside a transaction.
// SQLite locks the whole database for a write transaction, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// Contains returns a case-sensitive "column contains placeholder" predicate.
func (d Dialect) Contains(column, placeholder string) string {
	if d == Postgres {
		return fmt.Sprintf("strpos(%s, %s) > 0", column, placeholder)
	}
	return fmt.Sprintf("instr(%s, %s) > 0", column, placeholder)
}

// Querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway owns the connection pool and hands out scoped connections and transactions.
// It is built once at startup and shared by every repository.
type Gateway struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

// Open connects to DATABASE_URL. postgres:// and postgresql:// URLs use lib/pq;
// sqlite://<path> (or sqlite://:memory:) uses go-sqlite3.
func Open(databaseURL string, timeout time.Duration) (*Gateway, error) {
	dialect, driverName, dsn, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	configurePool(db, dialect)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed initial database ping: %w", err)
	}

	return &Gateway{db: db, dialect: dialect, timeout: timeout}, nil
}

func parseURL(databaseURL string) (Dialect, string, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, "postgres", databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", "", fmt.Errorf("sqlite URL %q has no path", databaseURL)
		}
		if path == ":memory:" {
			return SQLite, "sqlite3", "file::memory:?_txlock=immediate", nil
		}
		return SQLite, "sqlite3", "file:" + path + "?_busy_timeout=5000&_txlock=immediate", nil
	}
	return "", "", "", fmt.Errorf("unsupported database URL %q: expected postgres:// or sqlite://", databaseURL)
}

func configurePool(db *sql.DB, dialect Dialect) {
	if dialect == SQLite {
		// One writer at a time; also keeps a :memory: database alive for the pool's lifetime.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)
}

// Dialect returns the backend flavour, used by repositories for the few SQL differences.
func (g *Gateway) Dialect() Dialect {
	return g.dialect
}

// DB exposes the pool for migrations and health checks.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Close releases the pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ping checks the backend is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *Gateway) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// WithConn runs fn against the pool under the configured timeout.
func (g *Gateway) WithConn(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	ctx, cancel := g.scoped(ctx)
	defer cancel()
	return fn(ctx, g.db)
}

// WithTx runs fn inside a transaction. The transaction commits when fn returns nil and
// rolls back on error or panic. fn must only use the Querier it receives.
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return g.runTx(ctx, nil, fn)
}

// WithSnapshot runs read-only fn so every statement sees the same committed state.
// Postgres needs REPEATABLE READ for that; a SQLite transaction already holds the lock.
func (g *Gateway) WithSnapshot(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	var opts *sql.TxOptions
	if g.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return g.runTx(ctx, opts, fn)
}

func (g *Gateway) runTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q Querier) error) (err error) {
	ctx, cancel := g.scoped(ctx)
	defer cancel()

	tx, err := g.db.BeginTx(ctx, opts)
	if err != nil {
		return apperror.NewDBError("failed to start transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperror.NewDBError("failed to commit transaction", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure on either backend.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
