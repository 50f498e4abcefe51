package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/licensed/internal/connector"
)

// maxAttempts bounds how many times InTx runs a transaction that failed
// with a transient error.
const maxAttempts = 2

// Store persists activation codes, bindings, admins and API keys on the
// database behind a connector. Reads run on the pool; writes that must be
// atomic go through InTx.
type Store struct {
	queries
	conn connector.Connector
	db   *sqlx.DB
}

// New wraps a connected connector.
func New(conn connector.Connector) *Store {
	db := conn.DB()
	return &Store{
		queries: queries{ext: db, conn: conn},
		conn:    conn,
		db:      db,
	}
}

// Migrate creates the license tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range s.conn.Migrations() {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Disconnect()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.conn.DriverName()
}

// Tx is a store bound to a single database transaction. All queries issued
// through a Tx see and lock the same snapshot.
type Tx struct {
	queries
	tx *sqlx.Tx
}

// InTx runs fn inside a transaction and commits if fn returns nil. A
// transaction that fails with a transient driver error or ErrConflict is
// rolled back and run once more; fn must therefore be safe to repeat.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !s.retryable(err) || ctx.Err() != nil {
			return err
		}
		slog.Debug("retrying transaction", "attempt", attempt, "error", err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, s.conn.TxOptions())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	tx := &Tx{queries: queries{ext: sqlTx, conn: s.conn}, tx: sqlTx}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) retryable(err error) bool {
	return errors.Is(err, ErrConflict) || s.conn.IsTransient(err)
}

// queries holds the SQL shared by Store and Tx. Statements use "?"
// placeholders and are rebound for the driver.
type queries struct {
	ext  sqlx.ExtContext
	conn connector.Connector
}

func (q queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queries) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
}

// execAffected runs query and returns the number of affected rows.
func (q queries) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q queries) lit(v bool) string {
	return q.conn.BoolLiteral(v)
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
