package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/faucetdb/licensed/internal/connector"
)

// SQLiteConnector implements connector.Connector for SQLite databases.
type SQLiteConnector struct {
	db *sqlx.DB
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{}
}

// Connect opens the SQLite database file specified in the DSN. The DSN is a
// file path (e.g., "/path/to/licensed.db") or ":memory:", optionally with
// modernc pragmas such as ?_pragma=busy_timeout(5000).
//
// Within a process the pool is pinned to one connection that is never
// recycled, which also keeps an in-memory database alive. Other processes
// (an offline CLI command next to a running server) may open the same file,
// so transactions begin IMMEDIATE: the write lock is taken at BEGIN, where
// busy_timeout applies, instead of failing a deferred upgrade mid-transaction.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlite", withTxLock(cfg.DSN))
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	c.db = db
	return nil
}

// withTxLock adds _txlock=immediate to dsn unless it names a lock mode.
func withTxLock(dsn string) string {
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate"
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// BoolLiteral renders booleans as integers; SQLite has no boolean type.
func (c *SQLiteConnector) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// LockClause is empty: every transaction already holds the database write
// lock from BEGIN IMMEDIATE.
func (c *SQLiteConnector) LockClause() string { return "" }

// TableHint is empty for SQLite.
func (c *SQLiteConnector) TableHint() string { return "" }

// Paginate renders LIMIT/OFFSET.
func (c *SQLiteConnector) Paginate(limit, offset int) string {
	return connector.LimitOffset(limit, offset)
}

// InsertCodeQuery returns a plain insert; a duplicate surfaces as a unique
// violation that leaves the transaction usable.
func (c *SQLiteConnector) InsertCodeQuery() string {
	return `INSERT INTO activation_codes (code, license_type, duration, is_used, created_at)
		VALUES (?, ?, ?, 0, ?)`
}

// TxOptions returns nil; the lock mode comes from the _txlock DSN parameter.
func (c *SQLiteConnector) TxOptions() *sql.TxOptions { return nil }

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func (c *SQLiteConnector) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// IsTransient reports whether err is a busy or locked database error that
// may succeed on retry.
func (c *SQLiteConnector) IsTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
