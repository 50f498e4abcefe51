package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/licensed/internal/connector"
)

// SQLSTATE codes.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
type PostgresConnector struct {
	db *sqlx.DB
}

// New creates a new PostgresConnector.
func New() connector.Connector {
	return &PostgresConnector{}
}

// Connect establishes a connection to the PostgreSQL database through the
// pgx stdlib driver.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	connector.ApplyPool(db, cfg)
	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }

// BoolLiteral renders native boolean literals.
func (c *PostgresConnector) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// LockClause takes an exclusive row lock for the rest of the transaction.
func (c *PostgresConnector) LockClause() string { return "FOR UPDATE" }

// TableHint is empty for PostgreSQL.
func (c *PostgresConnector) TableHint() string { return "" }

// Paginate renders LIMIT/OFFSET.
func (c *PostgresConnector) Paginate(limit, offset int) string {
	return connector.LimitOffset(limit, offset)
}

// InsertCodeQuery skips duplicates instead of raising: any error aborts a
// PostgreSQL transaction, so a collision is reported as zero rows affected.
func (c *PostgresConnector) InsertCodeQuery() string {
	return `INSERT INTO activation_codes (code, license_type, duration, is_used, created_at)
		VALUES (?, ?, ?, FALSE, ?)
		ON CONFLICT (code) DO NOTHING`
}

// TxOptions selects READ COMMITTED so a blocked activation sees the winner's
// binding once the code row lock is released.
func (c *PostgresConnector) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func (c *PostgresConnector) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsTransient reports whether err is a serialization failure, deadlock or
// lock timeout.
func (c *PostgresConnector) IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}
