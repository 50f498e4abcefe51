package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/faucetdb/licensed/internal/connector"
)

// SQL Server error numbers.
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
	errDeadlockVictim   = 1205
	errLockTimeout      = 1222
)

// MSSQLConnector implements connector.Connector for SQL Server databases.
type MSSQLConnector struct {
	db *sqlx.DB
}

// New creates a new MSSQLConnector.
func New() connector.Connector {
	return &MSSQLConnector{}
}

// Connect establishes a connection to the SQL Server database using the
// provided configuration.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlserver", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
	}
	connector.ApplyPool(db, cfg)
	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQL Server.
func (c *MSSQLConnector) DriverName() string { return "mssql" }

// BoolLiteral renders BIT values.
func (c *MSSQLConnector) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// LockClause is empty; SQL Server takes row locks through TableHint.
func (c *MSSQLConnector) LockClause() string { return "" }

// TableHint holds an update lock on the selected row until commit.
func (c *MSSQLConnector) TableHint() string { return "WITH (UPDLOCK, ROWLOCK)" }

// Paginate renders OFFSET/FETCH; the query must carry an ORDER BY.
func (c *MSSQLConnector) Paginate(limit, offset int) string {
	return "OFFSET " + connector.Itoa(offset) + " ROWS FETCH NEXT " + connector.Itoa(limit) + " ROWS ONLY"
}

// InsertCodeQuery returns a plain insert. Without XACT_ABORT a duplicate key
// only fails the statement.
func (c *MSSQLConnector) InsertCodeQuery() string {
	return `INSERT INTO activation_codes (code, license_type, duration, is_used, created_at)
		VALUES (?, ?, ?, 0, ?)`
}

// TxOptions returns nil; the server default READ COMMITTED applies.
func (c *MSSQLConnector) TxOptions() *sql.TxOptions { return nil }

// IsUniqueViolation reports whether err is a unique constraint or unique
// index violation.
func (c *MSSQLConnector) IsUniqueViolation(err error) bool {
	var me mssql.Error
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errUniqueConstraint || me.Number == errUniqueIndex
}

// IsTransient reports whether err is a deadlock or lock timeout.
func (c *MSSQLConnector) IsTransient(err error) bool {
	var me mssql.Error
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlockVictim || me.Number == errLockTimeout
}
