package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/licensed/internal/connector"
)

// MySQL server error numbers.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// MySQLConnector implements connector.Connector for MySQL databases. It is
// compatible with the schema created by earlier PHP deployments of the
// license server.
type MySQLConnector struct {
	db *sqlx.DB
}

// New creates a new MySQLConnector.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database using the provided
// configuration. The DSN must carry parseTime=true; SanitizeDSN adds it.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	connector.ApplyPool(db, cfg)
	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// BoolLiteral renders booleans as TINYINT values.
func (c *MySQLConnector) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// LockClause takes an exclusive row lock for the rest of the transaction.
func (c *MySQLConnector) LockClause() string { return "FOR UPDATE" }

// TableHint is empty for MySQL.
func (c *MySQLConnector) TableHint() string { return "" }

// Paginate renders LIMIT/OFFSET.
func (c *MySQLConnector) Paginate(limit, offset int) string {
	return connector.LimitOffset(limit, offset)
}

// InsertCodeQuery returns a plain insert. InnoDB rolls back only the failing
// statement on a duplicate key, so the batch transaction stays usable.
func (c *MySQLConnector) InsertCodeQuery() string {
	return `INSERT INTO activation_codes (code, license_type, duration, is_used, created_at)
		VALUES (?, ?, ?, 0, ?)`
}

// TxOptions selects READ COMMITTED so a blocked activation sees the winner's
// binding once the code row lock is released.
func (c *MySQLConnector) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// IsUniqueViolation reports whether err is a duplicate key error.
func (c *MySQLConnector) IsUniqueViolation(err error) bool {
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// IsTransient reports whether err is a deadlock or lock wait timeout.
func (c *MySQLConnector) IsTransient(err error) bool {
	var me *mysqldriver.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errLockDeadlock || me.Number == errLockWaitTimeout
}
