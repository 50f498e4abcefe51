package connector

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
)

// mockConnector implements Connector for testing without a real database.
type mockConnector struct {
	connected    bool
	disconnected bool
	cfg          ConnectionConfig
}

func (m *mockConnector) Connect(cfg ConnectionConfig) error {
	if cfg.DSN == "fail" {
		return fmt.Errorf("mock connect failure")
	}
	m.connected = true
	m.cfg = cfg
	return nil
}
func (m *mockConnector) Disconnect() error {
	m.disconnected = true
	m.connected = false
	return nil
}
func (m *mockConnector) Ping(_ context.Context) error      { return nil }
func (m *mockConnector) DB() *sqlx.DB                      { return nil }
func (m *mockConnector) Migrations() []string              { return nil }
func (m *mockConnector) BoolLiteral(v bool) string         { return fmt.Sprint(v) }
func (m *mockConnector) LockClause() string                { return "" }
func (m *mockConnector) TableHint() string                 { return "" }
func (m *mockConnector) Paginate(limit, offset int) string { return LimitOffset(limit, offset) }
func (m *mockConnector) InsertCodeQuery() string           { return "" }
func (m *mockConnector) TxOptions() *sql.TxOptions         { return nil }
func (m *mockConnector) IsUniqueViolation(_ error) bool    { return false }
func (m *mockConnector) IsTransient(_ error) bool          { return false }
func (m *mockConnector) DriverName() string                { return "mock" }

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if len(r.Drivers()) != 0 {
		t.Error("new registry should have no drivers")
	}
}

func TestRegisterDriver(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("mock", func() Connector { return &mockConnector{} })
	r.RegisterDriver("alpha", func() Connector { return &mockConnector{} })

	drivers := r.Drivers()
	if len(drivers) != 2 || drivers[0] != "alpha" || drivers[1] != "mock" {
		t.Errorf("Drivers() = %v, want [alpha mock]", drivers)
	}
}

func TestOpen(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("mock", func() Connector { return &mockConnector{} })

	conn, err := r.Open(ConnectionConfig{Driver: "mock", DSN: "test-dsn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mc := conn.(*mockConnector)
	if !mc.connected {
		t.Error("connector should be connected")
	}
	if mc.cfg.DSN != "test-dsn" {
		t.Errorf("expected DSN test-dsn, got %s", mc.cfg.DSN)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Open(ConnectionConfig{Driver: "unknown"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenFailure(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("mock", func() Connector { return &mockConnector{} })

	if _, err := r.Open(ConnectionConfig{Driver: "mock", DSN: "fail"}); err == nil {
		t.Fatal("expected error for connection failure")
	}
}
