// Package storetest opens throwaway license stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/faucetdb/licensed/internal/connector"
	"github.com/faucetdb/licensed/internal/connector/sqlite"
	"github.com/faucetdb/licensed/internal/store"
)

// New returns a migrated store on a private in-memory SQLite database. The
// store is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	return Open(t, ":memory:?_time_format=sqlite&_txlock=immediate")
}

// FileDSN returns the DSN of a WAL-mode SQLite file in a temporary
// directory. Stores opened on it share one database, like separate
// processes would.
func FileDSN(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "licensed.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite&_txlock=immediate"
}

// Open returns a migrated SQLite store on dsn, closed when the test ends.
func Open(t testing.TB, dsn string) *store.Store {
	t.Helper()
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: dsn}); err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	s := store.New(conn)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
