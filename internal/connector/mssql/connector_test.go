package mssql

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"
)

func TestErrorClassification(t *testing.T) {
	c := New()

	if !c.IsUniqueViolation(mssql.Error{Number: 2627}) {
		t.Error("2627 should be a unique violation")
	}
	if !c.IsUniqueViolation(fmt.Errorf("insert: %w", mssql.Error{Number: 2601})) {
		t.Error("wrapped 2601 should be a unique violation")
	}
	if !c.IsTransient(mssql.Error{Number: 1205}) {
		t.Error("1205 should be transient")
	}
	if c.IsTransient(mssql.Error{Number: 547}) {
		t.Error("547 should not be transient")
	}
	if c.IsUniqueViolation(errors.New("boom")) {
		t.Error("plain errors should not be classified")
	}
}

func TestDialectFragments(t *testing.T) {
	c := New()
	if got := c.Paginate(10, 20); got != "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY" {
		t.Errorf("Paginate = %q", got)
	}
	if !strings.Contains(c.TableHint(), "UPDLOCK") {
		t.Errorf("TableHint = %q, want UPDLOCK", c.TableHint())
	}
	if c.LockClause() != "" {
		t.Errorf("LockClause = %q, want empty", c.LockClause())
	}
}

func TestMigrationsGuarded(t *testing.T) {
	for _, m := range New().Migrations() {
		if !strings.HasPrefix(strings.TrimSpace(m), "IF ") {
			t.Errorf("migration is not guarded: %s", m)
		}
	}
}
