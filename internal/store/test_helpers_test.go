package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/erpseed/internal/ir"
)

var testNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithSite("galaxy.local"), WithNow(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestTx starts a transaction and rolls it back on cleanup if the
// test did not finish it.
func beginTestTx(t *testing.T, s *Store, sessionID string) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	t.Cleanup(func() {
		if !tx.done {
			tx.Rollback()
		}
	})
	return tx
}

// companyRecord builds a Company record keyed by name.
func companyRecord(t *testing.T, name, abbr string) ir.Record {
	t.Helper()
	fields := ir.NewFields(
		ir.F("company_name", ir.Str(name)),
		ir.F("abbr", ir.Str(abbr)),
	)
	return ir.Record{
		Kind:   "Company",
		Key:    ir.MustNaturalKey("Company", []string{"company_name"}, fields),
		Fields: fields,
	}
}

// seedCompany inserts and commits one company.
func seedCompany(t *testing.T, s *Store, sessionID, name, abbr string) ir.Record {
	t.Helper()
	tx := beginTestTx(t, s, sessionID)
	rec, err := tx.Insert(context.Background(), companyRecord(t, name, abbr))
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return rec
}
