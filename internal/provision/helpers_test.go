package provision

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/schema"
	"github.com/roach88/erpseed/internal/store"
	"github.com/roach88/erpseed/internal/testutil"
)

var testNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

// newTestStore opens a SQLite store in a temp dir.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "site.db"),
		store.WithSite("galaxy.local"),
		store.WithNow(testutil.NewStepClock(testNow, time.Second).Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// testOptions returns session options with the built-in schema and
// deterministic session ids.
func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Schema: schema.MustNew(),
		IDs:    testutil.SequentialIDs("test-session", 10),
	}
}

func company(name, abbr string) ir.RecordSpec {
	return ir.RecordSpec{
		Kind:   "Company",
		Lookup: ir.NewFields(ir.F("company_name", ir.Str(name))),
		Desired: ir.NewFields(
			ir.F("abbr", ir.Str(abbr)),
			ir.F("default_currency", ir.Str("EUR")),
			ir.F("country", ir.Str("Spain")),
		),
	}
}

// runSpecs applies specs in one committed-unless-fatal session.
func runSpecs(t *testing.T, st *store.Store, opts Options, specs ...ir.RecordSpec) Summary {
	t.Helper()
	summary, err := WithSession(context.Background(), StoreOpener(st), opts,
		func(ctx context.Context, s *Session) error {
			s.Run(ctx, specs)
			return nil
		})
	require.NoError(t, err)
	return summary
}

// memBackend is an in-memory Backend with failure injection.
type memBackend struct {
	records    map[int64]ir.Record
	nextID     int64
	seq        int64
	savepoints map[string]map[int64]ir.Record
	calls      []string

	failInsert map[string]error // kind -> error
	failCommit error

	committed  bool
	rolledBack bool
}

func newMemBackend() *memBackend {
	return &memBackend{
		records:    make(map[int64]ir.Record),
		savepoints: make(map[string]map[int64]ir.Record),
		failInsert: make(map[string]error),
	}
}

func (m *memBackend) Exists(_ context.Context, kind string, filters ir.Fields) (int64, bool, error) {
	var ids []int64
	for id, rec := range m.records {
		if rec.Kind == kind && rec.Fields.Matches(filters) {
			ids = append(ids, id)
		}
	}
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return 0, false, store.ErrAmbiguous
	}
}

func (m *memBackend) Get(_ context.Context, kind string, id int64) (ir.Record, error) {
	rec, ok := m.records[id]
	if !ok || rec.Kind != kind {
		return ir.Record{}, store.ErrNotFound
	}
	rec.Fields = rec.Fields.Clone()
	return rec, nil
}

func (m *memBackend) Insert(_ context.Context, rec ir.Record) (ir.Record, error) {
	m.calls = append(m.calls, "insert "+rec.Kind)
	if err := m.failInsert[rec.Kind]; err != nil {
		return ir.Record{}, err
	}
	if rec.Key != "" {
		for _, other := range m.records {
			if other.Kind == rec.Kind && other.Key == rec.Key {
				return ir.Record{}, fmt.Errorf("insert: %w", store.ErrDuplicate)
			}
		}
	}
	m.nextID++
	m.seq++
	rec.ID = m.nextID
	rec.Seq = m.seq
	rec.Fields = rec.Fields.Clone()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memBackend) Update(_ context.Context, rec ir.Record, fields ir.Fields) (ir.Record, error) {
	m.calls = append(m.calls, "update "+rec.Kind)
	if _, ok := m.records[rec.ID]; !ok {
		return ir.Record{}, store.ErrNotFound
	}
	m.seq++
	rec.Seq = m.seq
	rec.Fields = fields.Clone()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memBackend) Savepoint(_ context.Context, name string) error {
	m.calls = append(m.calls, "savepoint "+name)
	m.savepoints[name] = maps.Clone(m.records)
	return nil
}

func (m *memBackend) Release(_ context.Context, name string) error {
	m.calls = append(m.calls, "release "+name)
	delete(m.savepoints, name)
	return nil
}

func (m *memBackend) RollbackTo(_ context.Context, name string) error {
	m.calls = append(m.calls, "rollback_to "+name)
	saved, ok := m.savepoints[name]
	if !ok {
		return errors.New("no such savepoint")
	}
	m.records = saved
	delete(m.savepoints, name)
	return nil
}

func (m *memBackend) Commit() error {
	if m.failCommit != nil {
		return m.failCommit
	}
	m.committed = true
	return nil
}

func (m *memBackend) Rollback() error {
	m.rolledBack = true
	return nil
}

// memOpener opens a session on m, or fails with err.
func memOpener(m *memBackend, err error) Opener {
	return OpenerFunc(func(context.Context, string) (Backend, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}
