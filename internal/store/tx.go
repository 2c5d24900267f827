package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/erpseed/internal/ir"
)

// Session journal statuses.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type counters struct {
	created int
	updated int
}

// Tx is one provisioning session's transaction. All reads and writes go
// through it; nothing is visible to other connections until Commit.
//
// Tx is not safe for concurrent use.
type Tx struct {
	store     *Store
	tx        *sql.Tx
	sessionID string
	clock     *Clock
	seqStart  int64
	startedAt time.Time

	counts     counters
	savepoints map[string]counters
	done       bool
}

// Begin starts a transaction for the given session id.
func (s *Store) Begin(ctx context.Context, sessionID string) (*Tx, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("begin: session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	start, err := maxSeq(ctx, tx)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{
		store:      s,
		tx:         tx,
		sessionID:  sessionID,
		clock:      NewClockAt(start),
		seqStart:   start,
		startedAt:  s.now().UTC(),
		savepoints: make(map[string]counters),
	}, nil
}

// SessionID returns the session id the transaction was started with.
func (t *Tx) SessionID() string {
	return t.sessionID
}

// Exists returns the id of the single record of kind matching every
// filter. Returns ErrAmbiguous when more than one record matches.
func (t *Tx) Exists(ctx context.Context, kind string, filters ir.Fields) (int64, bool, error) {
	if t.done {
		return 0, false, ErrTxDone
	}

	where, args, err := buildFilter(kind, filters)
	if err != nil {
		return 0, false, fmt.Errorf("exists: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM records WHERE `+where+` ORDER BY seq ASC, id ASC LIMIT 2`,
		args...)
	if err != nil {
		return 0, false, fmt.Errorf("exists: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, fmt.Errorf("exists: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("exists: iterate: %w", err)
	}

	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return 0, false, fmt.Errorf("%s %s: %w", kind, describeFilters(filters), ErrAmbiguous)
	}
}

// Get loads a record of kind by id. Returns ErrNotFound if absent.
func (t *Tx) Get(ctx context.Context, kind string, id int64) (ir.Record, error) {
	if t.done {
		return ir.Record{}, ErrTxDone
	}
	return getRecord(ctx, t.tx, kind, id)
}

// Insert stores a new record and returns it with id and seq assigned.
// Returns ErrDuplicate if another record of the kind holds rec.Key.
func (t *Tx) Insert(ctx context.Context, rec ir.Record) (ir.Record, error) {
	if t.done {
		return ir.Record{}, ErrTxDone
	}

	fieldsJSON, err := marshalFields(rec.Fields)
	if err != nil {
		return ir.Record{}, fmt.Errorf("insert %s: %w", rec.Kind, err)
	}

	seq := t.clock.Next()
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO records (kind, key_hash, fields, seq, created_session, updated_session)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Kind, keyParam(rec.Key), fieldsJSON, seq, t.sessionID, t.sessionID)
	if err != nil {
		return ir.Record{}, fmt.Errorf("insert %s: %w", rec.Kind, mapConstraint(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return ir.Record{}, fmt.Errorf("insert %s: last insert id: %w", rec.Kind, err)
	}

	t.counts.created++
	return ir.Record{
		ID:     id,
		Kind:   rec.Kind,
		Key:    rec.Key,
		Fields: rec.Fields.Clone(),
		Seq:    seq,
	}, nil
}

// Update replaces the fields of the record identified by rec.ID and
// rec.Kind. rec.Key is stored as the record's new natural key. Returns
// ErrNotFound if the record does not exist.
func (t *Tx) Update(ctx context.Context, rec ir.Record, fields ir.Fields) (ir.Record, error) {
	if t.done {
		return ir.Record{}, ErrTxDone
	}

	fieldsJSON, err := marshalFields(fields)
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s %d: %w", rec.Kind, rec.ID, err)
	}

	seq := t.clock.Next()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE records
		SET key_hash = ?, fields = ?, seq = ?, updated_session = ?
		WHERE id = ? AND kind = ?
	`, keyParam(rec.Key), fieldsJSON, seq, t.sessionID, rec.ID, rec.Kind)
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s %d: %w", rec.Kind, rec.ID, mapConstraint(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s %d: rows affected: %w", rec.Kind, rec.ID, err)
	}
	if n == 0 {
		return ir.Record{}, fmt.Errorf("update %s %d: %w", rec.Kind, rec.ID, ErrNotFound)
	}

	t.counts.updated++
	return ir.Record{
		ID:     rec.ID,
		Kind:   rec.Kind,
		Key:    rec.Key,
		Fields: fields.Clone(),
		Seq:    seq,
	}, nil
}

// Savepoint opens a named savepoint inside the transaction.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	t.savepoints[name] = t.counts
	return nil
}

// Release keeps the work done since the named savepoint.
func (t *Tx) Release(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	delete(t.savepoints, name)
	return nil
}

// RollbackTo undoes the work done since the named savepoint and
// releases it.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return fmt.Errorf("rollback to %s: %w", name, err)
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	if saved, ok := t.savepoints[name]; ok {
		t.counts = saved
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) checkSavepoint(name string) error {
	if t.done {
		return ErrTxDone
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	return nil
}

// Commit journals the session as committed and commits the transaction.
// The journal row is part of the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if err := t.journal(context.Background(), t.tx, StatusCommitted, t.counts); err != nil {
		t.tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction, then journals the session as
// rolled back.
func (t *Tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	// A cancelled context already rolled the transaction back.
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}

	if err := t.journal(context.Background(), t.store.db, StatusRolledBack, counters{}); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (t *Tx) journal(ctx context.Context, db execer, status string, c counters) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, site, status, seq_start, seq_end, created, updated, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.sessionID,
		t.store.site,
		status,
		t.seqStart,
		t.clock.Current(),
		c.created,
		c.updated,
		t.startedAt.Format(time.RFC3339Nano),
		t.store.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal session %s: %w", t.sessionID, mapConstraint(err))
	}
	return nil
}

// mapConstraint translates SQLite constraint errors to store sentinels.
func mapConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %v", ErrConstraint, err)
}

func describeFilters(filters ir.Fields) string {
	return ir.RecordSpec{Lookup: filters}.Label()
}

func getRecord(ctx context.Context, q querier, kind string, id int64) (ir.Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ? AND kind = ?`,
		id, kind)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return ir.Record{}, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	return rec, nil
}
