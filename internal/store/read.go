package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/erpseed/internal/ir"
)

// Session is one row of the session journal.
type Session struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	Status     string    `json:"status"`
	SeqStart   int64     `json:"seq_start"`
	SeqEnd     int64     `json:"seq_end"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// KindCount is the number of stored records of one kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// List returns committed records of kind matching every filter.
// Results are ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, kind string, filters ir.Fields) ([]ir.Record, error) {
	where, args, err := buildFilter(kind, filters)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE `+where+` ORDER BY seq ASC, id ASC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: iterate: %w", kind, err)
	}

	return records, nil
}

// Get loads a committed record of kind by id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, kind string, id int64) (ir.Record, error) {
	return getRecord(ctx, s.db, kind, id)
}

// Count returns the number of committed records of kind. An empty kind
// counts every record.
func (s *Store) Count(ctx context.Context, kind string) (int, error) {
	query := `SELECT COUNT(*) FROM records`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Kinds returns per-kind record counts ordered by kind.
func (s *Store) Kinds(ctx context.Context) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM records
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query kinds: %w", err)
	}
	defer rows.Close()

	counts := []KindCount{}
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		counts = append(counts, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kinds: %w", err)
	}
	return counts, nil
}

// Sessions returns the session journal in the order sessions finished.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site, status, seq_start, seq_end, created, updated, started_at, finished_at
		FROM sessions
		ORDER BY seq_end ASC, finished_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var started, finished string
		if err := rows.Scan(
			&sess.ID, &sess.Site, &sess.Status, &sess.SeqStart, &sess.SeqEnd,
			&sess.Created, &sess.Updated, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("session %s: started_at: %w", sess.ID, err)
		}
		if sess.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("session %s: finished_at: %w", sess.ID, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
