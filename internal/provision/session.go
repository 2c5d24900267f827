package provision

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/erpseed/internal/ir"
)

// Options configures a session.
type Options struct {
	// Schema validates records. Nil disables validation and natural keys.
	Schema Schema

	// AbortOnFailure rolls the whole session back if any record fails.
	AbortOnFailure bool

	// IDs generates the session id. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Logger receives per-record and session logs. Nil discards them.
	Logger *slog.Logger
}

// Session is an ordered application of RecordSpecs scoped to one backend
// transaction.
//
// Thread-safety: Session is not safe for concurrent use.
type Session struct {
	id        string
	backend   Backend
	prov      *Provisioner
	logger    *slog.Logger
	outcomes  []Outcome
	closed    bool
	committed bool
}

// Open begins a session. Failure to begin the backend transaction is a
// KindSetup error; nothing has been written.
func Open(ctx context.Context, opener Opener, opts Options) (*Session, error) {
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	id := ids.Generate()
	logger = logger.With("session", id)

	if opener == nil {
		return nil, newError(KindSetup, "", "no backend configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(KindSetup, "", "begin session", err)
	}

	backend, err := opener.Begin(ctx, id)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		return nil, newError(KindSetup, "", "begin session", err)
	}

	logger.Debug("session opened")
	return &Session{
		id:      id,
		backend: backend,
		prov:    New(opts.Schema, logger),
		logger:  logger,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Ensure applies one spec and records its outcome.
func (s *Session) Ensure(ctx context.Context, spec ir.RecordSpec) (ir.Record, Outcome) {
	index := len(s.outcomes)
	if s.closed {
		out := Outcome{
			Index:  index,
			Status: StatusFailed,
			Kind:   spec.Kind,
			Label:  spec.Label(),
			Err:    newError(KindStore, spec.Label(), "", ErrSessionClosed),
		}
		s.outcomes = append(s.outcomes, out)
		return ir.Record{}, out
	}

	rec, out := s.prov.Ensure(ctx, s.backend, index, spec)
	s.outcomes = append(s.outcomes, out)
	return rec, out
}

// Run applies specs in order and returns one outcome per spec. A failed
// spec does not stop the ones after it.
func (s *Session) Run(ctx context.Context, specs []ir.RecordSpec) []Outcome {
	outcomes := make([]Outcome, 0, len(specs))
	for _, spec := range specs {
		_, out := s.Ensure(ctx, spec)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Outcomes returns every outcome recorded so far, in order.
func (s *Session) Outcomes() []Outcome {
	return append([]Outcome{}, s.outcomes...)
}

// Failed reports whether any recorded outcome failed.
func (s *Session) Failed() bool {
	for _, o := range s.outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// Close commits the session when hadError is false and rolls it back
// otherwise. Close must be called exactly once; later calls return
// ErrSessionClosed.
func (s *Session) Close(hadError bool) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	if hadError {
		if err := s.backend.Rollback(); err != nil {
			s.logger.Error("session rollback failed", "error", err)
			return newError(KindStore, "", "rollback", err)
		}
		s.logger.Info("session rolled back", "records", len(s.outcomes))
		return nil
	}

	if err := s.backend.Commit(); err != nil {
		s.logger.Error("session commit failed", "error", err)
		_ = s.backend.Rollback()
		return newError(KindStore, "", "commit", err)
	}
	s.committed = true
	s.logger.Info("session committed", "records", len(s.outcomes))
	return nil
}

// Summary reports the session's outcomes and whether it committed.
func (s *Session) Summary() Summary {
	return summarize(s.id, s.committed, s.outcomes)
}

// WithSession opens a session, runs fn, and closes the session on every
// exit path. The session rolls back when fn returns an error or panics,
// when ctx is cancelled, or when opts.AbortOnFailure is set and any
// record failed. A panic in fn is re-raised after the rollback.
func WithSession(ctx context.Context, opener Opener, opts Options, fn func(ctx context.Context, s *Session) error) (Summary, error) {
	sess, err := Open(ctx, opener, opts)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if !sess.closed {
			_ = sess.Close(true)
		}
	}()

	fnErr := fn(ctx, sess)
	if fnErr == nil && ctx.Err() != nil {
		fnErr = newError(KindStore, "", "session cancelled", ctx.Err())
	}

	hadError := fnErr != nil || (opts.AbortOnFailure && sess.Failed())
	if opts.AbortOnFailure && sess.Failed() {
		sess.logger.Warn("record failed with abort-on-failure set, rolling back")
	}

	closeErr := sess.Close(hadError)
	return sess.Summary(), errors.Join(fnErr, closeErr)
}
