// Package provision ensures records exist with desired field values.
//
// The Provisioner applies one RecordSpec at a time against a Backend:
// look the record up, update it if found, insert it if not. Re-running the
// same specs converges to the same field values and never duplicates a
// record whose lookup already matches.
//
// A Session scopes a sequence of specs to one backend transaction. It is
// opened before the first spec, committed when nothing went wrong, and
// rolled back otherwise. Per-record failures are returned as Failed
// outcomes and never abort the session; each failed record's partial
// writes are undone with a savepoint when the backend supports them.
//
//	summary, err := provision.WithSession(ctx, opener, opts,
//	    func(ctx context.Context, s *provision.Session) error {
//	        s.Run(ctx, specs)
//	        return nil
//	    })
//
// Sessions are single-threaded: one session holds one backend for its
// lifetime and is not safe for concurrent use.
package provision
