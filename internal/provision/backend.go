package provision

import (
	"context"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/schema"
	"github.com/roach88/erpseed/internal/store"
)

// Backend is the transactional record store a session writes through.
//
// Errors follow the store package sentinels: Exists wraps
// store.ErrAmbiguous when more than one record matches, Get and Update
// wrap store.ErrNotFound, Insert wraps store.ErrDuplicate when another
// record of the kind already holds the natural key.
type Backend interface {
	Exists(ctx context.Context, kind string, filters ir.Fields) (id int64, found bool, err error)
	Get(ctx context.Context, kind string, id int64) (ir.Record, error)
	Insert(ctx context.Context, rec ir.Record) (ir.Record, error)
	Update(ctx context.Context, rec ir.Record, fields ir.Fields) (ir.Record, error)
	Commit() error
	Rollback() error
}

// Savepointer is implemented by backends that support nested savepoints.
// When available, each record is applied inside its own savepoint.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
}

// Opener begins a backend transaction for a session.
type Opener interface {
	Begin(ctx context.Context, sessionID string) (Backend, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, sessionID string) (Backend, error)

// Begin calls f(ctx, sessionID).
func (f OpenerFunc) Begin(ctx context.Context, sessionID string) (Backend, error) {
	return f(ctx, sessionID)
}

// Schema validates record bodies and describes kinds.
// *schema.Registry implements it.
type Schema interface {
	Validate(kind string, fields ir.Fields) error
	Lookup(kind string) (*schema.Kind, bool)
}

// IDGenerator produces session ids.
type IDGenerator interface {
	Generate() string
}

// StoreOpener opens sessions on a SQLite store.
func StoreOpener(st *store.Store) Opener {
	return OpenerFunc(func(ctx context.Context, sessionID string) (Backend, error) {
		tx, err := st.Begin(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return tx, nil
	})
}
