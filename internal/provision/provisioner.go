package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/schema"
	"github.com/roach88/erpseed/internal/store"
)

// Provisioner applies RecordSpecs to a backend.
//
// With a nil Schema, kinds are not validated and records carry no natural
// key, so duplicate detection rests on lookups alone.
type Provisioner struct {
	schema Schema
	logger *slog.Logger
}

// New creates a provisioner. A nil logger discards output.
func New(s Schema, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provisioner{schema: s, logger: logger}
}

// Ensure makes exactly one record of spec.Kind match spec.Lookup with
// spec.Desired applied. index is used for the outcome and the savepoint
// name and must be unique within the backend's transaction.
//
// String values are compared in NFC, so a spec written in decomposed form
// converges on the record it created.
//
// Failures are returned in the Outcome, never as a panic or a broken
// transaction: when the backend supports savepoints, everything the
// failed record wrote is undone.
func (p *Provisioner) Ensure(ctx context.Context, b Backend, index int, spec ir.RecordSpec) (ir.Record, Outcome) {
	spec = spec.Normalize()
	out := Outcome{Index: index, Kind: spec.Kind, Label: spec.Label()}

	kind, perr := p.checkSpec(spec)
	if perr == nil && ctx.Err() != nil {
		perr = newError(KindStore, out.Label, "cancelled", ctx.Err())
	}
	if perr != nil {
		return ir.Record{}, p.fail(out, perr)
	}

	sp, hasSavepoints := b.(Savepointer)
	name := fmt.Sprintf("ensure_%d", index)
	if hasSavepoints {
		if err := sp.Savepoint(ctx, name); err != nil {
			return ir.Record{}, p.fail(out, newError(KindStore, out.Label, "savepoint", err))
		}
	}

	rec, out, perr := p.apply(ctx, b, kind, spec, out)
	if perr != nil {
		if hasSavepoints {
			if err := sp.RollbackTo(ctx, name); err != nil {
				perr = newError(KindStore, out.Label, "undo failed record", errors.Join(perr, err))
			}
		}
		return ir.Record{}, p.fail(out, perr)
	}

	if hasSavepoints {
		if err := sp.Release(ctx, name); err != nil {
			return ir.Record{}, p.fail(out, newError(KindStore, out.Label, "release savepoint", err))
		}
	}

	p.logger.Info("record "+string(out.Status),
		"kind", spec.Kind,
		"record", out.Label,
		"record_id", out.RecordID,
		"changed", out.Changed,
	)
	return rec, out
}

// checkSpec rejects malformed specs before the backend is touched.
func (p *Provisioner) checkSpec(spec ir.RecordSpec) (*schema.Kind, *Error) {
	label := spec.Label()
	if spec.Kind == "" {
		return nil, newError(KindValidation, label, "kind is required", nil)
	}
	if len(spec.Lookup) == 0 {
		return nil, newError(KindValidation, label, "lookup is required", nil)
	}

	for _, name := range spec.Lookup.SortedKeys() {
		v := spec.Lookup[name]
		if !ir.IsScalar(v) {
			return nil, newError(KindValidation, label,
				fmt.Sprintf("lookup field %q must be a scalar, got %s", name, ir.TypeName(v)), nil)
		}
		if d, ok := spec.Desired[name]; ok && !ir.Equal(d, v) {
			return nil, newError(KindValidation, label,
				fmt.Sprintf("desired %q conflicts with lookup", name), nil)
		}
		if c, ok := spec.CreateOnly[name]; ok && !ir.Equal(c, v) {
			return nil, newError(KindValidation, label,
				fmt.Sprintf("create_only %q conflicts with lookup", name), nil)
		}
	}

	if p.schema == nil {
		return nil, nil
	}
	kind, ok := p.schema.Lookup(spec.Kind)
	if !ok {
		return nil, newError(KindValidation, label, "unknown kind", schema.ErrUnknownKind)
	}
	return kind, nil
}

func (p *Provisioner) apply(ctx context.Context, b Backend, kind *schema.Kind, spec ir.RecordSpec, out Outcome) (ir.Record, Outcome, *Error) {
	id, found, err := b.Exists(ctx, spec.Kind, spec.Lookup)
	if errors.Is(err, store.ErrAmbiguous) {
		return ir.Record{}, out, newError(KindNotFound, out.Label, "lookup ambiguous", err)
	}
	if err != nil {
		return ir.Record{}, out, newError(KindStore, out.Label, "lookup", err)
	}

	if found {
		return p.update(ctx, b, kind, spec, id, out)
	}

	fields := spec.InsertFields()
	key, perr := p.check(ctx, b, kind, spec, out.Label, fields)
	if perr != nil {
		return ir.Record{}, out, perr
	}

	rec, err := b.Insert(ctx, ir.Record{Kind: spec.Kind, Key: key, Fields: fields})
	if errors.Is(err, store.ErrDuplicate) && kind != nil {
		// Another record already holds this natural key; converge on it.
		id, found, err := b.Exists(ctx, spec.Kind, keyFilters(kind, fields))
		if err != nil {
			return ir.Record{}, out, newError(KindStore, out.Label, "resolve natural key", err)
		}
		if !found {
			return ir.Record{}, out, newError(KindValidation, out.Label, "natural key collision without a matching record", store.ErrDuplicate)
		}
		p.logger.Debug("insert collided on natural key, updating existing record",
			"kind", spec.Kind, "record", out.Label, "record_id", id)
		return p.update(ctx, b, kind, spec, id, out)
	}
	if err != nil {
		return ir.Record{}, out, storeError(out.Label, "insert", err)
	}

	out.Status = StatusCreated
	out.RecordID = rec.ID
	out.Seq = rec.Seq
	out.Changed = true
	out.ChangedFields = fields.SortedKeys()
	return rec, out, nil
}

func (p *Provisioner) update(ctx context.Context, b Backend, kind *schema.Kind, spec ir.RecordSpec, id int64, out Outcome) (ir.Record, Outcome, *Error) {
	existing, err := b.Get(ctx, spec.Kind, id)
	if err != nil {
		return ir.Record{}, out, storeError(out.Label, "load", err)
	}

	merged := existing.Fields.Merge(spec.Lookup).Merge(spec.Desired)
	key, perr := p.check(ctx, b, kind, spec, out.Label, merged)
	if perr != nil {
		return ir.Record{}, out, perr
	}

	out.Status = StatusUpdated
	out.RecordID = existing.ID
	out.ChangedFields = existing.Fields.Diff(merged)
	out.Changed = len(out.ChangedFields) > 0

	if !out.Changed && key == existing.Key {
		out.Seq = existing.Seq
		return existing, out, nil
	}

	rec, err := b.Update(ctx, ir.Record{ID: existing.ID, Kind: spec.Kind, Key: key}, merged)
	if err != nil {
		return ir.Record{}, out, storeError(out.Label, "update", err)
	}
	out.Seq = rec.Seq
	return rec, out, nil
}

// check validates a full record body, verifies its parent references and
// computes its natural key.
func (p *Provisioner) check(ctx context.Context, b Backend, kind *schema.Kind, spec ir.RecordSpec, label string, fields ir.Fields) (string, *Error) {
	if kind == nil {
		return "", nil
	}

	if err := p.schema.Validate(spec.Kind, fields); err != nil {
		return "", newError(KindValidation, label, "", err)
	}

	for _, field := range kind.SortedRefFields() {
		v, ok := fields[field]
		if !ok {
			continue
		}
		if s, isStr := v.(ir.Str); isStr && s == "" {
			continue
		}
		if !ir.IsScalar(v) {
			return "", newError(KindValidation, label,
				fmt.Sprintf("reference %q must be a scalar, got %s", field, ir.TypeName(v)), nil)
		}

		ref := kind.Refs[field]
		parent := ir.NewFields(ir.F(ref.Field, v))
		_, found, err := b.Exists(ctx, ref.Kind, parent)
		if errors.Is(err, store.ErrAmbiguous) {
			continue
		}
		if err != nil {
			return "", newError(KindStore, label, "check reference "+field, err)
		}
		if !found {
			return "", newError(KindNotFound, label,
				fmt.Sprintf("%s references missing %s", field, ir.RecordSpec{Kind: ref.Kind, Lookup: parent}.Label()), nil)
		}
	}

	key, err := ir.NaturalKey(spec.Kind, kind.Key, fields)
	if err != nil {
		return "", newError(KindValidation, label, "natural key", err)
	}
	return key, nil
}

// keyFilters returns the natural key fields of a record body.
func keyFilters(kind *schema.Kind, fields ir.Fields) ir.Fields {
	filters := make(ir.Fields, len(kind.Key))
	for _, name := range kind.Key {
		filters[name] = fields[name]
	}
	return filters
}

// storeError classifies a backend write failure. Constraint rejections
// mean the desired fields are invalid for the store.
func storeError(label, op string, err error) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, label, op, err)
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrConstraint):
		return newError(KindValidation, label, op, err)
	}
	return newError(KindStore, label, op, err)
}

func (p *Provisioner) fail(out Outcome, perr *Error) Outcome {
	out.Status = StatusFailed
	out.Err = perr
	p.logger.Warn("record failed",
		"kind", out.Kind,
		"record", out.Label,
		"error_kind", string(perr.Kind),
		"error", perr.Error(),
	)
	return out
}
