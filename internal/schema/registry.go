package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/erpseed/internal/ir"
)

//go:embed kinds.cue
var builtinKinds string

// ErrUnknownKind is returned for kinds the registry does not declare.
var ErrUnknownKind = errors.New("unknown kind")

// Ref is a parent reference: the field's value must equal Field on an
// existing record of Kind.
type Ref struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
}

// Kind is one compiled record kind.
type Kind struct {
	Name   string
	Key    []string
	Refs   map[string]Ref
	schema cue.Value
}

// SortedRefFields returns the reference field names in sorted order.
func (k *Kind) SortedRefFields() []string {
	names := make([]string, 0, len(k.Refs))
	for name := range k.Refs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Registry holds the compiled kinds.
type Registry struct {
	ctx   *cue.Context
	root  cue.Value
	kinds map[string]*Kind
}

// ValidationError lists every schema violation found in one record.
type ValidationError struct {
	Kind     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Problems, "; "))
}

// New compiles the built-in kinds.
func New() (*Registry, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(builtinKinds, cue.Filename("kinds.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("internal error: failed to compile built-in kinds: %w", err)
	}

	r := &Registry{ctx: ctx, root: root}
	if err := r.index(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is like New but panics on error. The built-in schema is
// compiled into the binary, so failure indicates a programming error.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadDir unifies every .cue file in dir (non-recursive) with the registry.
func (r *Registry) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("schema dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("schema dir: not a directory: %s", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return fmt.Errorf("schema dir: %w", err)
	}
	slices.Sort(paths)

	for _, path := range paths {
		if err := r.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile unifies a single .cue file with the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	return r.LoadSource(path, data)
}

// LoadSource unifies CUE source with the registry. name is used in
// error positions.
func (r *Registry) LoadSource(name string, src []byte) error {
	v := r.ctx.CompileBytes(src, cue.Filename(name), cue.Scope(r.root))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}

	unified := r.root.Unify(v)
	if err := unified.Err(); err != nil {
		return fmt.Errorf("unify %s: %w", name, err)
	}

	previous := r.root
	r.root = unified
	if err := r.index(); err != nil {
		r.root = previous
		_ = r.index()
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

// index rebuilds the kind table from the root value.
func (r *Registry) index() error {
	kindsVal := r.root.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return fmt.Errorf("schema has no kinds")
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return fmt.Errorf("iterating kinds: %w", err)
	}

	kinds := make(map[string]*Kind)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		kind, err := compileKind(name, iter.Value())
		if err != nil {
			return err
		}
		kinds[name] = kind
	}

	r.kinds = kinds
	return nil
}

func compileKind(name string, v cue.Value) (*Kind, error) {
	kind := &Kind{Name: name, Refs: map[string]Ref{}}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if keyVal.Exists() {
		if err := keyVal.Decode(&kind.Key); err != nil {
			return nil, fmt.Errorf("kind %q: key: %w", name, err)
		}
	}

	refsVal := v.LookupPath(cue.ParsePath("refs"))
	if refsVal.Exists() {
		iter, err := refsVal.Fields()
		if err != nil {
			return nil, fmt.Errorf("kind %q: refs: %w", name, err)
		}
		for iter.Next() {
			var ref Ref
			if err := iter.Value().Decode(&ref); err != nil {
				return nil, fmt.Errorf("kind %q: refs.%s: %w", name, iter.Selector().Unquoted(), err)
			}
			kind.Refs[iter.Selector().Unquoted()] = ref
		}
	}

	kind.schema = v.LookupPath(cue.ParsePath("schema"))
	if !kind.schema.Exists() {
		return nil, fmt.Errorf("kind %q: schema is required", name)
	}
	return kind, nil
}

// Kinds returns the declared kind names in sorted order.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named kind.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// KeyHash computes the natural-key hash of a record body.
func (r *Registry) KeyHash(kind string, fields ir.Fields) (string, error) {
	k, ok := r.kinds[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ir.NaturalKey(kind, k.Key, fields)
}

// Validate checks a full record body against the kind's schema.
// Returns *ValidationError listing every violation, or an error wrapping
// ErrUnknownKind.
func (r *Registry) Validate(kind string, fields ir.Fields) error {
	k, ok := r.kinds[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	data := r.ctx.Encode(ir.ToAny(fields))
	if err := data.Err(); err != nil {
		return &ValidationError{Kind: kind, Problems: []string{err.Error()}}
	}

	unified := k.schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Kind: kind, Problems: problems(err)}
	}
	return nil
}

// problems flattens a CUE error into "field: message" strings with the
// registry path prefix removed.
func problems(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)

		path := e.Path()
		if i := slices.Index(path, "schema"); i >= 0 {
			path = path[i+1:]
		}
		if len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		if !slices.Contains(out, msg) {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
