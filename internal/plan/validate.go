package plan

import (
	"fmt"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/schema"
)

// Problem is one issue found in a plan without touching a store.
type Problem struct {
	Batch  string `json:"batch"`
	Index  int    `json:"index"`
	Record string `json:"record"`
	Error  string `json:"error"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s[%d] %s: %s", p.Batch, p.Index, p.Record, p.Error)
}

// Validate checks every spec as if it were being created: the kind must
// be known, lookup must be scalar and consistent with desired, and the
// insert body must satisfy the kind's schema. Parent references are not
// checked. Returns every problem found, in plan order.
func (p *Plan) Validate(reg *schema.Registry) []Problem {
	var problems []Problem
	for _, b := range p.Batches {
		for i, spec := range b.Records {
			if err := validateSpec(reg, spec); err != nil {
				problems = append(problems, Problem{
					Batch:  b.Name,
					Index:  i,
					Record: spec.Label(),
					Error:  err.Error(),
				})
			}
		}
	}
	return problems
}

func validateSpec(reg *schema.Registry, spec ir.RecordSpec) error {
	if spec.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if len(spec.Lookup) == 0 {
		return fmt.Errorf("lookup is required")
	}
	for _, name := range spec.Lookup.SortedKeys() {
		v := spec.Lookup[name]
		if !ir.IsScalar(v) {
			return fmt.Errorf("lookup field %q must be a scalar, got %s", name, ir.TypeName(v))
		}
		if d, ok := spec.Desired[name]; ok && !ir.Equal(d, v) {
			return fmt.Errorf("desired %q conflicts with lookup", name)
		}
	}
	if _, ok := reg.Lookup(spec.Kind); !ok {
		return fmt.Errorf("%w: %s", schema.ErrUnknownKind, spec.Kind)
	}
	return reg.Validate(spec.Kind, spec.InsertFields())
}
