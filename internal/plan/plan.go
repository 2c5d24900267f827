// Package plan loads provisioning plans from YAML.
//
// A plan is an ordered list of named batches, each an ordered list of
// record specs:
//
//	name: galaxy-companies
//	description: Holding structure
//	abort_on_failure: false
//	batches:
//	  - name: companies
//	    records:
//	      - kind: Company
//	        lookup: {company_name: Galaxy Bio}
//	        desired: {abbr: GB, is_group: 0}
//	        create_only: {date_of_establishment: 2024-01-01}
//
// Field values map to ir values: strings, integers, booleans, null, lists
// and mappings. Floats are rejected. Unquoted dates stay strings.
package plan

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/erpseed/internal/ir"
)

// Plan is a named sequence of batches applied in one session.
type Plan struct {
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	AbortOnFailure bool    `json:"abort_on_failure,omitempty"`
	Batches        []Batch `json:"batches"`
}

// Batch is a named group of record specs.
type Batch struct {
	Name    string          `json:"name"`
	Records []ir.RecordSpec `json:"records"`
}

// Specs flattens every batch in order.
func (p *Plan) Specs() []ir.RecordSpec {
	var specs []ir.RecordSpec
	for _, b := range p.Batches {
		specs = append(specs, b.Records...)
	}
	return specs
}

// Len returns the total number of record specs.
func (p *Plan) Len() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Records)
	}
	return n
}

// Load reads and parses a plan file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// rawPlan mirrors Plan with record fields left as YAML nodes.
type rawPlan struct {
	Name           string     `yaml:"name"`
	Description    string     `yaml:"description"`
	AbortOnFailure bool       `yaml:"abort_on_failure"`
	Batches        []rawBatch `yaml:"batches"`
}

type rawBatch struct {
	Name    string      `yaml:"name"`
	Records []rawRecord `yaml:"records"`
}

type rawRecord struct {
	Kind       string    `yaml:"kind"`
	Lookup     yaml.Node `yaml:"lookup"`
	Desired    yaml.Node `yaml:"desired"`
	CreateOnly yaml.Node `yaml:"create_only"`
}

// Parse parses plan YAML.
func Parse(data []byte) (*Plan, error) {
	var raw rawPlan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("invalid plan: name is required")
	}
	if len(raw.Batches) == 0 {
		return nil, fmt.Errorf("invalid plan: batches list is required and must be non-empty")
	}

	p := &Plan{
		Name:           raw.Name,
		Description:    raw.Description,
		AbortOnFailure: raw.AbortOnFailure,
	}
	for i, rb := range raw.Batches {
		if rb.Name == "" {
			return nil, fmt.Errorf("invalid plan: batches[%d]: name is required", i)
		}
		batch := Batch{Name: rb.Name}
		for j, rr := range rb.Records {
			spec, err := rr.spec()
			if err != nil {
				return nil, fmt.Errorf("invalid plan: %s.records[%d]: %w", rb.Name, j, err)
			}
			batch.Records = append(batch.Records, spec)
		}
		p.Batches = append(p.Batches, batch)
	}
	return p, nil
}

func (r rawRecord) spec() (ir.RecordSpec, error) {
	spec := ir.RecordSpec{Kind: r.Kind}
	var err error
	if spec.Lookup, err = nodeFields(&r.Lookup); err != nil {
		return spec, fmt.Errorf("lookup: %w", err)
	}
	if spec.Desired, err = nodeFields(&r.Desired); err != nil {
		return spec, fmt.Errorf("desired: %w", err)
	}
	if spec.CreateOnly, err = nodeFields(&r.CreateOnly); err != nil {
		return spec, fmt.Errorf("create_only: %w", err)
	}
	return spec, nil
}

// Write encodes a plan as YAML that Parse reads back.
func Write(w io.Writer, p *Plan) error {
	out := map[string]any{"name": p.Name}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.AbortOnFailure {
		out["abort_on_failure"] = true
	}

	batches := make([]any, 0, len(p.Batches))
	for _, b := range p.Batches {
		records := make([]any, 0, len(b.Records))
		for _, spec := range b.Records {
			rec := map[string]any{
				"kind":   spec.Kind,
				"lookup": ir.ToAny(spec.Lookup),
			}
			if len(spec.Desired) > 0 {
				rec["desired"] = ir.ToAny(spec.Desired)
			}
			if len(spec.CreateOnly) > 0 {
				rec["create_only"] = ir.ToAny(spec.CreateOnly)
			}
			records = append(records, rec)
		}
		batches = append(batches, map[string]any{"name": b.Name, "records": records})
	}
	out["batches"] = batches

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}
