package ir

// RecordSpec describes one record to provision.
type RecordSpec struct {
	// Kind identifies the record category ("Company", "Role").
	Kind string `json:"kind" yaml:"kind"`

	// Lookup uniquely identifies a candidate record. Values must be scalars.
	Lookup Fields `json:"lookup" yaml:"lookup"`

	// Desired is applied on create and on update.
	Desired Fields `json:"desired,omitempty" yaml:"desired,omitempty"`

	// CreateOnly is applied only when the record is inserted.
	CreateOnly Fields `json:"create_only,omitempty" yaml:"create_only,omitempty"`
}

// InsertFields builds the field set for a fresh record: lookup, then
// create-only fields, then desired fields (desired wins on conflicts).
func (s RecordSpec) InsertFields() Fields {
	return s.Lookup.Merge(s.CreateOnly).Merge(s.Desired)
}

// Normalize returns the spec with its field sets in NFC, matching what the
// store persists and compares against.
func (s RecordSpec) Normalize() RecordSpec {
	s.Lookup = s.Lookup.Normalize()
	s.Desired = s.Desired.Normalize()
	s.CreateOnly = s.CreateOnly.Normalize()
	return s
}

// Label returns a short human-readable identification, e.g.
// `Company{company_name=Galaxy Bio}`.
func (s RecordSpec) Label() string {
	return s.Kind + describeLookup(s.Lookup)
}

func describeLookup(lookup Fields) string {
	out := "{"
	for i, k := range lookup.SortedKeys() {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + scalarText(lookup[k])
	}
	return out + "}"
}

func scalarText(v Value) string {
	switch val := v.(type) {
	case Str:
		return string(val)
	default:
		b, err := MarshalValue(v)
		if err != nil {
			return "?"
		}
		return string(b)
	}
}

// Record is a stored record of some kind.
type Record struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"` // Natural-key hash; empty when the kind declares no key
	Fields Fields `json:"fields"`
	Seq    int64  `json:"seq"` // Logical clock of the last write
}
