package ir

import (
	"fmt"
	"maps"

	"golang.org/x/text/unicode/norm"
)

// Clone returns a deep copy of the field set.
func (obj Fields) Clone() Fields {
	if obj == nil {
		return Fields{}
	}
	out := make(Fields, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Fields:
		return val.Clone()
	default:
		return v
	}
}

// Normalize returns a deep copy with every key and string value in NFC,
// the form the canonical encoding stores.
func (obj Fields) Normalize() Fields {
	if obj == nil {
		return nil
	}
	out := make(Fields, len(obj))
	for k, v := range obj {
		out[norm.NFC.String(k)] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v Value) Value {
	switch val := v.(type) {
	case Str:
		return Str(norm.NFC.String(string(val)))
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case Fields:
		return val.Normalize()
	default:
		return v
	}
}

// Merge returns a new field set with other applied on top of obj.
// Keys in other win; a Null value in other deletes the key.
// Neither input is modified.
func (obj Fields) Merge(other Fields) Fields {
	out := obj.Clone()
	for _, k := range other.SortedKeys() {
		v := other[k]
		if _, isNull := v.(Null); isNull {
			delete(out, k)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Matches reports whether every filter pair is present in obj with an
// equal value.
func (obj Fields) Matches(filters Fields) bool {
	for k, want := range filters {
		got, ok := obj[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Diff returns the sorted keys whose values differ between obj and other,
// including keys present in only one of them.
func (obj Fields) Diff(other Fields) []string {
	union := maps.Clone(obj)
	if union == nil {
		union = Fields{}
	}
	maps.Copy(union, other)

	var changed []string
	for _, k := range union.SortedKeys() {
		a, inA := obj[k]
		b, inB := other[k]
		if inA != inB || !Equal(a, b) {
			changed = append(changed, k)
		}
	}
	return changed
}

// Equal reports whether two values are structurally equal.
// Int and Bool never compare equal to each other.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Fields:
		bv, ok := b.(Fields)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a decoded Go value (from YAML or JSON) into a Value.
// Floats are rejected; nil becomes Null.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Str(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(int64(val)), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not allowed in records: %v", val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Fields, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// FieldsFromMap converts a decoded map into Fields.
func FieldsFromMap(m map[string]any) (Fields, error) {
	if m == nil {
		return Fields{}, nil
	}
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Fields), nil
}

// ToAny converts a Value into plain Go values (string, int64, bool,
// []any, map[string]any, nil) for encoders that do not know about Value.
func ToAny(v Value) any {
	switch val := v.(type) {
	case Str:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Fields:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
