package store

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/erpseed/internal/ir"
)

// buildFilter compiles field filters to parameterized json_extract
// predicates. Every predicate also checks json_type so Int(1), Bool(true)
// and Str("1") never match each other.
//
// Field names and string values are bound in NFC, the form marshalFields
// persists. Only scalar filter values are supported.
func buildFilter(kind string, filters ir.Fields) (string, []any, error) {
	var sb strings.Builder
	args := []any{kind}
	sb.WriteString("kind = ?")

	for _, name := range filters.SortedKeys() {
		path, err := jsonPath(norm.NFC.String(name))
		if err != nil {
			return "", nil, err
		}

		switch v := filters[name].(type) {
		case ir.Str:
			sb.WriteString(" AND json_type(fields, ?) = 'text' AND json_extract(fields, ?) = ?")
			args = append(args, path, path, norm.NFC.String(string(v)))
		case ir.Int:
			sb.WriteString(" AND json_type(fields, ?) = 'integer' AND json_extract(fields, ?) = ?")
			args = append(args, path, path, int64(v))
		case ir.Bool:
			want := "false"
			if v {
				want = "true"
			}
			sb.WriteString(" AND json_type(fields, ?) = ?")
			args = append(args, path, want)
		default:
			return "", nil, fmt.Errorf("filter %q: unsupported value type %s", name, ir.TypeName(filters[name]))
		}
	}

	return sb.String(), args, nil
}

// jsonPath quotes a field name as a SQLite JSON path label.
func jsonPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `"\`) {
		return "", fmt.Errorf("filter field name %q is not supported", name)
	}
	return `$."` + name + `"`, nil
}
