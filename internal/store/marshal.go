package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/erpseed/internal/ir"
)

// marshalFields converts Fields to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical bodies store identical bytes.
func marshalFields(fields ir.Fields) (string, error) {
	if fields == nil {
		fields = ir.Fields{}
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses canonical JSON TEXT to Fields.
// Uses ir.Fields.UnmarshalJSON which keeps integers exact via json.Number.
func unmarshalFields(data string) (ir.Fields, error) {
	if data == "" || data == "{}" {
		return ir.Fields{}, nil
	}
	var fields ir.Fields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}

// keyParam maps an empty natural key to NULL so keyless kinds never
// collide on the unique index.
func keyParam(key string) any {
	if key == "" {
		return nil
	}
	return key
}

type scanner interface {
	Scan(dest ...any) error
}

const recordColumns = `id, kind, key_hash, fields, seq`

// scanRecord scans one row selected with recordColumns.
func scanRecord(row scanner) (ir.Record, error) {
	var rec ir.Record
	var key sql.NullString
	var fieldsJSON string

	if err := row.Scan(&rec.ID, &rec.Kind, &key, &fieldsJSON, &rec.Seq); err != nil {
		return ir.Record{}, err
	}

	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Key = key.String
	rec.Fields = fields
	return rec, nil
}
