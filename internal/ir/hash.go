package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNaturalKey = "erpseed/natural-key/v1"
	DomainFields     = "erpseed/fields/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NaturalKey computes the natural-key hash of a record: the kind plus the
// values of keyFields taken from fields. Returns "" when keyFields is empty.
// A key field missing from fields is an error.
func NaturalKey(kind string, keyFields []string, fields Fields) (string, error) {
	if len(keyFields) == 0 {
		return "", nil
	}

	values := make(Fields, len(keyFields))
	for _, name := range keyFields {
		v, ok := fields[name]
		if !ok {
			return "", fmt.Errorf("NaturalKey: %s key field %q is missing", kind, name)
		}
		values[name] = v
	}

	canonical, err := MarshalCanonical(Fields{
		"kind":   Str(kind),
		"values": values,
	})
	if err != nil {
		return "", fmt.Errorf("NaturalKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNaturalKey, canonical), nil
}

// FieldsDigest computes a stable digest of a field set. Equal field sets
// always produce equal digests regardless of map order or Unicode form.
func FieldsDigest(fields Fields) (string, error) {
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("FieldsDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFields, canonical), nil
}

// MustNaturalKey is like NaturalKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNaturalKey(kind string, keyFields []string, fields Fields) string {
	key, err := NaturalKey(kind, keyFields, fields)
	if err != nil {
		panic(err)
	}
	return key
}
