// Package schema validates record bodies against per-kind CUE schemas.
//
// A registry is built from the embedded kinds.cue and, optionally, from a
// directory of additional .cue files that are unified with it. User files
// may add kinds, tighten constraints on built-in kinds, and reference the
// built-in definitions (#name, #flag, #date, #currency, #email).
//
// Each kind exposes three things:
//   - Key: natural key field names, hashed into the store's unique index
//   - Refs: parent references (field -> kind.field) checked before writes
//   - Schema: an open CUE struct the full record body must satisfy
package schema
