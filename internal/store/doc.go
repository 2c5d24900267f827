// Package store provides SQLite-backed storage for provisioned records.
//
// One database file holds one site. Two tables:
//   - records: one row per record, fields stored as canonical JSON
//   - sessions: journal of provisioning sessions (committed or rolled back)
//
// # Natural Keys
//
// records carries UNIQUE(kind, key_hash). key_hash is the domain-separated
// hash of the kind's natural key fields (see ir.NaturalKey), or NULL for
// kinds that declare no key. SQLite treats NULLs as distinct, so keyless
// kinds are unconstrained.
//
// # Ordering
//
// Every write stamps seq from a logical clock resumed at the highest
// stored seq. Queries order by seq ASC, id ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
