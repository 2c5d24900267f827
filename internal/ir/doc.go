// Package ir provides the record model shared by every erpseed package.
//
// This package contains value and record types only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - amounts, quantities and flags are int64
//   - Field maps serialize to canonical JSON (RFC 8785 key order, NFC strings)
//   - All JSON tags use snake_case
//   - Logical clocks (seq) order writes, never wall-clock timestamps
package ir
