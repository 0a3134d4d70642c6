// Package value provides the constrained value types shared by stats,
// definitions and persisted system state.
//
// This package contains type definitions and encoding only. All other
// internal packages may import value; value imports nothing internal.
//
// Key design constraints:
//   - Values form a sealed set: Null, Int, Float, Bool, String, List, Object
//   - Object iteration uses SortedKeys for deterministic output
//   - Canonical JSON is the only encoding used for content hashes
//   - NaN and infinities are rejected by every encoder
package value
