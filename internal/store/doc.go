// Package store provides SQLite-backed storage for saved trees.
//
// Each saved tree is a row in saved_trees holding:
//   - the tree snapshot as canonical JSON (RFC 8785), with its content hash
//   - the stat table and completeness of the last build, when built
//   - a logical seq that orders saves, never a timestamp
//
// Names are unique; saving under an existing name replaces the snapshot
// and keeps the record id. Reads verify the content hash before decoding,
// so a hand-edited row fails loudly instead of loading a different tree.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
