// Package stat defines typed, named attributes and how they merge.
//
// A Stat has a key, a kind, a default and a merge operator. An Instance
// pairs a stat with an optional value; reading an absent value yields the
// default. Contributions group instances under a Priority and an optional
// rule, and a Table accumulates the merged result for a whole tree.
//
// Merge operators need not be commutative. Callers fix the order; see
// tree.Build for the order used during a rebuild.
package stat
