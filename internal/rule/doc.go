// Package rule implements the predicate language evaluated against live
// composition-tree nodes.
//
// Rules decide slot compatibility and gate stat contributions. They are
// immutable values; evaluation never mutates the node it inspects.
//
// # Variants
//
// The built-in set is closed: Constant, Not, And, Or, Has, As, AsRoot,
// IsRoot, HasTag, HasSystem, Complete, AsChild and AsParent. New variants
// are added only by registering a Decoder on a Registry, which is what
// definition loading uses to turn documents into rules.
//
// # Document form
//
// A rule document is either a bare boolean or an object with exactly one
// key naming the variant:
//
//	true
//	{has_tag: "sharp"}
//	{and: [{has_tag: "sharp"}, {not: {has: "guard"}}]}
//	{as: {path: "blade/edge", rule: {has_tag: "serrated"}}}
//	{as_parent: {has_tag: "two_handed"}}
//
// Paths are slot-key sequences written as "a/b" or ["a", "b"].
//
// # Inline variants
//
// AsChild and AsParent only make sense while checking whether a candidate
// may occupy a slot. Bind rewrites a rule once, right before that check,
// attaching the concrete candidate and parent. Evaluating an unbound inline
// rule panics with ErrUnbound.
package rule
