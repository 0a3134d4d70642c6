// Package tree implements live composition trees: nodes instantiated from
// components, linked through rule-gated slots, and rebuilt into one merged
// stat table.
//
// # Shared state
//
// Every connected tree has exactly one *Tree holding the event dispatcher,
// the stat table and the completeness result. Nodes reach it through a
// tree pointer. Attaching a subtree (SetChild) or detaching it (RemoveChild,
// AsRoot) rewrites that pointer for every node of the moved subtree, so a
// node never observes another tree's state.
//
// # Rebuild
//
// Structural changes invalidate the tree. Build resets listeners, stats and
// completeness, collects prioritized contributions pre-order, and folds the
// forward list before the reverse list. See (*Tree).Build for the exact
// order.
//
// # Systems
//
// Each node owns one Instance per system template of its component. Systems
// see siblings only through Dependency and SoftDependency, and talk to the
// rest of the tree only through events and stats.
//
// # Concurrency
//
// A tree is single-writer: callers serialize every operation on it. Event
// dispatch is synchronous and bounded by the engine's max depth. A Build
// requested from inside a listener fails with REENTRANT_BUILD.
package tree
