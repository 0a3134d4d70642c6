package tree

import "github.com/roach88/kitbash/internal/stat"

// Tree owns the state shared by every node in one connected tree: the
// event dispatcher, the stat table and the completeness result.
//
// Nodes reach it only through their tree pointer, which attach and detach
// rewrite for the whole moved subtree, so no node ever sees another
// tree's state.
type Tree struct {
	engine *Engine
	root   *Node

	events     *dispatcher
	stats      *stat.Table
	complete   bool
	incomplete []Path
	built      bool
	lastBuild  BuildReport
}

func newTree(e *Engine, root *Node) *Tree {
	t := &Tree{
		engine: e,
		root:   root,
		events: newDispatcher(),
		stats:  stat.NewTable(),
	}
	root.parent = nil
	root.slot = ""
	root.repoint(t)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Engine returns the engine that created the tree.
func (t *Tree) Engine() *Engine { return t.engine }

// Built reports whether the stats reflect the current structure.
// Any attach or detach clears it.
func (t *Tree) Built() bool { return t.built }

// Complete reports whether every required slot was occupied at the last
// build. It is false before the first build.
func (t *Tree) Complete() bool { return t.complete }

// IncompletePaths returns the paths of empty required slots found by the
// last build, in traversal order.
func (t *Tree) IncompletePaths() []Path {
	out := make([]Path, len(t.incomplete))
	for i, p := range t.incomplete {
		out[i] = append(Path{}, p...)
	}
	return out
}

// LastBuild returns the report of the most recent build.
func (t *Tree) LastBuild() BuildReport { return t.lastBuild }

func (t *Tree) invalidate() {
	t.built = false
}
