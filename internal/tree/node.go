package tree

import (
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
)

// Path is a slot-key path from a tree's root.
type Path = rule.Path

// Node is a live instance of a component linked into a tree.
type Node struct {
	component *component.Component
	engine    *Engine
	children  map[string]*Node
	systems   map[string]Instance
	parent    *Node
	slot      string
	tree      *Tree
}

// Component returns the node's blueprint.
func (n *Node) Component() *component.Component { return n.component }

// Tree returns the tree the node currently belongs to.
func (n *Node) Tree() *Tree { return n.tree }

// Engine returns the engine that created the node.
func (n *Node) Engine() *Engine { return n.engine }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// SlotKey returns the key of the slot the node occupies, or "" for a root.
func (n *Node) SlotKey() string { return n.slot }

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Root returns the root of the node's tree.
func (n *Node) Root() *Node { return n.tree.root }

// Child returns the node in slot key.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// Children returns occupied children in slot declaration order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, s := range n.component.Slots {
		if c, ok := n.children[s.Key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// System returns the instance for a system id.
func (n *Node) System(id string) (Instance, bool) {
	inst, ok := n.systems[id]
	return inst, ok
}

// SystemIDs returns system ids in template declaration order.
func (n *Node) SystemIDs() []string {
	ids := make([]string, 0, len(n.component.Systems))
	for _, tmpl := range n.component.Systems {
		ids = append(ids, tmpl.ID)
	}
	return ids
}

// HasTag reports whether the node's component carries tag.
func (n *Node) HasTag(tag string) bool { return n.component.HasTag(tag) }

// HasSystem reports whether the node has a system with id.
func (n *Node) HasSystem(id string) bool {
	_, ok := n.systems[id]
	return ok
}

// Path returns the slot path from the root to n.
func (n *Node) Path() Path {
	var rev []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		rev = append(rev, cur.slot)
	}
	p := make(Path, len(rev))
	for i, k := range rev {
		p[len(rev)-1-i] = k
	}
	return p
}

// Resolve follows a slot path from n.
func (n *Node) Resolve(p Path) (*Node, bool) {
	cur := n
	for _, key := range p {
		next, ok := cur.children[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SetChild places child in slot key.
//
// It fails with NO_SUCH_SLOT when the component has no such slot,
// INVALID_ATTACH when child is n or one of its ancestors, and
// INCOMPATIBLE_CHILD when the slot rule rejects child. A failed call
// changes nothing. On success child leaves its previous parent (or tree),
// any previous occupant of the slot is detached into its own tree, and
// the whole subtree joins n's tree, which then needs a Build.
func (n *Node) SetChild(key string, child *Node) error {
	slot, ok := n.component.Slot(key)
	if !ok {
		return newNoSuchSlot(n, key)
	}
	if child == nil {
		return newInvalidAttach(n, key, "nil child")
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur == child {
			return newInvalidAttach(n, key, "child is this node or one of its ancestors")
		}
	}

	if slot.Rule != nil {
		bound := rule.Bind(slot.Rule, ruleNode{child}, ruleNode{n})
		if !bound.Eval(ruleNode{child}) {
			return newIncompatibleChild(n, key, child)
		}
	}

	if prev, ok := n.children[key]; ok && prev != child {
		prev.detach()
	}
	if child.parent != nil {
		child.detach()
	}
	// child may have been a root; its old Tree is simply dropped.
	n.children[key] = child
	child.parent = n
	child.slot = key
	child.repoint(n.tree)
	n.tree.invalidate()
	return nil
}

// RemoveChild detaches the occupant of slot key into a new tree and
// returns it, or nil if the slot was empty.
func (n *Node) RemoveChild(key string) (*Node, error) {
	if _, ok := n.component.Slot(key); !ok {
		return nil, newNoSuchSlot(n, key)
	}
	child, ok := n.children[key]
	if !ok {
		return nil, nil
	}
	child.detach()
	return child, nil
}

// AsRoot detaches n from its parent into a new independent tree and
// returns that tree. For a root it returns the current tree.
func (n *Node) AsRoot() *Tree {
	if n.parent == nil {
		return n.tree
	}
	n.detach()
	return n.tree
}

// detach unlinks n from its parent and gives the subtree a fresh tree.
func (n *Node) detach() {
	parent := n.parent
	delete(parent.children, n.slot)
	parent.tree.invalidate()
	newTree(n.engine, n)
}

// repoint sets the tree pointer of n and every descendant.
func (n *Node) repoint(t *Tree) {
	n.tree = t
	for _, c := range n.children {
		c.repoint(t)
	}
}

// ruleNode adapts *Node to rule.Node.
type ruleNode struct {
	n *Node
}

func (r ruleNode) Child(key string) (rule.Node, bool) {
	c, ok := r.n.children[key]
	if !ok {
		return nil, false
	}
	return ruleNode{c}, true
}

func (r ruleNode) Parent() (rule.Node, bool) {
	if r.n.parent == nil {
		return nil, false
	}
	return ruleNode{r.n.parent}, true
}

func (r ruleNode) Root() rule.Node         { return ruleNode{r.n.tree.root} }
func (r ruleNode) HasTag(tag string) bool   { return r.n.HasTag(tag) }
func (r ruleNode) HasSystem(id string) bool { return r.n.HasSystem(id) }
func (r ruleNode) Complete() bool           { return r.n.tree.complete }

// Eval evaluates r against n. Inline rules must already be bound.
func (n *Node) Eval(r rule.Rule) bool {
	return rule.Eval(r, ruleNode{n})
}
