package tree

import "github.com/roach88/kitbash/internal/component"

// Visit walks n and its descendants pre-order in slot declaration order.
// path is relative to n. Returning false skips the node's children.
func (n *Node) Visit(fn func(node *Node, path Path) bool) {
	n.visit(Path{}, fn)
}

func (n *Node) visit(path Path, fn func(*Node, Path) bool) {
	if !fn(n, path) {
		return
	}
	for _, s := range n.component.Slots {
		if c, ok := n.children[s.Key]; ok {
			c.visit(childPath(path, s.Key), fn)
		}
	}
}

// VisitSlots walks every slot of n and its descendants pre-order,
// including empty ones. child is nil for an empty slot; path is the
// slot's path relative to n.
func (n *Node) VisitSlots(fn func(parent *Node, slot component.Slot, child *Node, path Path)) {
	n.visitSlots(Path{}, fn)
}

func (n *Node) visitSlots(path Path, fn func(*Node, component.Slot, *Node, Path)) {
	for _, s := range n.component.Slots {
		p := childPath(path, s.Key)
		c := n.children[s.Key]
		fn(n, s, c, p)
		if c != nil {
			c.visitSlots(p, fn)
		}
	}
}

func childPath(parent Path, key string) Path {
	p := make(Path, len(parent)+1)
	copy(p, parent)
	p[len(parent)] = key
	return p
}
