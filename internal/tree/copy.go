package tree

import "fmt"

// Copy deep-copies n's subtree into a new, unbuilt tree. Systems that
// implement Copier produce their own copies; the rest are re-created from
// their templates. Nothing is shared with the original.
func (n *Node) Copy() (*Node, error) {
	dup, err := n.copyNode()
	if err != nil {
		return nil, err
	}
	newTree(n.engine, dup)
	return dup, nil
}

func (n *Node) copyNode() (*Node, error) {
	dup := &Node{
		component: n.component,
		engine:    n.engine,
		children:  make(map[string]*Node, len(n.children)),
		systems:   make(map[string]Instance, len(n.systems)),
	}
	for _, tmpl := range n.component.Systems {
		var (
			inst Instance
			err  error
		)
		if c, ok := n.systems[tmpl.ID].(Copier); ok {
			inst, err = c.CopyTo(dup)
			if err != nil {
				err = fmt.Errorf("copy system %s at %q: %w", tmpl.ID, n.Path(), err)
			}
		} else {
			inst, err = n.engine.newSystem(dup, tmpl)
		}
		if err != nil {
			return nil, err
		}
		dup.systems[tmpl.ID] = inst
	}
	for key, child := range n.children {
		cc, err := child.copyNode()
		if err != nil {
			return nil, err
		}
		cc.parent = dup
		cc.slot = key
		dup.children[key] = cc
	}
	return dup, nil
}
