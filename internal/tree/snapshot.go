package tree

import (
	"fmt"

	"github.com/roach88/kitbash/internal/value"
)

// Snapshot is the saved form of a subtree: component ids, per-system state
// and children by slot key. Encoding it is the caller's concern; Value
// produces the canonical value form used by the store.
type Snapshot struct {
	Component string                  `json:"component"`
	Systems   map[string]value.Object `json:"systems,omitempty"`
	Children  map[string]*Snapshot    `json:"children,omitempty"`
}

// Save captures n's subtree. Systems without a Saver contribute nothing.
func Save(n *Node) (*Snapshot, error) {
	s := &Snapshot{Component: n.component.ID}
	for _, id := range n.SystemIDs() {
		saver, ok := n.systems[id].(Saver)
		if !ok {
			continue
		}
		state, err := saver.Save()
		if err != nil {
			return nil, fmt.Errorf("save system %s at %q: %w", id, n.Path(), err)
		}
		if s.Systems == nil {
			s.Systems = make(map[string]value.Object)
		}
		s.Systems[id] = state
	}
	for _, c := range n.Children() {
		cs, err := Save(c)
		if err != nil {
			return nil, err
		}
		if s.Children == nil {
			s.Children = make(map[string]*Snapshot)
		}
		s.Children[c.slot] = cs
	}
	return s, nil
}

// Value converts the snapshot to a value tree for canonical encoding.
func (s *Snapshot) Value() value.Object {
	obj := value.Object{"component": value.String(s.Component)}
	if len(s.Systems) > 0 {
		systems := make(value.Object, len(s.Systems))
		for id, state := range s.Systems {
			systems[id] = value.Clone(state)
		}
		obj["systems"] = systems
	}
	if len(s.Children) > 0 {
		children := make(value.Object, len(s.Children))
		for key, c := range s.Children {
			children[key] = c.Value()
		}
		obj["children"] = children
	}
	return obj
}

// SnapshotFromValue is the inverse of Value.
func SnapshotFromValue(v value.Value) (*Snapshot, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("snapshot must be an object, got %s", value.Format(v))
	}
	id, ok := obj["component"].(value.String)
	if !ok || id == "" {
		return nil, fmt.Errorf("snapshot missing component id")
	}
	s := &Snapshot{Component: string(id)}

	if raw, ok := obj["systems"]; ok {
		systems, ok := raw.(value.Object)
		if !ok {
			return nil, fmt.Errorf("snapshot %s: systems must be an object", id)
		}
		s.Systems = make(map[string]value.Object, len(systems))
		for sid, state := range systems {
			st, ok := state.(value.Object)
			if !ok {
				return nil, fmt.Errorf("snapshot %s: system %s state must be an object", id, sid)
			}
			s.Systems[sid] = st
		}
	}

	if raw, ok := obj["children"]; ok {
		children, ok := raw.(value.Object)
		if !ok {
			return nil, fmt.Errorf("snapshot %s: children must be an object", id)
		}
		s.Children = make(map[string]*Snapshot, len(children))
		for key, c := range children {
			cs, err := SnapshotFromValue(c)
			if err != nil {
				return nil, fmt.Errorf("%s/%w", key, err)
			}
			s.Children[key] = cs
		}
	}
	return s, nil
}

// Load reconstructs a tree from s against the engine's definitions.
//
// Slot rules are not re-checked: the saved tree was valid when saved.
// Unknown components, slots or system ids, and failing system loads, abort
// the whole load with a *LoadError; no partial tree is returned. The
// result is unbuilt.
func (e *Engine) Load(s *Snapshot) (*Node, error) {
	root, err := e.loadNode(s, Path{})
	if err != nil {
		return nil, err
	}
	newTree(e, root)
	return root, nil
}

func (e *Engine) loadNode(s *Snapshot, path Path) (*Node, error) {
	if s == nil {
		return nil, &LoadError{Path: path.String(), Err: fmt.Errorf("empty snapshot")}
	}
	c, ok := e.Component(s.Component)
	if !ok {
		return nil, &LoadError{Path: path.String(), Err: fmt.Errorf("unknown component %q", s.Component)}
	}
	n, err := e.newNode(c)
	if err != nil {
		return nil, &LoadError{Path: path.String(), Err: err}
	}

	for id, state := range s.Systems {
		inst, ok := n.systems[id]
		if !ok {
			return nil, &LoadError{Path: path.String(), Err: fmt.Errorf("component %s has no system %q", c.ID, id)}
		}
		loader, ok := inst.(Loader)
		if !ok {
			continue
		}
		if err := loader.Load(state); err != nil {
			return nil, &LoadError{Path: path.String(), Err: fmt.Errorf("system %s: %w", id, err)}
		}
	}

	for key, cs := range s.Children {
		if _, ok := c.Slot(key); !ok {
			return nil, &LoadError{Path: path.String(), Err: fmt.Errorf("component %s has no slot %q", c.ID, key)}
		}
		child, err := e.loadNode(cs, childPath(path, key))
		if err != nil {
			return nil, err
		}
		child.parent = n
		child.slot = key
		n.children[key] = child
	}
	return n, nil
}
