package tree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/value"
)

// Instance is a system bound to exactly one node for its lifetime.
//
// Build is the only extension point: it may append contributions and
// register listeners on ctx. It runs on every tree rebuild.
type Instance interface {
	Build(ctx *BuildContext) error
}

// Copier is implemented by systems whose state must survive Copy.
// CopyTo returns an independent instance bound to node.
// Systems without it are re-created from their template on copy.
type Copier interface {
	CopyTo(node *Node) (Instance, error)
}

// Saver is implemented by systems with persistent state.
type Saver interface {
	Save() (value.Object, error)
}

// Loader restores state written by Saver.
type Loader interface {
	Load(state value.Object) error
}

// Factory creates the instance for one system template on node.
type Factory func(node *Node, tmpl component.SystemTemplate) (Instance, error)

// SystemTable maps system type names to factories.
// It is safe for concurrent use.
type SystemTable struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewSystemTable returns an empty table.
func NewSystemTable() *SystemTable {
	return &SystemTable{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a type twice is an error.
func (t *SystemTable) Register(typ string, f Factory) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.factories[typ]; dup {
		return fmt.Errorf("system type %q already registered", typ)
	}
	t.factories[typ] = f
	return nil
}

// MustRegister is Register that panics, for init-time wiring.
func (t *SystemTable) MustRegister(typ string, f Factory) {
	if err := t.Register(typ, f); err != nil {
		panic(err)
	}
}

// Has reports whether typ is registered.
func (t *SystemTable) Has(typ string) bool {
	_, ok := t.lookup(typ)
	return ok
}

// Types returns the registered type names, sorted.
func (t *SystemTable) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	types := make([]string, 0, len(t.factories))
	for typ := range t.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

func (t *SystemTable) lookup(typ string) (Factory, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[typ]
	return f, ok
}

// Key names a sibling system and the Go type it must have.
type Key[T any] struct {
	ID string
}

// NewKey returns a typed key for the system with id.
func NewKey[T any](id string) Key[T] {
	return Key[T]{ID: id}
}

// Dependency returns the sibling system on n named by key. A missing or
// mistyped system is a MISSING_DEPENDENCY error: the component is
// misconfigured.
func Dependency[T any](n *Node, key Key[T]) (T, error) {
	if dep, ok := SoftDependency(n, key); ok {
		return dep, nil
	}
	var zero T
	return zero, newMissingDependency(n, key.ID)
}

// SoftDependency returns the sibling system on n named by key, or false.
func SoftDependency[T any](n *Node, key Key[T]) (T, bool) {
	var zero T
	inst, ok := n.systems[key.ID]
	if !ok {
		return zero, false
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
