package tree

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/stat"
)

// DefaultMaxEventDepth bounds nested event dispatch.
const DefaultMaxEventDepth = 8

// Definitions resolves component ids and stat keys. The definition
// registry implements it; StaticDefinitions serves fixed sets.
type Definitions interface {
	Component(id string) (*component.Component, bool)
	Stat(key string) (*stat.Stat, bool)
}

// StaticDefinitions adapts fixed component and stat sets.
type StaticDefinitions struct {
	Components *component.Set
	Stats      *stat.Catalog
}

func (d StaticDefinitions) Component(id string) (*component.Component, bool) {
	return d.Components.Lookup(id)
}

func (d StaticDefinitions) Stat(key string) (*stat.Stat, bool) {
	return d.Stats.Lookup(key)
}

// Engine creates trees. It holds the collaborators every tree shares:
// the system table, definitions, a logger and an optional build observer.
//
// Engines are safe for concurrent use; the trees they create are not.
type Engine struct {
	systems       *SystemTable
	defs          Definitions
	logger        *zap.Logger
	observer      BuildObserver
	maxEventDepth int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithObserver receives a report after every build.
func WithObserver(o BuildObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithMaxEventDepth sets the nested dispatch limit.
// Default: DefaultMaxEventDepth.
func WithMaxEventDepth(depth int) EngineOption {
	return func(e *Engine) { e.maxEventDepth = depth }
}

// NewEngine returns an engine that instantiates systems from systems and
// resolves ids against defs.
func NewEngine(systems *SystemTable, defs Definitions, opts ...EngineOption) *Engine {
	e := &Engine{
		systems:       systems,
		defs:          defs,
		logger:        zap.NewNop(),
		maxEventDepth: DefaultMaxEventDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxEventDepth < 1 {
		e.maxEventDepth = 1
	}
	return e
}

// Stat resolves a stat key for systems that contribute by key.
func (e *Engine) Stat(key string) (*stat.Stat, bool) {
	if e.defs == nil {
		return nil, false
	}
	return e.defs.Stat(key)
}

// Component resolves a component id.
func (e *Engine) Component(id string) (*component.Component, bool) {
	if e.defs == nil {
		return nil, false
	}
	return e.defs.Component(id)
}

// New instantiates the component with id as the root of a fresh tree.
func (e *Engine) New(id string) (*Node, error) {
	c, ok := e.Component(id)
	if !ok {
		return nil, &Error{Code: ErrCodeUnknownComponent, Message: fmt.Sprintf("no component %q", id), Component: id}
	}
	return e.Instantiate(c)
}

// Instantiate creates a fresh single-node tree from c. The tree must be
// built before its stats are read.
func (e *Engine) Instantiate(c *component.Component) (*Node, error) {
	n, err := e.newNode(c)
	if err != nil {
		return nil, err
	}
	newTree(e, n)
	return n, nil
}

// newNode creates a detached node with one instance per system template.
// The caller must attach it to a tree.
func (e *Engine) newNode(c *component.Component) (*Node, error) {
	n := &Node{
		component: c,
		engine:    e,
		children:  make(map[string]*Node),
		systems:   make(map[string]Instance, len(c.Systems)),
	}
	for _, tmpl := range c.Systems {
		inst, err := e.newSystem(n, tmpl)
		if err != nil {
			return nil, err
		}
		n.systems[tmpl.ID] = inst
	}
	return n, nil
}

func (e *Engine) newSystem(n *Node, tmpl component.SystemTemplate) (Instance, error) {
	factory, ok := e.systems.lookup(tmpl.Type)
	if !ok {
		return nil, &Error{
			Code:      ErrCodeUnknownSystem,
			Message:   fmt.Sprintf("system %q has unknown type %q", tmpl.ID, tmpl.Type),
			Component: n.component.ID,
		}
	}
	inst, err := factory(n, tmpl)
	if err != nil {
		return nil, fmt.Errorf("component %s system %s: %w", n.component.ID, tmpl.ID, err)
	}
	return inst, nil
}
