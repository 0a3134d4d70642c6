// Package component defines the immutable blueprints that tree nodes are
// instantiated from.
//
// A Component has a validated id, a tag set, ordered slots, ordered system
// templates and ordered intrinsic stat contributions. Components never
// reference each other directly; they relate only through slot rules.
// Once New returns, a component is never mutated and may be shared by any
// number of trees and goroutines.
package component

import (
	"fmt"
	"regexp"
	"slices"
	"sort"

	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

// TagRequired marks a slot that must be occupied for the tree to be
// complete.
const TagRequired = "required"

var idPattern = regexp.MustCompile(`^([a-z0-9_.-]+:)?[a-z0-9_.-]+(/[a-z0-9_.-]+)*$`)
var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateID checks the id token format: a lowercase token of
// [a-z0-9_.-], optionally "namespace:" prefixed and "/" separated.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid id %q: want [namespace:]path of [a-z0-9_.-]", id)
	}
	return nil
}

// ValidateKey checks slot keys and system ids.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid key %q: want [a-z0-9_]+", key)
	}
	return nil
}

// Slot is a named, rule-gated attachment point.
type Slot struct {
	Key  string
	Tags []string
	Rule rule.Rule // nil accepts anything
}

// Required reports whether the slot carries the required tag.
func (s Slot) Required() bool {
	return slices.Contains(s.Tags, TagRequired)
}

// HasTag reports whether the slot carries tag.
func (s Slot) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// SystemTemplate describes one system instance created per node.
type SystemTemplate struct {
	ID     string
	Type   string
	Config value.Object
}

// Component is an immutable blueprint.
type Component struct {
	ID      string
	Tags    []string
	Slots   []Slot
	Systems []SystemTemplate
	Stats   []stat.Contribution

	slotIndex   map[string]int
	systemIndex map[string]int
}

// Option configures a component under construction.
type Option func(*Component)

// WithTags adds component tags.
func WithTags(tags ...string) Option {
	return func(c *Component) { c.Tags = append(c.Tags, tags...) }
}

// WithSlot appends a slot.
func WithSlot(key string, r rule.Rule, tags ...string) Option {
	return func(c *Component) {
		c.Slots = append(c.Slots, Slot{Key: key, Tags: tags, Rule: r})
	}
}

// WithSystem appends a system template.
func WithSystem(id, typ string, config value.Object) Option {
	return func(c *Component) {
		c.Systems = append(c.Systems, SystemTemplate{ID: id, Type: typ, Config: config})
	}
}

// WithStats appends intrinsic contributions, keeping their order.
func WithStats(contribs ...stat.Contribution) Option {
	return func(c *Component) { c.Stats = append(c.Stats, contribs...) }
}

// New builds and validates a component.
func New(id string, opts ...Option) (*Component, error) {
	c := &Component{ID: id}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is New for fixtures. It panics on error.
func MustNew(id string, opts ...Option) *Component {
	c, err := New(id, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Component) init() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}

	c.Tags = normalizeTags(c.Tags)

	c.slotIndex = make(map[string]int, len(c.Slots))
	for i, s := range c.Slots {
		if err := ValidateKey(s.Key); err != nil {
			return fmt.Errorf("component %s: slot: %w", c.ID, err)
		}
		if _, dup := c.slotIndex[s.Key]; dup {
			return fmt.Errorf("component %s: duplicate slot key %q", c.ID, s.Key)
		}
		c.slotIndex[s.Key] = i
		c.Slots[i].Tags = normalizeTags(s.Tags)
	}

	c.systemIndex = make(map[string]int, len(c.Systems))
	for i, sys := range c.Systems {
		if err := ValidateKey(sys.ID); err != nil {
			return fmt.Errorf("component %s: system: %w", c.ID, err)
		}
		if _, dup := c.systemIndex[sys.ID]; dup {
			return fmt.Errorf("component %s: duplicate system id %q", c.ID, sys.ID)
		}
		if sys.Type == "" {
			return fmt.Errorf("component %s: system %q has no type", c.ID, sys.ID)
		}
		if sys.Config == nil {
			c.Systems[i].Config = value.Object{}
		}
		c.systemIndex[sys.ID] = i
	}

	for i, contrib := range c.Stats {
		if contrib.Priority.Value < 0 {
			return fmt.Errorf("component %s: stats[%d]: negative priority %d", c.ID, i, contrib.Priority.Value)
		}
		if contrib.Source == "" {
			c.Stats[i].Source = c.ID
		}
	}
	return nil
}

// Slot returns the slot with key.
func (c *Component) Slot(key string) (Slot, bool) {
	i, ok := c.slotIndex[key]
	if !ok {
		return Slot{}, false
	}
	return c.Slots[i], true
}

// System returns the system template with id.
func (c *Component) System(id string) (SystemTemplate, bool) {
	i, ok := c.systemIndex[id]
	if !ok {
		return SystemTemplate{}, false
	}
	return c.Systems[i], true
}

// HasTag reports whether the component carries tag.
func (c *Component) HasTag(tag string) bool {
	_, found := slices.BinarySearch(c.Tags, tag)
	return found
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := slices.Clone(tags)
	sort.Strings(out)
	return slices.Compact(out)
}
