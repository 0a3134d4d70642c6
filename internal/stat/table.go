package stat

import (
	"fmt"
	"sort"

	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/value"
)

// Priority orders contributions. Lower values merge first; Reverse
// contributions merge after every forward contribution.
type Priority struct {
	Value   int  `json:"value"`
	Reverse bool `json:"reverse,omitempty"`
}

// String renders the priority as "3" or "3r".
func (p Priority) String() string {
	if p.Reverse {
		return fmt.Sprintf("%dr", p.Value)
	}
	return fmt.Sprintf("%d", p.Value)
}

// Contribution is a prioritized, rule-gated group of stat entries.
// The rule is evaluated against the node that produced the contribution;
// when it fails no entry is merged.
type Contribution struct {
	Priority Priority
	Rule     rule.Rule // nil means always
	Entries  []Instance
	Source   string // origin label for traces, e.g. "blade_steel" or "durability"
}

// Table is the tree-wide stat table.
type Table struct {
	entries map[string]*Instance
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Instance)}
}

// Combine folds in into the table entry for its stat.
func (t *Table) Combine(in Instance) error {
	if in.Stat == nil {
		return fmt.Errorf("stat: instance without stat")
	}
	cur, ok := t.entries[in.Stat.Key]
	if !ok {
		cur = &Instance{Stat: in.Stat}
		t.entries[in.Stat.Key] = cur
	}
	return cur.CombineFrom(in)
}

// Get returns the entry for key.
func (t *Table) Get(key string) (Instance, bool) {
	in, ok := t.entries[key]
	if !ok {
		return Instance{}, false
	}
	return *in, true
}

// Value returns the merged value for s, or its default when nothing
// contributed to it.
func (t *Table) Value(s *Stat) value.Value {
	if in, ok := t.entries[s.Key]; ok {
		return in.Value()
	}
	return s.Copy(s.Default)
}

// Keys returns the keys present in the table, sorted.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stats present.
func (t *Table) Len() int { return len(t.entries) }

// Reset removes every entry.
func (t *Table) Reset() {
	clear(t.entries)
}

// Snapshot copies the table into an Object keyed by stat key.
func (t *Table) Snapshot() value.Object {
	out := make(value.Object, len(t.entries))
	for k, in := range t.entries {
		out[k] = value.Clone(in.Value())
	}
	return out
}
