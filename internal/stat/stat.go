package stat

import (
	"errors"
	"fmt"

	"github.com/roach88/kitbash/internal/value"
)

// ErrKeyMismatch is returned when combining instances of different stats.
var ErrKeyMismatch = errors.New("stat key mismatch")

// Stat is a typed, named attribute with a default and a merge operator.
// Stats are immutable after New and shared by every tree.
type Stat struct {
	Key     string
	Kind    Kind
	Default value.Value
	Op      string // merge operator name, empty for custom merge funcs

	merge MergeFunc
}

// New creates a stat using a built-in merge operator. A nil def uses
// the kind's zero value.
func New(key string, kind Kind, def value.Value, op string) (*Stat, error) {
	if key == "" {
		return nil, fmt.Errorf("stat key is empty")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("stat %q: unknown kind %q", key, kind)
	}
	fn, err := LookupMerge(op, kind)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	s, err := NewCustom(key, kind, def, fn)
	if err != nil {
		return nil, err
	}
	s.Op = op
	return s, nil
}

// NewCustom creates a stat with a caller-supplied merge function.
func NewCustom(key string, kind Kind, def value.Value, fn MergeFunc) (*Stat, error) {
	if fn == nil {
		return nil, fmt.Errorf("stat %q: nil merge function", key)
	}
	if def == nil {
		def = kind.Zero()
	}
	coerced, err := kind.Coerce(def)
	if err != nil {
		return nil, fmt.Errorf("stat %q default: %w", key, err)
	}
	return &Stat{Key: key, Kind: kind, Default: coerced, merge: fn}, nil
}

// MustNew is New for package-level and test fixtures. It panics on error.
func MustNew(key string, kind Kind, def value.Value, op string) *Stat {
	s, err := New(key, kind, def, op)
	if err != nil {
		panic(err)
	}
	return s
}

// Merge combines a and b. Absent values (nil) are handled by the operator.
func (s *Stat) Merge(a, b value.Value) value.Value {
	return s.merge(a, b, s.Default)
}

// Copy returns an independent copy of v.
func (s *Stat) Copy(v value.Value) value.Value {
	return value.Clone(v)
}

// Instance pairs the stat with an optional value. A nil v is absent.
func (s *Stat) Instance(v value.Value) Instance {
	return Instance{Stat: s, raw: v}
}

// Instance is a stat paired with an optional current value.
type Instance struct {
	Stat *Stat
	raw  value.Value
}

// Value returns the current value, or a copy of the default when absent.
func (i Instance) Value() value.Value {
	if i.raw == nil {
		return i.Stat.Copy(i.Stat.Default)
	}
	return i.raw
}

// Raw returns the explicit value, if any.
func (i Instance) Raw() (value.Value, bool) {
	return i.raw, i.raw != nil
}

// CombineFrom sets the value to Merge(current, other.raw).
func (i *Instance) CombineFrom(other Instance) error {
	if i.Stat == nil || other.Stat == nil || i.Stat.Key != other.Stat.Key {
		return fmt.Errorf("%w: %s vs %s", ErrKeyMismatch, keyOf(i.Stat), keyOf(other.Stat))
	}
	i.raw = i.Stat.Merge(i.raw, other.raw)
	return nil
}

func keyOf(s *Stat) string {
	if s == nil {
		return "<nil>"
	}
	return s.Key
}
