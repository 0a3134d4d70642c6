package stat

import (
	"fmt"
	"sort"

	"github.com/roach88/kitbash/internal/value"
)

// MergeFunc combines the current value a with an incoming value b.
// Either side may be nil (absent); implementations substitute def.
// A MergeFunc must be total over its kind and must not retain or mutate
// its arguments.
type MergeFunc func(a, b, def value.Value) value.Value

// Built-in merge operator names.
const (
	MergeAdd      = "add"
	MergeMultiply = "multiply"
	MergeMax      = "max"
	MergeMin      = "min"
	MergeOverride = "override"
	MergeKeep     = "keep"
	MergeAnd      = "and"
	MergeOr       = "or"
	MergeAppend   = "append"
	MergeUnion    = "union"
)

type mergeOp struct {
	fn    MergeFunc
	kinds []Kind
}

var mergeOps = map[string]mergeOp{
	MergeAdd:      {fn: numeric(func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b }), kinds: []Kind{KindInt, KindFloat}},
	MergeMultiply: {fn: numeric(func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b }), kinds: []Kind{KindInt, KindFloat}},
	MergeMax:      {fn: numeric(maxOf[float64], maxOf[int64]), kinds: []Kind{KindInt, KindFloat}},
	MergeMin:      {fn: numeric(minOf[float64], minOf[int64]), kinds: []Kind{KindInt, KindFloat}},
	MergeOverride: {fn: mergeOverride, kinds: Kinds},
	MergeKeep:     {fn: mergeKeep, kinds: Kinds},
	MergeAnd:      {fn: boolean(func(a, b bool) bool { return a && b }), kinds: []Kind{KindBool}},
	MergeOr:       {fn: boolean(func(a, b bool) bool { return a || b }), kinds: []Kind{KindBool}},
	MergeAppend:   {fn: mergeAppend, kinds: []Kind{KindList, KindString}},
	MergeUnion:    {fn: mergeUnion, kinds: []Kind{KindList}},
}

// MergeNames returns the built-in operator names, sorted.
func MergeNames() []string {
	names := make([]string, 0, len(mergeOps))
	for name := range mergeOps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupMerge returns the named operator if it applies to kind.
func LookupMerge(name string, kind Kind) (MergeFunc, error) {
	op, ok := mergeOps[name]
	if !ok {
		return nil, fmt.Errorf("unknown merge operator %q", name)
	}
	for _, k := range op.kinds {
		if k == kind {
			return op.fn, nil
		}
	}
	return nil, fmt.Errorf("merge operator %q does not apply to kind %s", name, kind)
}

func orDefault(v, def value.Value) value.Value {
	if v == nil {
		return def
	}
	if _, null := v.(value.Null); null {
		return def
	}
	return v
}

func numeric(f func(a, b float64) float64, i func(a, b int64) int64) MergeFunc {
	return func(a, b, def value.Value) value.Value {
		a, b = orDefault(a, def), orDefault(b, def)
		ai, aInt := a.(value.Int)
		bi, bInt := b.(value.Int)
		if aInt && bInt {
			return value.Int(i(int64(ai), int64(bi)))
		}
		return value.Float(f(toFloat(a), toFloat(b)))
	}
}

func toFloat(v value.Value) float64 {
	switch n := v.(type) {
	case value.Int:
		return float64(n)
	case value.Float:
		return float64(n)
	}
	return 0
}

func maxOf[T int64 | float64](a, b T) T { return max(a, b) }
func minOf[T int64 | float64](a, b T) T { return min(a, b) }

func boolean(f func(a, b bool) bool) MergeFunc {
	return func(a, b, def value.Value) value.Value {
		ab, _ := orDefault(a, def).(value.Bool)
		bb, _ := orDefault(b, def).(value.Bool)
		return value.Bool(f(bool(ab), bool(bb)))
	}
}

// mergeOverride: the incoming value wins.
func mergeOverride(a, b, def value.Value) value.Value {
	if b != nil {
		return value.Clone(b)
	}
	return value.Clone(orDefault(a, def))
}

// mergeKeep: the first value set wins.
func mergeKeep(a, b, def value.Value) value.Value {
	if a != nil {
		return value.Clone(a)
	}
	return value.Clone(orDefault(b, def))
}

func mergeAppend(a, b, def value.Value) value.Value {
	a, b = orDefault(a, def), orDefault(b, def)
	if as, ok := a.(value.String); ok {
		bs, _ := b.(value.String)
		return as + bs
	}
	al, _ := a.(value.List)
	bl, _ := b.(value.List)
	out := make(value.List, 0, len(al)+len(bl))
	for _, e := range al {
		out = append(out, value.Clone(e))
	}
	for _, e := range bl {
		out = append(out, value.Clone(e))
	}
	return out
}

// mergeUnion appends the elements of b not already present, keeping
// first-seen order.
func mergeUnion(a, b, def value.Value) value.Value {
	al, _ := orDefault(a, def).(value.List)
	bl, _ := orDefault(b, def).(value.List)
	out := make(value.List, 0, len(al)+len(bl))
	add := func(e value.Value) {
		for _, seen := range out {
			if value.Equal(seen, e) {
				return
			}
		}
		out = append(out, value.Clone(e))
	}
	for _, e := range al {
		add(e)
	}
	for _, e := range bl {
		add(e)
	}
	return out
}
