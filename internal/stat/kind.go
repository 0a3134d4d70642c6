package stat

import (
	"fmt"
	"math"

	"github.com/roach88/kitbash/internal/value"
)

// Kind is the value type a stat holds.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindList   Kind = "list"
)

// Kinds lists every supported kind in documentation order.
var Kinds = []Kind{KindInt, KindFloat, KindBool, KindString, KindList}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInt, KindFloat, KindBool, KindString, KindList:
		return true
	}
	return false
}

// Zero returns the zero value of the kind, used when a definition omits
// its default.
func (k Kind) Zero() value.Value {
	switch k {
	case KindInt:
		return value.Int(0)
	case KindFloat:
		return value.Float(0)
	case KindBool:
		return value.Bool(false)
	case KindString:
		return value.String("")
	case KindList:
		return value.List{}
	}
	return value.Null{}
}

// Coerce converts v to the kind. Ints widen to floats; floats narrow to
// ints only when integral. Anything else must already match.
func (k Kind) Coerce(v value.Value) (value.Value, error) {
	switch k {
	case KindInt:
		switch n := v.(type) {
		case value.Int:
			return n, nil
		case value.Float:
			if f := float64(n); f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				return value.Int(int64(f)), nil
			}
		}
	case KindFloat:
		switch n := v.(type) {
		case value.Float:
			return n, nil
		case value.Int:
			return value.Float(float64(n)), nil
		}
	case KindBool:
		if b, ok := v.(value.Bool); ok {
			return b, nil
		}
	case KindString:
		if s, ok := v.(value.String); ok {
			return s, nil
		}
	case KindList:
		if l, ok := v.(value.List); ok {
			return value.Clone(l), nil
		}
	default:
		return nil, fmt.Errorf("unknown stat kind %q", k)
	}
	return nil, fmt.Errorf("cannot use %s as %s", value.Format(v), k)
}

func (k Kind) numeric() bool {
	return k == KindInt || k == KindFloat
}
