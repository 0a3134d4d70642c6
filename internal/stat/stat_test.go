package stat

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/value"
)

func TestNewValidates(t *testing.T) {
	_, err := New("", KindInt, nil, MergeAdd)
	assert.Error(t, err)

	_, err = New("damage", Kind("complex"), nil, MergeAdd)
	assert.Error(t, err)

	_, err = New("damage", KindInt, nil, "average")
	assert.Error(t, err)

	_, err = New("sharp", KindBool, nil, MergeAdd)
	assert.Error(t, err, "add does not apply to bool")

	_, err = New("damage", KindInt, value.String("five"), MergeAdd)
	assert.Error(t, err, "default must match kind")

	s, err := New("weight", KindFloat, value.Int(2), MergeAdd)
	require.NoError(t, err)
	assert.Equal(t, value.Float(2), s.Default, "int default widens to float")
}

func TestInstanceFallsBackToDefault(t *testing.T) {
	s := MustNew("damage", KindInt, value.Int(3), MergeAdd)

	absent := s.Instance(nil)
	_, ok := absent.Raw()
	assert.False(t, ok)
	assert.Equal(t, value.Int(3), absent.Value())

	set := s.Instance(value.Int(7))
	assert.Equal(t, value.Int(7), set.Value())
}

func TestCombineFromAbsentUsesDefault(t *testing.T) {
	s := MustNew("damage", KindInt, value.Int(0), MergeAdd)

	in := s.Instance(nil)
	require.NoError(t, in.CombineFrom(s.Instance(value.Int(5))))
	assert.Equal(t, value.Int(5), in.Value())

	require.NoError(t, in.CombineFrom(s.Instance(nil)))
	assert.Equal(t, value.Int(5), in.Value(), "combining an absent value adds the default")
}

func TestCombineFromKeyMismatch(t *testing.T) {
	a := MustNew("damage", KindInt, nil, MergeAdd).Instance(nil)
	b := MustNew("speed", KindInt, nil, MergeAdd).Instance(value.Int(1))
	err := a.CombineFrom(b)
	assert.True(t, errors.Is(err, ErrKeyMismatch))
}

func TestMergeOperators(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		op       string
		def      value.Value
		inputs   []value.Value
		expected value.Value
	}{
		{"add int", KindInt, MergeAdd, nil, []value.Value{value.Int(2), value.Int(3)}, value.Int(5)},
		{"add float", KindFloat, MergeAdd, nil, []value.Value{value.Float(0.5), value.Float(0.25)}, value.Float(0.75)},
		{"multiply from default", KindFloat, MergeMultiply, value.Float(1), []value.Value{value.Float(2), value.Float(1.5)}, value.Float(3)},
		{"max", KindInt, MergeMax, nil, []value.Value{value.Int(4), value.Int(9), value.Int(1)}, value.Int(9)},
		{"min", KindInt, MergeMin, value.Int(100), []value.Value{value.Int(4), value.Int(9)}, value.Int(4)},
		{"override", KindString, MergeOverride, nil, []value.Value{value.String("a"), value.String("b")}, value.String("b")},
		{"keep", KindString, MergeKeep, nil, []value.Value{value.String("a"), value.String("b")}, value.String("a")},
		{"and", KindBool, MergeAnd, value.Bool(true), []value.Value{value.Bool(true), value.Bool(false)}, value.Bool(false)},
		{"or", KindBool, MergeOr, nil, []value.Value{value.Bool(false), value.Bool(true)}, value.Bool(true)},
		{"append list", KindList, MergeAppend, nil, []value.Value{value.List{value.Int(1)}, value.List{value.Int(1)}}, value.List{value.Int(1), value.Int(1)}},
		{"append string", KindString, MergeAppend, nil, []value.Value{value.String("fire"), value.String("brand")}, value.String("firebrand")},
		{"union", KindList, MergeUnion, nil, []value.Value{value.List{value.String("a"), value.String("b")}, value.List{value.String("b"), value.String("c")}}, value.List{value.String("a"), value.String("b"), value.String("c")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := MustNew("k", tt.kind, tt.def, tt.op)
			in := s.Instance(nil)
			for _, v := range tt.inputs {
				require.NoError(t, in.CombineFrom(s.Instance(v)))
			}
			assert.True(t, value.Equal(tt.expected, in.Value()), "got %s", value.Format(in.Value()))
		})
	}
}

func TestMergeIsOrderSensitive(t *testing.T) {
	s := MustNew("name", KindString, nil, MergeOverride)
	ab := s.Instance(nil)
	require.NoError(t, ab.CombineFrom(s.Instance(value.String("a"))))
	require.NoError(t, ab.CombineFrom(s.Instance(value.String("b"))))

	ba := s.Instance(nil)
	require.NoError(t, ba.CombineFrom(s.Instance(value.String("b"))))
	require.NoError(t, ba.CombineFrom(s.Instance(value.String("a"))))

	assert.NotEqual(t, ab.Value(), ba.Value())
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	s := MustNew("tags", KindList, nil, MergeAppend)
	incoming := value.List{value.String("a")}
	in := s.Instance(nil)
	require.NoError(t, in.CombineFrom(s.Instance(incoming)))

	incoming[0] = value.String("mutated")
	assert.Equal(t, value.List{value.String("a")}, in.Value())
}

func TestTable(t *testing.T) {
	damage := MustNew("damage", KindInt, nil, MergeAdd)
	speed := MustNew("speed", KindFloat, value.Float(1), MergeMultiply)

	table := NewTable()
	require.NoError(t, table.Combine(damage.Instance(value.Int(5))))
	require.NoError(t, table.Combine(damage.Instance(value.Int(2))))

	assert.Equal(t, value.Int(7), table.Value(damage))
	assert.Equal(t, value.Float(1), table.Value(speed), "absent stat reads default")
	assert.Equal(t, []string{"damage"}, table.Keys())

	want := value.Object{"damage": value.Int(7)}
	if diff := cmp.Diff(want, table.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	table.Reset()
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, value.Int(0), table.Value(damage))
}

func TestCatalog(t *testing.T) {
	damage := MustNew("damage", KindInt, nil, MergeAdd)
	weight := MustNew("weight", KindFloat, nil, MergeAdd)

	c, err := NewCatalog(weight, damage)
	require.NoError(t, err)
	assert.Equal(t, []string{"weight", "damage"}, c.Keys())

	got, ok := c.Lookup("damage")
	require.True(t, ok)
	assert.Same(t, damage, got)

	_, err = NewCatalog(damage, damage)
	assert.Error(t, err)
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "0", Priority{}.String())
	assert.Equal(t, "5r", Priority{Value: 5, Reverse: true}.String())
}

func TestKindCoerce(t *testing.T) {
	v, err := KindInt.Coerce(value.Float(4))
	require.NoError(t, err)
	assert.Equal(t, value.Int(4), v)

	_, err = KindInt.Coerce(value.Float(4.5))
	assert.Error(t, err)

	_, err = KindList.Coerce(value.String("x"))
	assert.Error(t, err)
}
