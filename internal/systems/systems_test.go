package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

var (
	damage = stat.MustNew("damage", stat.KindInt, nil, stat.MergeAdd)
	broken = stat.MustNew("broken", stat.KindBool, nil, stat.MergeOr)
	weight = stat.MustNew("weight", stat.KindFloat, nil, stat.MergeAdd)
)

func newEngine(t *testing.T, comps ...*component.Component) *tree.Engine {
	t.Helper()
	set, err := component.NewSet(comps...)
	require.NoError(t, err)
	cat, err := stat.NewCatalog(damage, broken, weight)
	require.NoError(t, err)
	return tree.NewEngine(NewTable(rule.DefaultRegistry()), tree.StaticDefinitions{Components: set, Stats: cat})
}

func build(t *testing.T, n *tree.Node) *tree.Tree {
	t.Helper()
	require.NoError(t, n.Tree().Build())
	return n.Tree()
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	table := NewTable(rule.DefaultRegistry())
	assert.Equal(t, []string{"child_scaling", "display_name", "durability", "honed", "modifier"}, table.Types())
	assert.Error(t, Register(table, rule.DefaultRegistry()))
}

func TestDurabilityWearAndBreak(t *testing.T) {
	e := newEngine(t, component.MustNew("blade",
		component.WithSystem("durability", TypeDurability, value.Object{"max": value.Int(5)}),
	))
	n, err := e.New("blade")
	require.NoError(t, err)
	tr := build(t, n)

	require.NoError(t, tr.Use(tree.DefaultActor(), 3))
	rep, err := tr.CreateRepresentation(tree.DefaultActor())
	require.NoError(t, err)
	assert.Equal(t, &tree.Bar{Value: 2, Max: 5}, rep.Bar)
	assert.Equal(t, value.Bool(false), tr.Value(broken))

	require.NoError(t, tr.Use(tree.DefaultActor(), 10))
	dur, err := tree.Dependency(n, tree.NewKey[*Durability]("durability"))
	require.NoError(t, err)
	assert.Equal(t, 0, dur.Remaining(), "wear is clamped at max")
	assert.True(t, dur.Broken())

	// Stats follow state only after a rebuild.
	assert.Equal(t, value.Bool(false), tr.Value(broken))
	tr = build(t, n)
	assert.Equal(t, value.Bool(true), tr.Value(broken))

	require.NoError(t, tr.Repair(tree.DefaultActor(), 2))
	assert.Equal(t, 2, dur.Remaining())
}

func TestDurabilitySaveLoadCopy(t *testing.T) {
	e := newEngine(t, component.MustNew("blade",
		component.WithSystem("durability", TypeDurability, nil),
	))
	n, err := e.New("blade")
	require.NoError(t, err)
	tr := build(t, n)
	require.NoError(t, tr.Use(tree.DefaultActor(), 7))

	snap, err := tree.Save(n)
	require.NoError(t, err)
	assert.Equal(t, value.Object{"wear": value.Int(7)}, snap.Systems["durability"])

	loaded, err := e.Load(snap)
	require.NoError(t, err)
	ld, _ := tree.Dependency(loaded, tree.NewKey[*Durability]("durability"))
	assert.Equal(t, 93, ld.Remaining())

	dup, err := n.Copy()
	require.NoError(t, err)
	dd, _ := tree.Dependency(dup, tree.NewKey[*Durability]("durability"))
	require.NoError(t, build(t, dup).Use(tree.DefaultActor(), 1))
	od, _ := tree.Dependency(n, tree.NewKey[*Durability]("durability"))
	assert.Equal(t, 92, dd.Remaining())
	assert.Equal(t, 93, od.Remaining())

	_, err = e.Load(&tree.Snapshot{Component: "blade", Systems: map[string]value.Object{
		"durability": {"wear": value.Int(500)},
	}})
	assert.True(t, tree.IsLoadError(err))
}

func TestDisplayNameLocalized(t *testing.T) {
	e := newEngine(t,
		component.MustNew("sword",
			component.WithSystem("name", TypeDisplayName, value.Object{"name": value.String("Longsword")}),
			component.WithSlot("blade", nil),
		),
		component.MustNew("blade",
			component.WithSystem("name", TypeDisplayName, value.Object{"name": value.String("Steel Blade")}),
		),
	)
	sword, err := e.New("sword")
	require.NoError(t, err)
	blade, err := e.New("blade")
	require.NoError(t, err)
	require.NoError(t, sword.SetChild("blade", blade))
	tr := build(t, sword)

	rep, err := tr.CreateRepresentation(tree.DefaultActor())
	require.NoError(t, err)
	assert.Equal(t, "Longsword", rep.Name)
	assert.Equal(t, []string{"Part: Steel Blade"}, rep.Lines)

	rep, err = tr.CreateRepresentation(tree.ActorContext{Locale: language.German})
	require.NoError(t, err)
	assert.Equal(t, []string{"Teil: Steel Blade"}, rep.Lines)
}

func TestDisplayNameRequiresName(t *testing.T) {
	e := newEngine(t, component.MustNew("nameless",
		component.WithSystem("name", TypeDisplayName, nil),
	))
	_, err := e.New("nameless")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "name", ce.Field)
}

func TestChildScalingRunsAfterForward(t *testing.T) {
	e := newEngine(t,
		component.MustNew("frame",
			component.WithSystem("penalty", TypeChildScaling, value.Object{
				"stat":      value.String("weight"),
				"per_child": value.Float(0.5),
			}),
			component.WithSlot("a", nil),
			component.WithSlot("b", nil),
			component.WithSlot("c", nil),
		),
		component.MustNew("part",
			component.WithStats(stat.Contribution{Entries: []stat.Instance{weight.Instance(value.Float(2))}}),
		),
	)
	frame, err := e.New("frame")
	require.NoError(t, err)
	for _, key := range []string{"a", "b"} {
		p, err := e.New("part")
		require.NoError(t, err)
		require.NoError(t, frame.SetChild(key, p))
	}
	tr := build(t, frame)

	assert.Equal(t, value.Float(5), tr.Value(weight))
	steps := tr.LastBuild().Steps
	require.Len(t, steps, 3)
	assert.Equal(t, "penalty", steps[2].Source)
	assert.True(t, steps[2].Priority.Reverse)
}

func TestHonedNeedsDurability(t *testing.T) {
	e := newEngine(t,
		component.MustNew("keen",
			component.WithSystem("durability", TypeDurability, value.Object{"max": value.Int(1)}),
			component.WithSystem("edge", TypeHoned, value.Object{"bonus": value.Int(3)}),
		),
		component.MustNew("misconfigured",
			component.WithSystem("edge", TypeHoned, nil),
		),
	)

	keen, err := e.New("keen")
	require.NoError(t, err)
	tr := build(t, keen)
	assert.Equal(t, value.Int(3), tr.Value(damage))

	require.NoError(t, tr.Use(tree.DefaultActor(), 1))
	tr = build(t, keen)
	assert.Equal(t, value.Int(0), tr.Value(damage), "broken parts lose the bonus")
	assert.Equal(t, value.Bool(true), tr.Value(broken))

	bad, err := e.New("misconfigured")
	require.NoError(t, err)
	err = bad.Tree().Build()
	assert.True(t, tree.IsMissingDependency(err))
}

func TestModifierRules(t *testing.T) {
	e := newEngine(t,
		component.MustNew("gem",
			component.WithSystem("mods", TypeModifier, value.Object{"modifiers": value.List{
				value.Object{"stat": value.String("damage"), "value": value.Int(2)},
				value.Object{
					"stat":     value.String("damage"),
					"value":    value.Int(10),
					"priority": value.Int(1),
					"when":     value.Object{"is_root": value.Bool(false)},
				},
				value.Object{
					"stat":  value.String("damage"),
					"value": value.Int(100),
					"when":  value.Object{"not": value.Object{"is_root": value.Bool(true)}},
				},
			}}),
		),
		component.MustNew("ring", component.WithSlot("stone", nil)),
	)

	_, err := e.New("gem")
	require.Error(t, err, "is_root: false is not a valid document")

	e = newEngine(t,
		component.MustNew("gem",
			component.WithSystem("mods", TypeModifier, value.Object{"modifiers": value.List{
				value.Object{"stat": value.String("damage"), "value": value.Int(2)},
				value.Object{
					"stat":  value.String("damage"),
					"value": value.Int(100),
					"when":  value.Object{"not": value.Object{"is_root": value.Bool(true)}},
				},
			}}),
		),
		component.MustNew("ring", component.WithSlot("stone", nil)),
	)
	gem, err := e.New("gem")
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), build(t, gem).Value(damage))

	ring, err := e.New("ring")
	require.NoError(t, err)
	require.NoError(t, ring.SetChild("stone", gem))
	assert.Equal(t, value.Int(102), build(t, ring).Value(damage))
}

func TestModifierRejectsInlineRules(t *testing.T) {
	e := newEngine(t, component.MustNew("gem",
		component.WithSystem("mods", TypeModifier, value.Object{"modifiers": value.List{
			value.Object{
				"stat":  value.String("damage"),
				"value": value.Int(1),
				"when":  value.Object{"as_parent": value.Bool(true)},
			},
		}}),
	))
	_, err := e.New("gem")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "when", ce.Field)
}
