package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/systems"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

func compileSource(t *testing.T, src string) *Document {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	doc, errs := Compile(v)
	require.Empty(t, errs)
	return doc
}

func TestLinkBuildsLibrary(t *testing.T) {
	rules := rule.DefaultRegistry()
	table := systems.NewTable(rules)
	lib, errs := Link(compileSource(t, hiltSource), Env{Rules: rules, Systems: table})
	require.Empty(t, errs)

	assert.Equal(t, []string{"damage", "weight"}, lib.Stats.Keys())
	assert.Equal(t, []string{"core:blade_steel", "core:hilt"}, lib.Components.IDs())

	hilt, ok := lib.Component("core:hilt")
	require.True(t, ok)
	blade, ok := hilt.Slot("blade")
	require.True(t, ok)
	assert.True(t, blade.Required())
	assert.Equal(t, rule.HasTag{Tag: "blade"}, blade.Rule)

	pommel, ok := hilt.Slot("pommel")
	require.True(t, ok)
	assert.Nil(t, pommel.Rule)

	sys, ok := hilt.System("durability")
	require.True(t, ok)
	assert.Equal(t, value.Object{"max": value.Int(40)}, sys.Config)

	steel, _ := lib.Component("core:blade_steel")
	require.Len(t, steel.Stats, 2)
	assert.Equal(t, stat.Priority{Value: 2, Reverse: true}, steel.Stats[1].Priority)
	assert.Equal(t, "core:blade_steel", steel.Stats[1].Source)
	assert.Equal(t, rule.IsRoot{}, steel.Stats[1].Rule)
}

func TestLinkedLibraryDrivesTrees(t *testing.T) {
	rules := rule.DefaultRegistry()
	table := systems.NewTable(rules)
	lib, errs := Link(compileSource(t, hiltSource), Env{Rules: rules, Systems: table})
	require.Empty(t, errs)

	e := tree.NewEngine(table, lib)
	damage, _ := lib.Stat("damage")
	weight, _ := lib.Stat("weight")

	blade, err := e.New("core:blade_steel")
	require.NoError(t, err)
	require.NoError(t, blade.Tree().Build())
	assert.Equal(t, value.Int(6), blade.Tree().Value(damage), "reverse block applies while the blade is a root")
	assert.Equal(t, value.Float(2.5), blade.Tree().Value(weight))

	hilt, err := e.New("core:hilt")
	require.NoError(t, err)
	require.NoError(t, hilt.SetChild("blade", blade))
	require.NoError(t, hilt.Tree().Build())
	assert.Equal(t, value.Int(5), hilt.Tree().Value(damage))
	assert.Equal(t, value.Float(2), hilt.Tree().Value(weight))
	assert.True(t, hilt.Tree().Complete())
}

func TestLinkSkipsInvalidDefinitions(t *testing.T) {
	doc := compileSource(t, `
		stat: damage: {kind: "int", merge: "add"}
		stat: flag: {kind: "bool", merge: "add"}
		component: good: {stats: [{values: {damage: 1}}]}
		component: uses_bad_stat: {stats: [{values: {flag: true}}]}
		component: unknown_system: {system: glow: {type: "glow"}}
	`)
	lib, errs := Link(doc, Env{Systems: fakeSystems{}})
	require.Len(t, errs, 3)

	assert.Equal(t, []string{"damage"}, lib.Stats.Keys())
	assert.Equal(t, []string{"good"}, lib.Components.IDs())

	var de *DefinitionError
	require.ErrorAs(t, errs[0], &de)
	assert.Equal(t, "stat", de.Kind)
	assert.Equal(t, "flag", de.ID)
	assert.Equal(t, ErrInvalidMerge, de.Problems[0].Code)

	require.ErrorAs(t, errs[1], &de)
	assert.Equal(t, "uses_bad_stat", de.ID)
	assert.Equal(t, ErrUnknownStat, de.Problems[0].Code)

	require.ErrorAs(t, errs[2], &de)
	assert.Equal(t, ErrUnknownSystemType, de.Problems[0].Code)
	assert.Contains(t, de.Error(), "component unknown_system")
}

func TestLinkRejectsDuplicates(t *testing.T) {
	doc := &Document{
		Stats: []*StatDef{
			{Key: "damage", Kind: "int", Merge: "add"},
			{Key: "damage", Kind: "int", Merge: "max"},
		},
		Components: []*ComponentDef{{ID: "gem"}, {ID: "gem", Tags: []string{"x"}}},
	}
	lib, errs := Link(doc, Env{})
	require.Len(t, errs, 2)
	for _, err := range errs {
		var de *DefinitionError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrDuplicateDefined, de.Problems[0].Code)
	}

	s, _ := lib.Stat("damage")
	assert.Equal(t, "add", s.Op, "the first definition wins")
	gem, _ := lib.Component("gem")
	assert.Empty(t, gem.Tags)
}
