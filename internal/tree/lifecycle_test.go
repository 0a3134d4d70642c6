package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/value"
)

func counterOf(t *testing.T, n *Node) *counterSystem {
	t.Helper()
	c, err := Dependency(n, NewKey[*counterSystem]("counter"))
	require.NoError(t, err)
	return c
}

func TestUseReachesEveryListener(t *testing.T) {
	e := newTestEngine(t)
	hilt := mustNew(t, e, "hilt")
	blade := mustNew(t, e, "blade_steel")
	require.NoError(t, hilt.SetChild("blade", blade))
	tr := mustBuild(t, hilt)

	require.NoError(t, tr.Use(DefaultActor(), 2))
	assert.Equal(t, 2, counterOf(t, hilt).count)
	assert.Equal(t, 2, counterOf(t, blade).count)
}

func TestDetachedSubtreeStopsListening(t *testing.T) {
	e := newTestEngine(t)
	hilt := mustNew(t, e, "hilt")
	blade := mustNew(t, e, "blade_steel")
	require.NoError(t, hilt.SetChild("blade", blade))
	mustBuild(t, hilt)

	blade.AsRoot()
	tr := mustBuild(t, hilt)
	require.NoError(t, tr.Use(DefaultActor(), 1))

	assert.Equal(t, 1, counterOf(t, hilt).count)
	assert.Equal(t, 0, counterOf(t, blade).count)
}

func TestReentrantBuildIsRejected(t *testing.T) {
	e := newTestEngine(t)
	n := mustNew(t, e, "self_builder")
	tr := mustBuild(t, n)

	err := tr.Repair(DefaultActor(), 1)
	require.Error(t, err)
	assert.True(t, IsReentrantBuild(err))
	assert.True(t, tr.Built(), "the rejected build must not reset the tree")
}

func TestDispatchDepthIsBounded(t *testing.T) {
	e := newTestEngine(t, WithMaxEventDepth(3))
	tr := mustBuild(t, mustNew(t, e, "loop"))

	err := tr.Use(DefaultActor(), 1)
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDispatchDepth, code)

	// Depth unwinds fully after the failure.
	assert.Equal(t, 0, tr.events.depth)
	require.NoError(t, tr.Build())
}

func TestCreateRepresentationInBuildOrder(t *testing.T) {
	e := newTestEngine(t)
	named := mustNew(t, e, "named")
	require.NoError(t, named.SetChild("part", mustNew(t, e, "named_part")))
	tr := mustBuild(t, named)

	rep, err := tr.CreateRepresentation(DefaultActor())
	require.NoError(t, err)
	assert.Equal(t, "named", rep.Name)
	assert.Equal(t, []string{"one", "two", "part"}, rep.Lines)
}

func TestCopyIsolation(t *testing.T) {
	e := newTestEngine(t)
	hilt := mustNew(t, e, "hilt")
	blade := mustNew(t, e, "blade_steel")
	require.NoError(t, hilt.SetChild("blade", blade))
	tr := mustBuild(t, hilt)
	require.NoError(t, tr.Use(DefaultActor(), 3))

	dup, err := hilt.Copy()
	require.NoError(t, err)
	assert.True(t, dup.IsRoot())
	assert.NotSame(t, hilt.Tree(), dup.Tree())
	assert.False(t, dup.Tree().Built(), "a copy must be built before use")

	dupBlade, ok := dup.Child("blade")
	require.True(t, ok)
	assert.NotSame(t, blade, dupBlade)
	assert.Same(t, dup.Tree(), dupBlade.Tree())
	assert.Equal(t, 3, counterOf(t, dupBlade).count, "copiers carry state over")

	dupTree := mustBuild(t, dup)
	require.NoError(t, dupTree.Use(DefaultActor(), 10))
	assert.Equal(t, 13, counterOf(t, dupBlade).count)
	assert.Equal(t, 3, counterOf(t, blade).count)
	assert.Equal(t, 3, counterOf(t, hilt).count)

	assert.Equal(t, tr.Stats().Snapshot(), dupTree.Stats().Snapshot())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	hilt := mustNew(t, e, "hilt")
	socket := mustNew(t, e, "pommel_socket")
	require.NoError(t, hilt.SetChild("blade", mustNew(t, e, "blade_steel")))
	require.NoError(t, hilt.SetChild("pommel", socket))
	tr := mustBuild(t, hilt)
	require.NoError(t, tr.Use(DefaultActor(), 4))

	snap, err := Save(hilt)
	require.NoError(t, err)

	// Through the value form, as the store does.
	decoded, err := SnapshotFromValue(snap.Value())
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)

	loaded, err := e.Load(decoded)
	require.NoError(t, err)
	loadedTree := mustBuild(t, loaded)

	assert.Equal(t, tr.Stats().Snapshot(), loadedTree.Stats().Snapshot())
	assert.Equal(t, tr.Complete(), loadedTree.Complete())
	assert.Equal(t, tr.IncompletePaths(), loadedTree.IncompletePaths())

	loadedBlade, _ := loaded.Child("blade")
	assert.Equal(t, 4, counterOf(t, loadedBlade).count)
}

func TestLoadFailuresReturnNoTree(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"unknown component", &Snapshot{Component: "nope"}},
		{"unknown slot", &Snapshot{Component: "hilt", Children: map[string]*Snapshot{
			"guard": {Component: "gem"},
		}}},
		{"unknown system", &Snapshot{Component: "hilt", Systems: map[string]value.Object{
			"ghost": {},
		}}},
		{"bad system state", &Snapshot{Component: "hilt", Children: map[string]*Snapshot{
			"blade": {Component: "blade_steel", Systems: map[string]value.Object{
				"counter": {"count": value.String("lots")},
			}},
		}}},
		{"nil child", &Snapshot{Component: "hilt", Children: map[string]*Snapshot{"blade": nil}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := e.Load(tt.snap)
			assert.Nil(t, n)
			require.Error(t, err)
			assert.True(t, IsLoadError(err))
		})
	}
}

func TestLoadSkipsSlotRules(t *testing.T) {
	e := newTestEngine(t)
	snap := &Snapshot{Component: "hilt", Children: map[string]*Snapshot{
		"blade": {Component: "blade_wood"},
	}}
	n, err := e.Load(snap)
	require.NoError(t, err)
	child, ok := n.Child("blade")
	require.True(t, ok)
	assert.Same(t, n.Tree(), child.Tree())
	assert.Equal(t, Path{"blade"}, child.Path())
}

func TestSnapshotFromValueRejectsMalformed(t *testing.T) {
	bad := []value.Value{
		value.String("hilt"),
		value.Object{},
		value.Object{"component": value.String("hilt"), "systems": value.List{}},
		value.Object{"component": value.String("hilt"), "children": value.Object{"blade": value.Int(1)}},
	}
	for _, v := range bad {
		_, err := SnapshotFromValue(v)
		assert.Error(t, err, value.Format(v))
	}
}

func TestObserverReceivesReports(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, WithObserver(obs))
	hilt := mustNew(t, e, "hilt")
	require.NoError(t, hilt.SetChild("blade", mustNew(t, e, "blade_steel")))
	mustBuild(t, hilt)

	require.Len(t, obs.reports, 1)
	r := obs.reports[0]
	assert.Equal(t, "hilt", r.Root)
	assert.Equal(t, 2, r.Nodes)
	assert.True(t, r.Complete)
	assert.Equal(t, 1, r.Applied())
	assert.NoError(t, r.Err)
}
