package metrics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

func TestCollectorObservesBuilds(t *testing.T) {
	damage := stat.MustNew("damage", stat.KindInt, nil, stat.MergeAdd)
	set, err := component.NewSet(
		component.MustNew("hilt",
			component.WithSlot("blade", nil, component.TagRequired),
			component.WithStats(
				stat.Contribution{Entries: []stat.Instance{damage.Instance(value.Int(1))}},
				stat.Contribution{Rule: rule.Not{Term: rule.IsRoot{}}, Entries: []stat.Instance{damage.Instance(value.Int(9))}},
			),
		),
	)
	require.NoError(t, err)
	cat, err := stat.NewCatalog(damage)
	require.NoError(t, err)

	c := New()
	e := tree.NewEngine(tree.NewSystemTable(), tree.StaticDefinitions{Components: set, Stats: cat}, tree.WithObserver(c))

	n, err := e.New("hilt")
	require.NoError(t, err)
	require.NoError(t, n.Tree().Build())
	require.NoError(t, n.Tree().Build())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.builds.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.contributions.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.contributions.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.incomplete))
	assert.Equal(t, 1, testutil.CollectAndCount(c.buildDuration))
}

func TestCollectorLabelsFailures(t *testing.T) {
	c := New()
	c.BuildFinished(tree.BuildReport{Err: &tree.Error{Code: tree.ErrCodeMissingDependency, Message: "x"}})
	c.BuildFinished(tree.BuildReport{Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.builds.WithLabelValues("MISSING_DEPENDENCY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.builds.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.incomplete))
}

func TestCollectorReloaded(t *testing.T) {
	lib, errs := compiler.Link(&compiler.Document{
		Stats:      []*compiler.StatDef{{Key: "damage", Kind: "int", Merge: "add"}},
		Components: []*compiler.ComponentDef{{ID: "a"}, {ID: "b"}},
	}, compiler.Env{})
	require.Empty(t, errs)

	c := New()
	c.Reloaded(lib, []error{errors.New("skipped")})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.reloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.definitions.WithLabelValues("stat")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.definitions.WithLabelValues("component")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.skipped))

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), "kitbash_registry_reloads_total 1")
}
