package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/registry"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/systems"
	"github.com/roach88/kitbash/internal/tree"
)

// DefinitionsDir returns the absolute path of the shared fixture
// definitions: hilt, blade_steel, blade_wood, blade_honed, pommel_brass.
func DefinitionsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", "definitions")
}

// Fixture is a loaded registry with an engine over it.
type Fixture struct {
	Registry *registry.Registry
	Engine   *tree.Engine
}

// NewFixture loads DefinitionsDir with the built-in systems.
func NewFixture(t testing.TB, opts ...tree.EngineOption) *Fixture {
	t.Helper()
	rules := rule.DefaultRegistry()
	table := systems.NewTable(rules)
	reg, err := registry.Load(DefinitionsDir(), table, registry.WithRules(rules))
	require.NoError(t, err)
	require.Empty(t, reg.Skipped(), "fixture definitions must all load")
	return &Fixture{Registry: reg, Engine: tree.NewEngine(table, reg, opts...)}
}

// New instantiates component id.
func (f *Fixture) New(t testing.TB, id string) *tree.Node {
	t.Helper()
	n, err := f.Engine.New(id)
	require.NoError(t, err)
	return n
}

// Hilt returns a hilt with a steel blade attached, unbuilt.
func (f *Fixture) Hilt(t testing.TB) *tree.Node {
	t.Helper()
	hilt := f.New(t, "hilt")
	require.NoError(t, hilt.SetChild("blade", f.New(t, "blade_steel")))
	return hilt
}
