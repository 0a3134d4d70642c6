package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/systems"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

const statsFile = `package defs

stat: damage: {kind: "int", merge: "add"}
`

const partsFile = `package defs

component: "core:hilt": {
	slot: blade: {tags: ["required"], accepts: {has_tag: "blade"}}
}

component: "core:blade_steel": {
	tags: ["blade"]
	stats: [{values: {damage: 5}}]
}
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	return dir
}

func systemTable() *tree.SystemTable {
	return systems.NewTable(rule.DefaultRegistry())
}

func TestLoadServesDefinitions(t *testing.T) {
	dir := newDir(t, map[string]string{"stats.cue": statsFile, "parts.cue": partsFile})
	reg, err := Load(dir, systemTable())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), reg.Generation())
	assert.Empty(t, reg.Skipped())
	assert.Equal(t, []string{"core:blade_steel", "core:hilt"}, reg.Library().Components.IDs())

	e := tree.NewEngine(systemTable(), reg)
	hilt, err := e.New("core:hilt")
	require.NoError(t, err)
	blade, err := e.New("core:blade_steel")
	require.NoError(t, err)
	require.NoError(t, hilt.SetChild("blade", blade))
	require.NoError(t, hilt.Tree().Build())

	damage, ok := reg.Stat("damage")
	require.True(t, ok)
	assert.Equal(t, value.Int(5), hilt.Tree().Value(damage))
}

func TestLoadSkipsAndLogsBadDefinitions(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dir := newDir(t, map[string]string{
		"stats.cue": statsFile,
		"parts.cue": partsFile,
		"bad.cue": `package defs

component: "core:glowing": {system: glow: {type: "glow"}}
component: "core:heavy": {stats: [{values: {weight: 3}}]}
`,
	})

	reg, err := Load(dir, systemTable(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Len(t, reg.Skipped(), 2)
	assert.Equal(t, []string{"core:blade_steel", "core:hilt"}, reg.Library().Components.IDs())

	entries := logs.FilterMessage("skipped definition").All()
	require.Len(t, entries, 2)
	ids := []any{entries[0].ContextMap()["id"], entries[1].ContextMap()["id"]}
	assert.ElementsMatch(t, []any{"core:glowing", "core:heavy"}, ids)
}

func TestLoadDirectoryErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), systemTable())
	assert.Error(t, err)

	_, err = Load(t.TempDir(), systemTable())
	assert.ErrorIs(t, err, ErrNoFiles)

	dir := newDir(t, map[string]string{"broken.cue": "package defs\n\ncomponent: {"})
	_, err = Load(dir, systemTable())
	assert.Error(t, err)
}

func TestReloadReplacesWholesale(t *testing.T) {
	dir := newDir(t, map[string]string{"stats.cue": statsFile, "parts.cue": partsFile})

	var seen []int
	reg, err := Load(dir, systemTable(), OnReload(func(lib *compiler.Library, _ []error) {
		seen = append(seen, lib.Components.Len())
	}))
	require.NoError(t, err)

	old, ok := reg.Component("core:hilt")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "parts.cue")))
	writeFile(t, dir, "gem.cue", "package defs\n\ncomponent: gem: {tags: [\"stone\"]}\n")
	require.NoError(t, reg.Reload())

	assert.Equal(t, uint64(2), reg.Generation())
	assert.Equal(t, []string{"gem"}, reg.Library().Components.IDs())
	_, ok = reg.Component("core:hilt")
	assert.False(t, ok)
	assert.Equal(t, []int{2, 1}, seen)

	// Components handed out earlier are immutable and stay usable.
	assert.Equal(t, "core:hilt", old.ID)
}

func TestReloadFailureKeepsPrevious(t *testing.T) {
	dir := newDir(t, map[string]string{"stats.cue": statsFile, "parts.cue": partsFile})
	reg, err := Load(dir, systemTable())
	require.NoError(t, err)

	writeFile(t, dir, "parts.cue", "package defs\n\ncomponent: {")
	assert.Error(t, reg.Reload())

	assert.Equal(t, uint64(1), reg.Generation())
	_, ok := reg.Component("core:hilt")
	assert.True(t, ok)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := newDir(t, map[string]string{"stats.cue": statsFile})
	reloaded := make(chan uint64, 8)
	var reg *Registry
	reg, err := Load(dir, systemTable(), OnReload(func(*compiler.Library, []error) {
		if reg != nil {
			reloaded <- reg.Generation()
		}
	}))
	require.NoError(t, err)

	w, err := NewWatcher(reg, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeFile(t, dir, "parts.cue", partsFile)
	writeFile(t, dir, "notes.txt", "ignored")

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing a definition file")
	}
	_, ok := reg.Component("core:hilt")
	assert.True(t, ok)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(t.TempDir(), systemTable())
	w, err := NewWatcher(reg)
	require.NoError(t, err)
	w.Stop()
}
