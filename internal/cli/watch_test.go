package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/kitbash/internal/testutil"
)

// lockedBuffer is written by the watcher goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// copyDefinitions copies the fixture .cue files into a fresh directory.
func copyDefinitions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files, err := filepath.Glob(filepath.Join(testutil.DefinitionsDir(), "*.cue"))
	require.NoError(t, err)
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.Base(f)), data, 0644))
	}
	return dir
}

func TestWatchReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := copyDefinitions(t)
	out, diag := &lockedBuffer{}, &lockedBuffer{}

	opts := textOpts()
	opts.Verbose = true
	cmd := NewWatchCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs([]string{dir, "--debounce", "20ms", "--for", "3s", "--metrics"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(diag.String(), "Watching "+dir)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "↻ generation 1: 4 stat(s), 5 component(s), 0 skipped")

	// Renamed into place so the watcher never sees a half-written file.
	staged := filepath.Join(t.TempDir(), "extra.cue")
	require.NoError(t, os.WriteFile(staged,
		[]byte("package defs\n\nstat: sharpness: {kind: \"int\", merge: \"add\"}\n"), 0644))
	require.NoError(t, os.Rename(staged, filepath.Join(dir, "extra.cue")))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "↻ generation 2: 5 stat(s), 5 component(s), 0 skipped")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Contains(t, diag.String(), "kitbash_registry_reloads_total 2")
}

func TestWatchStopsAfterDuration(t *testing.T) {
	defer goleak.VerifyNone(t)

	out, err := execute(t, jsonOpts(), NewWatchCommand, copyDefinitions(t), "--for", "50ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"generation":1,"stats":4,"components":5}`, lines[0])
}

func TestWatchMissingDirectory(t *testing.T) {
	_, err := execute(t, textOpts(), NewWatchCommand, "/nonexistent/definitions", "--for", "10ms")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
