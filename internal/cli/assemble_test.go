package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/rule"
)

func TestParseAttachment(t *testing.T) {
	tests := []struct {
		arg     string
		want    Attachment
		wantErr bool
	}{
		{arg: "blade=blade_steel", want: Attachment{Path: rule.Path{"blade"}, Component: "blade_steel"}},
		{arg: "blade/gem=ruby", want: Attachment{Path: rule.Path{"blade", "gem"}, Component: "ruby"}},
		{arg: "blade", wantErr: true},
		{arg: "=blade_steel", wantErr: true},
		{arg: "blade=", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseAttachment(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssembleText(t *testing.T) {
	out, err := execute(t, textOpts(), NewAssembleCommand, "hilt", "blade=blade_steel")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ hilt: complete")
	assert.Contains(t, out, "damage: 5")
	assert.Contains(t, out, "\nHilt\n")
	assert.Contains(t, out, "Part: Steel Blade")
	assert.Contains(t, out, "[10/10]")
}

func TestAssembleJSON(t *testing.T) {
	out, err := execute(t, jsonOpts(), NewAssembleCommand, "hilt", "blade=blade_steel", "pommel=pommel_brass")
	require.NoError(t, err)

	var view TreeView
	resp := decode(t, out, &view)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "hilt", view.Root)
	assert.True(t, view.Complete)
	assert.Empty(t, view.Incomplete)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(view.Stats, &stats))
	assert.Equal(t, 6.0, stats["damage"], "brass pommel adds 1 to a metal blade")
	assert.Equal(t, 3.0, stats["weight"])

	require.NotNil(t, view.Representation)
	assert.Equal(t, "Hilt", view.Representation.Name)
	require.NotNil(t, view.Representation.Bar)
	assert.Equal(t, 10, view.Representation.Bar.Max)
}

func TestAssembleIncomplete(t *testing.T) {
	out, err := execute(t, textOpts(), NewAssembleCommand, "hilt", "pommel=pommel_brass")
	require.NoError(t, err, "an incomplete tree still builds")
	assert.Contains(t, out, "✗ hilt: incomplete")
	assert.Contains(t, out, "missing: blade")
}

func TestAssembleWearAndLocale(t *testing.T) {
	out, err := execute(t, jsonOpts(), NewAssembleCommand,
		"hilt", "blade=blade_honed", "--use", "3", "--locale", "de")
	require.NoError(t, err)

	var view TreeView
	decode(t, out, &view)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(view.Stats, &stats))
	assert.Equal(t, 4.0, stats["damage"], "a broken honed blade loses its bonus")
	assert.Equal(t, true, stats["broken"])

	require.NotNil(t, view.Representation)
	assert.Equal(t, []string{"Teil: Honed Blade"}, view.Representation.Lines)
	require.NotNil(t, view.Representation.Bar)
	assert.Equal(t, 0, view.Representation.Bar.Value)
	assert.Equal(t, 3, view.Representation.Bar.Max)
}

func TestAssembleRepair(t *testing.T) {
	out, err := execute(t, jsonOpts(), NewAssembleCommand,
		"hilt", "blade=blade_honed", "--use", "3", "--repair", "2")
	require.NoError(t, err)

	var view TreeView
	decode(t, out, &view)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(view.Stats, &stats))
	assert.Equal(t, 7.0, stats["damage"])
	assert.Equal(t, 2, view.Representation.Bar.Value)
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		code     string
		exitCode int
	}{
		{"incompatible child", []string{"hilt", "blade=blade_wood"}, "INCOMPATIBLE_CHILD", ExitFailure},
		{"no such slot", []string{"hilt", "gem=blade_steel"}, "NO_SUCH_SLOT", ExitFailure},
		{"unknown root", []string{"ghost"}, "UNKNOWN_COMPONENT", ExitFailure},
		{"unknown part", []string{"hilt", "blade=ghost"}, "UNKNOWN_COMPONENT", ExitFailure},
		{"malformed attachment", []string{"hilt", "blade"}, ErrCodeArgs, ExitCommandError},
		{"missing parent part", []string{"hilt", "pommel/gem=blade_steel"}, ErrCodeGeneric, ExitCommandError},
		{"bad locale", []string{"hilt", "--locale", "!!"}, ErrCodeArgs, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, jsonOpts(), NewAssembleCommand, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decode(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestAssembleMissingDefinitions(t *testing.T) {
	opts := textOpts()
	opts.Definitions = t.TempDir()

	_, err := execute(t, opts, NewAssembleCommand, "hilt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAssembleMetrics(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewAssembleCommand(textOpts())
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs([]string{"hilt", "blade=blade_honed", "--use", "1", "--metrics"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, diag.String(), `kitbash_tree_builds_total{result="ok"} 2`)
	assert.Contains(t, diag.String(), "kitbash_registry_reloads_total 1")
	assert.NotContains(t, out.String(), "kitbash_tree_builds_total")
}
