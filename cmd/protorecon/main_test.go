package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	protorecon "github.com/albertocavalcante/go-protorecon"
	"github.com/albertocavalcante/go-protorecon/internal/fixture"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.js")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerateAndCheck(t *testing.T) {
	bundle := writeBundle(t, fixture.Web)
	dir := t.TempDir()
	descriptors := filepath.Join(dir, "schema.pb")

	out, err := run(t, "generate", "--out", dir, "--descriptor-set", descriptors, bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 4 files")
	assert.FileExists(t, filepath.Join(dir, "waCommon", "WACommon.proto"))
	assert.FileExists(t, descriptors)

	out, err = run(t, "check", "--out", dir, bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "4 files up to date")

	require.NoError(t, os.Remove(filepath.Join(dir, "waAdv", "WAAdv.proto")))
	out, err = run(t, "check", "--out", dir, bundle)
	require.ErrorIs(t, err, protorecon.ErrDrift)
	assert.Contains(t, out, "+++ b/waAdv/WAAdv.proto")
}

func TestGraph(t *testing.T) {
	bundle := writeBundle(t, fixture.Web)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"text", []string{"graph", bundle}, "Dependency Tree:"},
		{"dot", []string{"graph", "--format", "dot", bundle}, "digraph modules {"},
		{"json", []string{"graph", "--format", "json", "--schema-only", bundle}, `"roots"`},
		{"why", []string{"graph", "--why", "WACommon.pb", bundle}, "-> WACommon.pb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	_, err := run(t, "graph", "--format", "svg", bundle)
	assert.ErrorContains(t, err, "unknown format")
}

func TestGraph_Cycles(t *testing.T) {
	bundle := writeBundle(t, `
__d("WAA.pb", ["WAB.pb"], function (t, n, r, o, a, i, l) {}, 1);
__d("WAB.pb", ["WAA.pb"], function (t, n, r, o, a, i, l) {}, 1);
`)

	out, err := run(t, "graph", "--cycles", bundle)
	require.NoError(t, err)
	assert.Equal(t, "WAA.pb -> WAB.pb\n", out)

	out, err = run(t, "graph", "--schema-only", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "dependency cycle: WAA.pb -> WAB.pb -> WAA.pb")
	assert.Contains(t, out, "WAB.pb")

	_, err = run(t, "generate", "--out", t.TempDir(), bundle)
	assert.ErrorContains(t, err, "dependency cycle")
}

func TestDialect(t *testing.T) {
	out, err := run(t, "dialect", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "armadillo")

	out, err = run(t, "dialect", "show", "armadillo")
	require.NoError(t, err)
	assert.Contains(t, out, "name: armadillo")

	_, err = run(t, "dialect", "show", "nope")
	assert.ErrorIs(t, err, protorecon.ErrUnknownDialect)
}

func TestGenerate_RequiresBundle(t *testing.T) {
	_, err := run(t, "generate")
	assert.Error(t, err)
}
