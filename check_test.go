package protorecon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()
	result, err := Generate(ctx, webBundles(), WithConcurrency(2))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, result.WriteFiles(ctx, dir))

	report, err := Check(dir, result.Outputs)
	require.NoError(t, err)
	assert.True(t, report.IsEmpty())

	// Edit one file, remove another and leave a file generation no longer
	// produces.
	common := filepath.Join(dir, "waCommon", "WACommon.proto")
	data, err := os.ReadFile(common)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(common, append(data, []byte("// edited\n")...), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "waAdv", "WAAdv.proto")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "waOld"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "waOld", "WAOld.proto"), []byte("syntax = \"proto2\";\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a proto file\n"), 0o644))

	report, err = Check(dir, result.Outputs)
	require.ErrorIs(t, err, ErrDrift)
	require.NotNil(t, report)

	var got []FileDrift
	for _, f := range report.Files {
		got = append(got, FileDrift{Path: f.Path, Kind: f.Kind})
	}
	assert.Equal(t, []FileDrift{
		{Path: "waAdv/WAAdv.proto", Kind: DriftMissing},
		{Path: "waCommon/WACommon.proto", Kind: DriftModified},
		{Path: "waOld/WAOld.proto", Kind: DriftStale},
	}, got)

	modified := report.Files[1]
	assert.Contains(t, modified.Diff, "--- a/waCommon/WACommon.proto")
	assert.Contains(t, modified.Diff, "+++ b/waCommon/WACommon.proto")
	assert.Contains(t, modified.Diff, "-// edited")
	assert.Contains(t, report.Files[0].Diff, "+package WAAdv;")
	assert.Empty(t, report.Files[2].Diff)
	assert.ErrorContains(t, err, "1 missing, 1 modified, 1 stale")
}

func TestDiffOutputs_MissingDir(t *testing.T) {
	result, err := Generate(context.Background(), webBundles())
	require.NoError(t, err)

	report, err := DiffOutputs(filepath.Join(t.TempDir(), "absent"), result.Outputs)
	require.NoError(t, err)
	assert.Equal(t, len(result.Outputs), report.Count(DriftMissing))
}

func TestWriteFiles_Overwrites(t *testing.T) {
	ctx := context.Background()
	result, err := Generate(ctx, webBundles())
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "waCommon", "WACommon.proto")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteFiles(ctx, dir, result.Outputs, 0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out, _ := result.Output("WACommon")
	assert.Equal(t, string(out.Content), string(data))
}
