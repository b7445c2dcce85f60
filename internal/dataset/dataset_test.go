package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskKey_CollapsesUnsafeRunsAndTrimsTrailingUnderscore(t *testing.T) {
	ds := New("Kotz-2019:fl04:CENT!!", "", "", "")
	assert.Equal(t, "Kotz-2019_fl04_CENT", ds.TaskKey())
}

func TestContains_RequiresPathToResolveOnDisk(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "thermal.txt")
	require.NoError(t, os.WriteFile(existing, []byte("a.png\n"), 0o644))

	ds := New("d", existing, filepath.Join(dir, "missing.txt"), "")
	assert.True(t, ds.Contains("thermal_image_list"))
	assert.False(t, ds.Contains("color_image_list"))
	assert.False(t, ds.Contains("transformation_file"))
}

func TestImageCount_SkipsBlankLinesAndCachesResult(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "images.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("a.png\n\nb.png\n  \nc.png\n"), 0o644))

	ds := New("d", listPath, "", "")
	assert.Equal(t, 3, ds.ThermalImageCount())
	// second call hits the cache; overwriting the file must not change the result
	require.NoError(t, os.WriteFile(listPath, []byte("only.png\n"), 0o644))
	assert.Equal(t, 3, ds.ThermalImageCount())
}

func TestSortedAbsolutePaths_ResolvesRelativeEntriesAgainstListDir(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "images.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("b.png\n"+filepath.Join(dir, "a.png")+"\n"), 0o644))

	paths, err := SortedAbsolutePaths(listPath)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.png"), paths[1])
}
