package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
Datasets:
  Kotz-2019:
    fl04:
      CENT:
        thermal_image_list: thermal.txt
        color_image_list: color.txt
      LEFT:
        thermal_image_list: thermal_left.txt
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifest_FlattensNestedKeysWithColonSeparator(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	keys := m.ListDatasetKeys()
	assert.Equal(t, []string{"Kotz-2019:fl04:CENT", "Kotz-2019:fl04:LEFT"}, keys)
}

func TestGetDataset_SupportsWildcardKeyMatching(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	matches, err := m.GetDataset("Kotz-2019:fl04:.*")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Contains(t, matches, "Kotz-2019:fl04:CENT")
}

func TestLoadManifest_RejectsDatasetWithNoImageList(t *testing.T) {
	_, err := LoadManifest(writeManifest(t, `
Datasets:
  bad:
    transformation_file: x.yaml
`))
	require.Error(t, err)
}
