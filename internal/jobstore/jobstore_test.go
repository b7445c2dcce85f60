package jobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viame/batchrun/internal/dataset"
	"github.com/viame/batchrun/internal/pipeline"
)

func buildTestPipeline(t *testing.T, dir string) *pipeline.Config {
	t.Helper()
	templatePath := filepath.Join(dir, "detector.pipe")
	require.NoError(t, os.WriteFile(templatePath, []byte("config out = $ENV{DETECTIONS_CSV}\n"), 0o644))

	params := pipeline.NewParametersGroup("parameters")
	outputs := pipeline.NewOutputGroup("outputs")
	detCsv, err := pipeline.NewConfigOption("detections", "[DATASET]_dets.csv", "output_detections_file", "DETECTIONS_CSV", "")
	require.NoError(t, err)
	require.NoError(t, outputs.Add(detCsv))

	ports := pipeline.NewDatasetPortsGroup()

	cfg, err := pipeline.NewPipelineConfig("detector", templatePath, params, outputs, ports)
	require.NoError(t, err)
	return cfg
}

func buildTestDataset(t *testing.T, dir, name string) *dataset.VIAMEDataset {
	t.Helper()
	listPath := filepath.Join(dir, name+"_thermal.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("a.png\nb.png\n"), 0o644))
	return dataset.New(name, listPath, "", "")
}

func TestCreateJob_BuildsDirectoryTreeAndMetaStores(t *testing.T) {
	base := t.TempDir()
	cfg := buildTestPipeline(t, base)
	ds := buildTestDataset(t, base, "Kotz-2019:fl04:CENT")

	jobDir := filepath.Join(base, "job1")
	root, err := CreateJob(jobDir, cfg, []*dataset.VIAMEDataset{ds}, false)
	require.NoError(t, err)
	assert.Equal(t, jobDir, root)

	for _, d := range []string{"meta", "pipelines", "logs", "outputs_pending", "outputs_success", "outputs_error"} {
		assert.DirExists(t, filepath.Join(jobDir, d))
	}

	state, meta, err := LoadJob(jobDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kotz-2019_fl04_CENT"}, state.Tasks(nil))
	assert.Equal(t, TaskInitialized, state.GetStatus("Kotz-2019_fl04_CENT"))

	entry, ok := meta.Get("Kotz-2019_fl04_CENT")
	require.True(t, ok)
	assert.Equal(t, "Kotz-2019:fl04:CENT", entry.Dataset.Name)
	assert.FileExists(t, filepath.Join(jobDir, entry.CompiledRelpath))

	// Output ports are deliberately left unresolved at compile time (their
	// real value depends on a per-run timestamp the scheduler assigns
	// later) -- kwiver resolves $ENV{} for these from the real process
	// environment the scheduler supplies at run time instead.
	compiled, err := os.ReadFile(filepath.Join(jobDir, entry.CompiledRelpath))
	require.NoError(t, err)
	assert.Contains(t, string(compiled), "$ENV{DETECTIONS_CSV}")

	assert.Equal(t, "Kotz-2019_fl04_CENT_dets", entry.OutputConfig["detections"].Value())
}

func TestCreateJob_RefusesExistingDirectoryWithoutForce(t *testing.T) {
	base := t.TempDir()
	cfg := buildTestPipeline(t, base)
	ds := buildTestDataset(t, base, "d1")
	jobDir := filepath.Join(base, "job1")

	_, err := CreateJob(jobDir, cfg, []*dataset.VIAMEDataset{ds}, false)
	require.NoError(t, err)

	_, err = CreateJob(jobDir, cfg, []*dataset.VIAMEDataset{ds}, false)
	assert.Error(t, err)
}

func TestCreateJob_RollsBackOnFailureAfterDirectoryCreation(t *testing.T) {
	base := t.TempDir()
	cfg := buildTestPipeline(t, base)

	ports := pipeline.NewDatasetPortsGroup()
	ports.AddPort("required", "nonexistent_attribute", "REQUIRED_ENV")
	cfg.DatasetPorts = ports

	ds := buildTestDataset(t, base, "d1")
	jobDir := filepath.Join(base, "job1")

	_, err := CreateJob(jobDir, cfg, []*dataset.VIAMEDataset{ds}, false)
	require.Error(t, err)
	assert.NoDirExists(t, jobDir)
}

func TestJobState_ResumeInvariantResetsNonSuccessToInitialized(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "job_state.json")

	js, err := NewJobState(statePath, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, js.SetTaskStatus("a", TaskSuccess))
	require.NoError(t, js.SetTaskStatus("b", TaskRunning))
	require.NoError(t, js.SetTaskStatus("c", TaskError))

	reloaded, err := LoadJobState(statePath)
	require.NoError(t, err)
	assert.Equal(t, TaskSuccess, reloaded.GetStatus("a"))
	assert.Equal(t, TaskInitialized, reloaded.GetStatus("b"))
	assert.Equal(t, TaskInitialized, reloaded.GetStatus("c"))
}

func TestJobState_CurrentTaskIsFirstIncompleteInPersistedOrder(t *testing.T) {
	dir := t.TempDir()
	js, err := NewJobState(filepath.Join(dir, "job_state.json"), []string{"b", "a", "c"})
	require.NoError(t, err)

	assert.Equal(t, "a", js.CurrentTask())
	require.NoError(t, js.SetTaskStatus("a", TaskSuccess))
	assert.Equal(t, "b", js.CurrentTask())
	require.NoError(t, js.SetTaskStatus("b", TaskError))
	assert.Equal(t, "c", js.CurrentTask())
	require.NoError(t, js.SetTaskStatus("c", TaskCancelled))
	assert.Equal(t, "", js.CurrentTask())
	assert.True(t, js.IsJobComplete())
}
