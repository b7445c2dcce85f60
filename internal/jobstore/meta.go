package jobstore

import (
	"encoding/json"

	"github.com/viame/batchrun/internal/dataset"
	"github.com/viame/batchrun/internal/errs"
	"github.com/viame/batchrun/internal/pipeline"
)

// datasetRecordJSON mirrors VIAMEDataset's persisted fields.
type datasetRecordJSON struct {
	Name               string `json:"name"`
	ColorImageList     string `json:"color_image_list"`
	ThermalImageList   string `json:"thermal_image_list"`
	TransformationFile string `json:"transformation_file"`
}

// DatasetEntry is one task's slice of datasets_meta.json: the compiled
// pipeline's path (relative to the job root), the dataset record it was
// compiled against, and the output-group snapshot with [DATASET] already
// expanded and locked.
type DatasetEntry struct {
	CompiledRelpath string                   `json:"compiled_fp"`
	Dataset         datasetRecordJSON        `json:"dataset"`
	OutputConfig    map[string]*pipeline.ConfigOption `json:"output_config"`
}

// JobMeta is the read side of meta/datasets_meta.json and
// meta/pipelines_meta.json: per-task compiled-pipeline/dataset/output
// snapshots plus the pipeline snapshot they were all compiled from.
type JobMeta struct {
	paths    Paths
	entries  map[string]DatasetEntry
	pipeline json.RawMessage
}

// LoadJobMeta reads both meta JSON files for root.
func LoadJobMeta(root string) (*JobMeta, error) {
	paths := NewPaths(root)

	var entries map[string]DatasetEntry
	if err := readJSON(paths.DatasetsMetaFile(), &entries); err != nil {
		return nil, errs.Wrap(errs.KindJobInit, err, "loading %s", paths.DatasetsMetaFile())
	}

	var pipelineSnapshot json.RawMessage
	if err := readJSON(paths.PipelinesMetaFile(), &pipelineSnapshot); err != nil {
		return nil, errs.Wrap(errs.KindJobInit, err, "loading %s", paths.PipelinesMetaFile())
	}

	return &JobMeta{paths: paths, entries: entries, pipeline: pipelineSnapshot}, nil
}

// Keys returns every TaskKey present in datasets_meta.json.
func (m *JobMeta) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Get returns the entry for taskKey, or (zero, false) if absent.
func (m *JobMeta) Get(taskKey string) (DatasetEntry, bool) {
	e, ok := m.entries[taskKey]
	return e, ok
}

// toRecord converts a dataset.VIAMEDataset into its persisted record form.
func toRecord(ds *dataset.VIAMEDataset) datasetRecordJSON {
	return datasetRecordJSON{
		Name:               ds.Name(),
		ColorImageList:     ds.ColorImageList,
		ThermalImageList:   ds.ThermalImageList,
		TransformationFile: ds.TransformationFile,
	}
}

// ToDataset reconstructs a dataset.VIAMEDataset from a persisted record.
func (e DatasetEntry) ToDataset() *dataset.VIAMEDataset {
	return dataset.New(e.Dataset.Name, e.Dataset.ThermalImageList, e.Dataset.ColorImageList, e.Dataset.TransformationFile)
}
