package jobstore

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/viame/batchrun/internal/compiler"
	"github.com/viame/batchrun/internal/dataset"
	"github.com/viame/batchrun/internal/errs"
	"github.com/viame/batchrun/internal/pipeline"
)

// CreateJob materialises a brand-new job directory for pipeline against
// datasets, per §4.4's create_job contract. If force is true and dir
// already exists, it is removed first; otherwise an existing dir is a
// fatal JobInit error. Any failure after directory creation rolls the
// whole tree back via os.RemoveAll before the error is returned.
func CreateJob(dir string, cfg *pipeline.Config, datasets []*dataset.VIAMEDataset, force bool) (root string, err error) {
	if _, statErr := os.Stat(dir); statErr == nil {
		if !force {
			return "", errs.New(errs.KindJobInit, "job directory %q already exists", dir)
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return "", errs.Wrap(errs.KindJobInit, rmErr, "removing existing job directory %q", dir)
		}
	}

	paths := NewPaths(dir)
	for _, d := range paths.Dirs() {
		if mkErr := os.MkdirAll(d, 0o755); mkErr != nil {
			os.RemoveAll(dir)
			return "", errs.Wrap(errs.KindJobInit, mkErr, "creating job directory tree under %q", dir)
		}
	}

	taskKeys, createErr := createMeta(paths, cfg, datasets)
	if createErr != nil {
		os.RemoveAll(dir)
		return "", createErr
	}

	if _, stateErr := NewJobState(paths.JobStateFile(), taskKeys); stateErr != nil {
		os.RemoveAll(dir)
		return "", stateErr
	}

	return dir, nil
}

// createMeta builds and persists pipelines_meta.json and datasets_meta.json,
// returning the full set of TaskKeys it allocated.
func createMeta(paths Paths, cfg *pipeline.Config, datasets []*dataset.VIAMEDataset) ([]string, error) {
	entries := make(map[string]DatasetEntry, len(datasets))
	taskKeys := make([]string, 0, len(datasets))

	// Missing dataset ports are collected across every dataset in the job
	// rather than failing on the first one, so a caller fixing up a dataset
	// manifest sees every gap in one pass instead of one-at-a-time.
	var portErrs *multierror.Error

	for _, ds := range datasets {
		taskKey := ds.TaskKey()
		if _, dup := entries[taskKey]; dup {
			return nil, errs.New(errs.KindJobInit, "duplicate task key %q derived from dataset %q", taskKey, ds.Name())
		}

		outputSnapshot := cfg.Outputs.Clone()
		for _, opt := range outputSnapshot.Options() {
			opt.ExpandDatasetMacroAndLock(taskKey)
		}

		envPorts, portErr := cfg.DatasetPorts.GetEnvPorts(ds, false)
		if portErr != nil {
			portErrs = multierror.Append(portErrs, portErr)
			continue
		}
		env := map[string]string{}
		for k, v := range cfg.Parameters.GetEnvPorts() {
			env[k] = v
		}
		for k, v := range envPorts {
			env[k] = v
		}

		compiledText, compileErr := compiler.Compile(cfg.TemplatePath, cfg.Directory, env)
		if compileErr != nil {
			return nil, compileErr
		}

		compiledFilename := taskKey + "-" + cfg.Name + ".pipe"
		compiledAbs := filepath.Join(paths.PipelinesDir(), compiledFilename)
		if writeErr := os.WriteFile(compiledAbs, []byte(compiledText), 0o644); writeErr != nil {
			return nil, errs.Wrap(errs.KindJobInit, writeErr, "writing compiled pipeline %q", compiledAbs)
		}

		relPath, relErr := filepath.Rel(paths.Root, compiledAbs)
		if relErr != nil {
			relPath = compiledAbs
		}

		outputConfig := make(map[string]*pipeline.ConfigOption, len(outputSnapshot.Options()))
		for _, opt := range outputSnapshot.Options() {
			outputConfig[opt.Name()] = opt
		}

		entries[taskKey] = DatasetEntry{
			CompiledRelpath: relPath,
			Dataset:         toRecord(ds),
			OutputConfig:    outputConfig,
		}
		taskKeys = append(taskKeys, taskKey)
	}

	if err := portErrs.ErrorOrNil(); err != nil {
		return nil, err
	}

	if err := writeJSONAtomic(paths.DatasetsMetaFile(), entries); err != nil {
		return nil, errs.Wrap(errs.KindJobInit, err, "writing %s", paths.DatasetsMetaFile())
	}
	if err := writeJSONAtomic(paths.PipelinesMetaFile(), cfg); err != nil {
		return nil, errs.Wrap(errs.KindJobInit, err, "writing %s", paths.PipelinesMetaFile())
	}

	return taskKeys, nil
}

// LoadJob reads both the job-state and job-meta stores for an existing job
// directory, the (JobState, JobMeta) pair load_job returns.
func LoadJob(dir string) (*JobState, *JobMeta, error) {
	paths := NewPaths(dir)
	state, err := LoadJobState(paths.JobStateFile())
	if err != nil {
		return nil, nil, err
	}
	meta, err := LoadJobMeta(dir)
	if err != nil {
		return nil, nil, err
	}
	return state, meta, nil
}
