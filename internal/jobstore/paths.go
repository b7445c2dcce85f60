package jobstore

import "path/filepath"

// Paths centralises the fixed on-disk layout rooted at a job directory
// (§3). Implementations must not reorder or rename these directories.
type Paths struct {
	Root string
}

func NewPaths(root string) Paths { return Paths{Root: root} }

func (p Paths) MetaDir() string           { return filepath.Join(p.Root, "meta") }
func (p Paths) PipelinesDir() string      { return filepath.Join(p.Root, "pipelines") }
func (p Paths) LogsDir() string           { return filepath.Join(p.Root, "logs") }
func (p Paths) OutputsPendingDir() string { return filepath.Join(p.Root, "outputs_pending") }
func (p Paths) OutputsSuccessDir() string { return filepath.Join(p.Root, "outputs_success") }
func (p Paths) OutputsErrorDir() string   { return filepath.Join(p.Root, "outputs_error") }

func (p Paths) JobStateFile() string        { return filepath.Join(p.MetaDir(), "job_state.json") }
func (p Paths) PipelinesMetaFile() string   { return filepath.Join(p.MetaDir(), "pipelines_meta.json") }
func (p Paths) DatasetsMetaFile() string    { return filepath.Join(p.MetaDir(), "datasets_meta.json") }

// Dirs returns every directory CreateJob must make, in creation order.
func (p Paths) Dirs() []string {
	return []string{
		p.Root,
		p.PipelinesDir(),
		p.MetaDir(),
		p.LogsDir(),
		p.OutputsErrorDir(),
		p.OutputsSuccessDir(),
		p.OutputsPendingDir(),
	}
}

// LogFile returns the per-task log file path for taskKey.
func (p Paths) LogFile(taskKey string) string {
	return filepath.Join(p.LogsDir(), "kwiver-output-"+taskKey+".log")
}
