package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/viame/batchrun/internal/errs"
)

// Config is a named bundle of a pipeline template plus its parameter,
// output and dataset-port groups.
//
// Invariant: TemplatePath exists on disk at construction time.
type Config struct {
	Name         string
	TemplatePath string
	Directory    string
	Parameters   *ConfigOptionGroup
	Outputs      *ConfigOptionGroup
	DatasetPorts *DatasetPortsGroup
}

// NewPipelineConfig validates that templatePath exists before returning a
// Config wired to it.
func NewPipelineConfig(name, templatePath string, parameters, outputs *ConfigOptionGroup, datasetPorts *DatasetPortsGroup) (*Config, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return nil, errs.Wrap(errs.KindMissingConfigGroup, err, "pipeline %q: template_path %q does not exist", name, templatePath)
	}
	return &Config{
		Name:         name,
		TemplatePath: templatePath,
		Directory:    filepath.Dir(templatePath),
		Parameters:   parameters,
		Outputs:      outputs,
		DatasetPorts: datasetPorts,
	}, nil
}

// pipelineConfigJSON is the wire schema for the pipelines_meta.json snapshot
// (§6: "snapshot of the chosen pipeline (to_dict())").
type pipelineConfigJSON struct {
	Name         string                   `json:"name"`
	TemplatePath string                   `json:"template_path"`
	Parameters   map[string]*ConfigOption `json:"parameters"`
	Outputs      map[string]*ConfigOption `json:"outputs"`
	DatasetPorts *DatasetPortsGroup       `json:"dataset_ports"`
}

// MarshalJSON implements PipelineConfig.to_dict().
func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(pipelineConfigJSON{
		Name:         c.Name,
		TemplatePath: c.TemplatePath,
		Parameters:   c.Parameters.ToMap(),
		Outputs:      c.Outputs.ToMap(),
		DatasetPorts: c.DatasetPorts,
	})
}
