package pipeline

import (
	"os"
	"path/filepath"

	"github.com/viame/batchrun/internal/errs"
	"gopkg.in/yaml.v3"
)

// Manifest is a read-only, once-loaded mapping of pipeline-name -> Config.
type Manifest struct {
	pipelines map[string]*Config
}

// Get returns the named pipeline, or nil if absent.
func (m *Manifest) Get(name string) *Config { return m.pipelines[name] }

// Names returns every pipeline name in the manifest.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.pipelines))
	for n := range m.pipelines {
		names = append(names, n)
	}
	return names
}

// yamlOption mirrors one entry of parameters_config/output_config (§6).
type yamlOption struct {
	Name        string `yaml:"name"`
	Default     string `yaml:"default"`
	Type        string `yaml:"type"`
	EnvVariable string `yaml:"env_variable"`
	Description string `yaml:"description"`
}

type yamlAdapter struct {
	DatasetAttribute string `yaml:"dataset_attribute"`
	EnvVariable      string `yaml:"env_variable"`
}

type yamlPipeline struct {
	Path                    string                 `yaml:"path"`
	ParametersConfig        []yamlOption           `yaml:"parameters_config"`
	OutputConfig            []yamlOption           `yaml:"output_config"`
	DatasetPipelineAdapters map[string]yamlAdapter `yaml:"dataset_pipeline_adapters"`
}

type yamlRoot struct {
	PipelineManifest map[string]yamlPipeline `yaml:"PipelineManifest"`
}

// LoadManifest reads and validates a pipeline manifest YAML file (§6).
// Relative template paths are resolved against the manifest file's own
// directory, the way a human editing the manifest alongside its templates
// would expect.
func LoadManifest(manifestPath string) (*Manifest, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindMissingConfigGroup, err, "reading pipeline manifest %q", manifestPath)
	}

	var root yamlRoot
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, errs.Wrap(errs.KindMissingConfigGroup, err, "parsing pipeline manifest %q", manifestPath)
	}

	baseDir := filepath.Dir(manifestPath)
	pipelines := make(map[string]*Config, len(root.PipelineManifest))

	for name, yp := range root.PipelineManifest {
		templatePath := yp.Path
		if !filepath.IsAbs(templatePath) {
			templatePath = filepath.Join(baseDir, templatePath)
		}

		parameters := NewParametersGroup("parameters")
		for _, yo := range yp.ParametersConfig {
			opt, err := NewConfigOption(yo.Name, yo.Default, yo.Type, yo.EnvVariable, yo.Description)
			if err != nil {
				return nil, err
			}
			if err := parameters.Add(opt); err != nil {
				return nil, err
			}
		}

		outputs := NewOutputGroup("outputs")
		for _, yo := range yp.OutputConfig {
			opt, err := NewConfigOption(yo.Name, yo.Default, yo.Type, yo.EnvVariable, yo.Description)
			if err != nil {
				return nil, err
			}
			if err := outputs.Add(opt); err != nil {
				return nil, err
			}
		}

		datasetPorts := NewDatasetPortsGroup()
		for portName, adapter := range yp.DatasetPipelineAdapters {
			datasetPorts.AddPort(portName, adapter.DatasetAttribute, adapter.EnvVariable)
		}

		cfg, err := NewPipelineConfig(name, templatePath, parameters, outputs, datasetPorts)
		if err != nil {
			return nil, err
		}
		pipelines[name] = cfg
	}

	return &Manifest{pipelines: pipelines}, nil
}
