package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/viame/batchrun/internal/errs"
)

// DatasetAttributeGetter is satisfied by anything the core can pull a named
// dataset attribute out of -- in production that's *dataset.VIAMEDataset,
// but the interface keeps this package from depending on dataset at all.
type DatasetAttributeGetter interface {
	Get(attribute string) (value string, ok bool)
	Name() string
}

// port is one entry of a DatasetPortsGroup: a named channel that wires a
// dataset attribute into the pipeline environment.
type port struct {
	EnvVariable      string `json:"env_variable"`
	DatasetAttribute string `json:"dataset_attribute"`
}

// DatasetPortsGroup is not a ConfigOption list -- it is a mapping of
// logical port name -> {dataset_attribute, env_variable} per the pipeline
// manifest's dataset_pipeline_adapters (§6).
type DatasetPortsGroup struct {
	ports map[string]port
}

// NewDatasetPortsGroup builds an empty group.
func NewDatasetPortsGroup() *DatasetPortsGroup {
	return &DatasetPortsGroup{ports: map[string]port{}}
}

// AddPort registers a logical port name mapping to a dataset attribute and
// an environment variable.
func (g *DatasetPortsGroup) AddPort(name, datasetAttribute, envVariable string) {
	g.ports[name] = port{EnvVariable: envVariable, DatasetAttribute: datasetAttribute}
}

// GetEnvPorts resolves every port's dataset attribute into an
// env_variable -> value mapping. When missingOk is false, any port whose
// dataset attribute is absent is collected into a MissingPortError instead
// of silently omitted.
func (g *DatasetPortsGroup) GetEnvPorts(dataset DatasetAttributeGetter, missingOk bool) (map[string]string, error) {
	out := make(map[string]string, len(g.ports))
	var missingAttrs []string

	// Deterministic iteration order for reproducible error messages.
	names := make([]string, 0, len(g.ports))
	for name := range g.ports {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := g.ports[name]
		value, ok := dataset.Get(p.DatasetAttribute)
		if !ok {
			if missingOk {
				continue
			}
			missingAttrs = append(missingAttrs, p.DatasetAttribute)
			continue
		}
		out[p.EnvVariable] = value
	}

	if len(missingAttrs) > 0 && !missingOk {
		return nil, &errs.MissingPortError{DatasetName: dataset.Name(), MissingPorts: missingAttrs}
	}
	return out, nil
}

// MarshalJSON renders the group's ports keyed by logical port name.
func (g *DatasetPortsGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ports)
}

// UnmarshalJSON is the reverse of MarshalJSON.
func (g *DatasetPortsGroup) UnmarshalJSON(data []byte) error {
	g.ports = map[string]port{}
	return json.Unmarshal(data, &g.ports)
}
