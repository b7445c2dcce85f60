package dataset

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/viame/batchrun/internal/errs"
	"gopkg.in/yaml.v3"
)

// datasetAttributeKeys are the leaf keys that mark a yaml node as a dataset
// record rather than a further level of nesting.
var datasetAttributeKeys = map[string]bool{
	"thermal_image_list": true,
	"color_image_list":   true,
	"transformation_file": true,
}

const keySep = ":"

// Manifest is a read-only dataset manifest: a tree of nested groups whose
// leaves are dataset records, addressed by a colon-joined key path (e.g.
// "Kotz-2019:fl04:CENT"). This is the core's one concrete, supplementary
// dataset-manifest collaborator -- the spec treats the manifest format
// itself as opaque/external, but a runnable CLI needs *some* loader wired
// to pipeline.DatasetAttributeGetter.
type Manifest struct {
	keys map[string]*VIAMEDataset
}

// LoadManifest reads a YAML dataset manifest rooted at top-level key
// "Datasets" and flattens it into addressable dataset records.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.DatasetManifestError{Kind: errs.KindDatasetFileNotFound, Message: fmt.Sprintf("reading dataset manifest %q: %v", path, err)}
	}

	var root struct {
		Datasets map[string]interface{} `yaml:"Datasets"`
	}
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &errs.DatasetManifestError{Kind: errs.KindDatasetManifest, Message: fmt.Sprintf("parsing dataset manifest %q: %v", path, err)}
	}

	m := &Manifest{keys: map[string]*VIAMEDataset{}}
	if err := m.flatten("", root.Datasets); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) flatten(prefix string, node map[string]interface{}) error {
	for name, raw := range node {
		key := name
		if prefix != "" {
			key = prefix + keySep + name
		}

		child, ok := raw.(map[string]interface{})
		if !ok {
			return &errs.DatasetManifestError{Kind: errs.KindDatasetManifest, Message: fmt.Sprintf("dataset node %q is not a mapping", key)}
		}

		if isDatasetRecord(child) {
			ds, err := recordToDataset(key, child)
			if err != nil {
				return err
			}
			if _, exists := m.keys[key]; exists {
				return &errs.DatasetManifestError{Kind: errs.KindDuplicateDatasetName, Message: fmt.Sprintf("duplicate dataset name %q", key)}
			}
			m.keys[key] = ds
			continue
		}

		if err := m.flatten(key, child); err != nil {
			return err
		}
	}
	return nil
}

func isDatasetRecord(node map[string]interface{}) bool {
	for k := range node {
		if datasetAttributeKeys[k] {
			return true
		}
	}
	return false
}

func recordToDataset(key string, node map[string]interface{}) (*VIAMEDataset, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &errs.DatasetManifestError{Kind: errs.KindMissingDatasetName, Message: "dataset entry has an empty name"}
	}

	get := func(k string) string {
		if v, ok := node[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}

	thermal, color := get("thermal_image_list"), get("color_image_list")
	if thermal == "" && color == "" {
		return nil, &errs.DatasetManifestError{Kind: errs.KindNoImageList, Message: fmt.Sprintf("dataset %q declares neither thermal_image_list nor color_image_list", key)}
	}

	return New(key, thermal, color, get("transformation_file")), nil
}

// ListDatasetKeys returns every concrete dataset key in the manifest, sorted.
func (m *Manifest) ListDatasetKeys() []string {
	keys := make([]string, 0, len(m.keys))
	for k := range m.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListDatasetKeysMatching filters ListDatasetKeys by substring.
func (m *Manifest) ListDatasetKeysMatching(substring string) []string {
	var out []string
	for _, k := range m.ListDatasetKeys() {
		if strings.Contains(k, substring) {
			out = append(out, k)
		}
	}
	return out
}

// GetDataset resolves a key, which may contain regex wildcard segments (the
// upstream parser's "Kotz-2019:fl04:.*" convention), into every matching
// dataset record.
func (m *Manifest) GetDataset(key string) (map[string]*VIAMEDataset, error) {
	pattern, err := regexp.Compile("^" + key + "$")
	if err != nil {
		return nil, &errs.DatasetManifestError{Kind: errs.KindParserNotFound, Message: fmt.Sprintf("invalid dataset key pattern %q: %v", key, err)}
	}

	out := map[string]*VIAMEDataset{}
	for k, ds := range m.keys {
		if pattern.MatchString(k) {
			out[k] = ds
		}
	}
	return out, nil
}
