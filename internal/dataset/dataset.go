// Package dataset models the thin read-only view of a VIAME dataset that
// the core consumes: a named bundle of optional input paths plus lazily
// computed image-list line counts.
package dataset

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// VIAMEDataset is a flat record with three optional path fields. An
// attribute is "present" iff its path is non-empty and resolves on disk.
type VIAMEDataset struct {
	DatasetName        string
	ThermalImageList   string
	ColorImageList     string
	TransformationFile string

	thermalCount     *int
	colorCount       *int
	thermalCountOnce bool
	colorCountOnce   bool
}

// New builds a VIAMEDataset. Paths may be empty strings to mean "absent".
func New(name, thermalImageList, colorImageList, transformationFile string) *VIAMEDataset {
	return &VIAMEDataset{
		DatasetName:        name,
		ThermalImageList:   thermalImageList,
		ColorImageList:     colorImageList,
		TransformationFile: transformationFile,
	}
}

// Name returns the dataset's name, satisfying pipeline.DatasetAttributeGetter.
func (d *VIAMEDataset) Name() string { return d.DatasetName }

// Contains reports whether the named attribute is present: its path is
// non-empty and resolves on disk.
func (d *VIAMEDataset) Contains(attribute string) bool {
	path, ok := d.rawAttribute(attribute)
	if !ok || path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Get returns the named attribute's value if present, satisfying
// pipeline.DatasetAttributeGetter. For the two image-list attributes this
// is the raw list path, not an expanded per-line listing.
func (d *VIAMEDataset) Get(attribute string) (string, bool) {
	if !d.Contains(attribute) {
		return "", false
	}
	v, _ := d.rawAttribute(attribute)
	return v, true
}

func (d *VIAMEDataset) rawAttribute(attribute string) (string, bool) {
	switch attribute {
	case "thermal_image_list":
		return d.ThermalImageList, true
	case "color_image_list":
		return d.ColorImageList, true
	case "transformation_file":
		return d.TransformationFile, true
	default:
		return "", false
	}
}

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// TaskKey derives the filename-friendly task key: non-alphanumeric,
// non-dash runs collapse to a single underscore, and any trailing
// underscore is trimmed.
func (d *VIAMEDataset) TaskKey() string {
	key := filenameUnsafe.ReplaceAllString(d.DatasetName, "_")
	return strings.TrimRight(key, "_")
}

// ThermalImageCount returns the number of non-empty lines in
// ThermalImageList, computed once and cached. Zero if the attribute is
// absent.
func (d *VIAMEDataset) ThermalImageCount() int {
	if !d.thermalCountOnce {
		n := countImageListLines(d.ThermalImageList)
		d.thermalCount = &n
		d.thermalCountOnce = true
	}
	return *d.thermalCount
}

// ColorImageCount returns the number of non-empty lines in ColorImageList,
// computed once and cached. Zero if the attribute is absent.
func (d *VIAMEDataset) ColorImageCount() int {
	if !d.colorCountOnce {
		n := countImageListLines(d.ColorImageList)
		d.colorCount = &n
		d.colorCountOnce = true
	}
	return *d.colorCount
}

// MaxImageCount is the larger of the two modality counts, the quantity the
// scheduler uses as a progress poller's max_count.
func (d *VIAMEDataset) MaxImageCount() int {
	t, c := d.ThermalImageCount(), d.ColorImageCount()
	if t > c {
		return t
	}
	return c
}

// CountNonEmptyLines returns the number of non-empty lines in the file at
// path, or 0 if it does not exist yet -- the progress poller's primitive
// for tailing a growing output image list.
func CountNonEmptyLines(path string) int {
	return countImageListLines(path)
}

func countImageListLines(path string) int {
	if path == "" {
		return 0
	}
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n
}

// SortedAbsolutePaths reads an image-list file once into a sorted list of
// absolute paths; relative entries are resolved against the list file's own
// directory, matching how the upstream parser interprets a bare filename
// entry as living alongside the list.
func SortedAbsolutePaths(listPath string) ([]string, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	baseDir := filepath.Dir(listPath)
	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(baseDir, line)
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}
