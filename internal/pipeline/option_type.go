package pipeline

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/viame/batchrun/internal/errs"
)

// Kind is the tag family a ConfigOption's type belongs to.
type Kind string

const (
	KindInt                  Kind = "int"
	KindFloat                Kind = "float"
	KindOutputImageList      Kind = "output_image_list"
	KindOutputDetectionsFile Kind = "output_detections_file"
	KindString               Kind = "string"
)

var boundedRe = regexp.MustCompile(`^(int|float)\[([^,\]]*),([^,\]]*)\]$`)

// OptionType is the parsed form of a ConfigOption's type tag, e.g.
// "int[0,100]" or "output_image_list".
type OptionType struct {
	Kind Kind
	// Min/Max are nil when the bound is absent (unbounded below/above).
	Min, Max *float64
	raw      string
}

// Raw returns the original type tag string, used for serialisation.
func (t OptionType) Raw() string { return t.raw }

// ParseOptionType parses a type tag per the grammar in the spec's type
// taxonomy table. Anything not recognised falls back to KindString, which
// accepts unconditionally (the "else string" catch-all).
func ParseOptionType(tag string) OptionType {
	switch tag {
	case "int":
		return OptionType{Kind: KindInt, raw: tag}
	case "float":
		return OptionType{Kind: KindFloat, raw: tag}
	case "output_image_list":
		return OptionType{Kind: KindOutputImageList, raw: tag}
	case "output_detections_file":
		return OptionType{Kind: KindOutputDetectionsFile, raw: tag}
	}

	if m := boundedRe.FindStringSubmatch(tag); m != nil {
		kind := Kind(m[1])
		t := OptionType{Kind: kind, raw: tag}
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			t.Min = &v
		}
		if v, err := strconv.ParseFloat(m[3], 64); err == nil {
			t.Max = &v
		}
		return t
	}

	return OptionType{Kind: KindString, raw: tag}
}

// Validate checks v against the type and, on success, returns the value to
// actually store (normalised): integers/floats are re-rendered in canonical
// form, and output-pattern types have their recognised extension stripped.
func (t OptionType) Validate(v string) (normalized string, ok bool) {
	switch t.Kind {
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return "", false
		}
		f := float64(n)
		if t.Min != nil && f < *t.Min {
			return "", false
		}
		if t.Max != nil && f > *t.Max {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return "", false
		}
		if t.Min != nil && f < *t.Min {
			return "", false
		}
		if t.Max != nil && f > *t.Max {
			return "", false
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	case KindOutputImageList:
		if strings.ToLower(filepath.Ext(v)) != ".txt" {
			return "", false
		}
		return strings.TrimSuffix(v, filepath.Ext(v)), true
	case KindOutputDetectionsFile:
		if strings.ToLower(filepath.Ext(v)) != ".csv" {
			return "", false
		}
		return strings.TrimSuffix(v, filepath.Ext(v)), true
	default:
		return v, true
	}
}

// IsOutputType reports whether this type belongs in an OutputGroup.
func (t OptionType) IsOutputType() bool {
	return t.Kind == KindOutputImageList || t.Kind == KindOutputDetectionsFile
}

// Extension returns the extension that the compiler should re-attach to a
// stored (stripped) output value, or "" for non-output types.
func (t OptionType) Extension() string {
	switch t.Kind {
	case KindOutputImageList:
		return ".txt"
	case KindOutputDetectionsFile:
		return ".csv"
	default:
		return ""
	}
}

// validateDefault is used at ConfigOption construction time; it reports a
// typed error rather than a bool so the caller knows this is fatal to
// loading the manifest.
func validateDefault(name string, t OptionType, def string) (string, error) {
	normalized, ok := t.Validate(def)
	if !ok {
		return "", errs.New(errs.KindInvalidConfigDefault, "option %q: default %q does not validate against type %q", name, def, t.raw)
	}
	return normalized, nil
}
