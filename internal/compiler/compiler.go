// Package compiler turns a pipeline template plus an environment into the
// literal text of a runnable .pipe file.
package compiler

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/viame/batchrun/internal/errs"
)

var (
	envRe          = regexp.MustCompile(`\$ENV\{([^}]+)\}`)
	relativePathRe = regexp.MustCompile(`(?m)^(\s*)relativepath (\S+) = (.+)$`)
)

// Compile reads the template at templatePath and substitutes $ENV{NAME}
// tokens and relativepath directives against env. pipelineDir anchors
// relativepath resolution; it is typically filepath.Dir(templatePath).
//
// Unknown $ENV{} names are left verbatim -- the upstream pipeline runner
// tolerates this at load time, so failing fast here would reject pipelines
// that work fine in practice.
func Compile(templatePath, pipelineDir string, env map[string]string) (string, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return "", errs.Wrap(errs.KindJobInit, err, "reading pipeline template %q", templatePath)
	}

	text := envRe.ReplaceAllStringFunc(string(raw), func(m string) string {
		name := envRe.FindStringSubmatch(m)[1]
		if v, ok := env[name]; ok {
			return v
		}
		return m
	})

	text = relativePathRe.ReplaceAllStringFunc(text, func(line string) string {
		m := relativePathRe.FindStringSubmatch(line)
		indent, key, value := m[1], m[2], m[3]
		abs := value
		if !filepath.IsAbs(value) {
			abs = filepath.Join(pipelineDir, value)
			if a, err := filepath.Abs(abs); err == nil {
				abs = a
			}
		}
		return indent + key + " = " + abs
	})

	return text, nil
}

// timestampLayout matches YYYYMMDD-HHMMSS at one-second granularity, per the
// output-filename compiler contract.
const timestampLayout = "20060102-150405"

// FormatTimestamp renders t at the granularity the output-filename compiler
// expects. Exposed so callers can share one timestamp across a batch of
// outputs produced "at the same time".
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// CompileOutputPaths expands every pattern in patterns (env-var -> pattern,
// e.g. "[DATASET]_dets.csv") by replacing "[TIMESTAMP]" with ts and joining
// the result onto baseDir, returning absolute paths.
//
// Deterministic and idempotent for fixed inputs: the same (patterns, baseDir,
// ts) always yields the same map.
func CompileOutputPaths(patterns map[string]string, baseDir string, ts string) map[string]string {
	out := make(map[string]string, len(patterns))
	for envVar, pattern := range patterns {
		expanded := timestampToken.ReplaceAllString(pattern, ts)
		out[envVar] = filepath.Join(baseDir, expanded)
		if !filepath.IsAbs(out[envVar]) {
			abs, err := filepath.Abs(out[envVar])
			if err == nil {
				out[envVar] = abs
			}
		}
	}
	return out
}

var timestampToken = regexp.MustCompile(`\[TIMESTAMP\]`)
