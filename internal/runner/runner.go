// Package runner builds and executes the kwiver runner child process for a
// single compiled pipeline file.
package runner

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/viame/batchrun/internal/process"
)

// Options configures one invocation of the kwiver runner against a compiled
// pipeline file.
type Options struct {
	// PipelineFile is the compiled .pipe file to execute.
	PipelineFile string
	// SetupScript is sourced (POSIX) or invoked (Windows) before the runner,
	// typically VIAME's setup_viame.sh/.bat. May be empty.
	SetupScript string
	// Debug prefixes the POSIX command with "gdb --args".
	Debug bool
	// KwiverBinary overrides the "kwiver"/"kwiver.exe" executable name or
	// path. Empty means the platform default.
	KwiverBinary string
	// Env is merged over the current process environment.
	Env map[string]string
	// PipeArgs become "-s key=value" arguments, sorted by key for a
	// deterministic, reproducible command line.
	PipeArgs map[string]string
	// Dir is the working directory for the child process -- the job root.
	Dir string
}

// BuildCommandLine renders the shell command line the child process will
// execute, without constructing an *exec.Cmd. Exposed separately from
// BuildCommand so the scheduler can log the exact line for debugging,
// mirroring the upstream runner's practice of printing the reproducible
// command before launch.
func BuildCommandLine(opt Options) string {
	var parts []string

	if runtime.GOOS == "windows" {
		binary := opt.KwiverBinary
		if binary == "" {
			binary = "kwiver.exe"
		}
		if opt.SetupScript != "" {
			parts = append(parts, fmt.Sprintf("%q", opt.SetupScript), "&&")
		}
		parts = append(parts, binary, "runner")
	} else {
		binary := opt.KwiverBinary
		if binary == "" {
			binary = "kwiver"
		}
		if opt.SetupScript != "" {
			parts = append(parts, "source", opt.SetupScript, "&&", "printenv", "&&")
		}
		if opt.Debug {
			parts = append(parts, "gdb", "--args")
		}
		parts = append(parts, binary, "runner")
	}

	parts = append(parts, opt.PipelineFile)

	keys := make([]string, 0, len(opt.PipeArgs))
	for k := range opt.PipeArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-s", fmt.Sprintf("%s=%s", k, opt.PipeArgs[k]))
	}

	return strings.Join(parts, " ")
}

// mergedEnv overlays opt.Env onto the current process environment, the
// inheritance model §4.5 requires.
func mergedEnv(opt Options) []string {
	env := os.Environ()
	for k, v := range opt.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// BuildCommand constructs the *exec.Cmd for opt, on POSIX running under
// /bin/bash -c so that "&&" and "source" behave as the runner expects.
// The caller must assign cmd.Stdout before starting it; Run then merges
// stderr into stdout.
func BuildCommand(opt Options) *exec.Cmd {
	line := BuildCommandLine(opt)

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", line)
	} else {
		cmd = exec.Command("/bin/bash", "-c", line)
	}
	cmd.Dir = opt.Dir
	cmd.Env = mergedEnv(opt)
	return cmd
}

// Run executes opt's pipeline via the shared process.Manager, blocking until
// it completes. Stdout and stderr are both merged onto stdout, which the
// caller must have assigned on the returned *exec.Cmd via BuildCommand
// followed by setting cmd.Stdout, before calling Run.
//
// This is the runner's one entry point into the generalized child-process
// lifecycle the scheduler's kill-all semantics rely on: mgr.Close() kills
// whatever single child is currently running, since this core never runs
// more than one task's child process at a time.
func Run(mgr *process.Manager, cmd *exec.Cmd) error {
	cmd.Stderr = cmd.Stdout
	return mgr.Exec(cmd)
}

// NewManager builds a process.Manager scoped to one scheduler run.
func NewManager(logger hclog.Logger) *process.Manager {
	return process.NewManager(logger)
}
