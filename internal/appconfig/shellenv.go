package appconfig

import (
	"bytes"
	"os/exec"
	"strings"
)

// kwiverEnvVariables is the allow-list of environment variables the VIAME
// setup script is expected to produce that actually matter to a kwiver
// runner child process -- everything else `env` prints (shell internals,
// unrelated exported variables) is noise the scheduler should not forward.
var kwiverEnvVariables = map[string]bool{
	"PYTHONPATH":             true,
	"PYTHON_LIBRARY":         true,
	"QT_PLUGIN_PATH":         true,
	"VG_PLUGIN_PATH":         true,
	"VIDTK_MODULE_PATH":      true,
	"SPROKIT_MODULE_PATH":    true,
	"KWIVER_PLUGIN_PATH":     true,
	"VIAME_INSTALL":          true,
	"SPROKIT_PYTHON_MODULES": true,
	"KWIVER_DEFAULT_LOG_LEVEL": true,
	"CUDA_INSTALL_DIR":       true,
	"LD_LIBRARY_PATH":        true,
	"PATH":                   true,
}

// ShellSourceEnv sources setupScriptPath in a fresh bash subshell and
// returns the subset of the resulting environment that a kwiver runner
// child process needs. This is how the scheduler picks up VIAME's install
// layout without requiring the caller to source the script itself.
func ShellSourceEnv(setupScriptPath string) (map[string]string, error) {
	cmd := exec.Command("/bin/bash", "-c", "source "+setupScriptPath+"; env")

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	env := map[string]string{}
	for _, line := range strings.Split(out.String(), "\n") {
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		if kwiverEnvVariables[kv[0]] {
			env[kv[0]] = kv[1]
		}
	}
	return env, nil
}
