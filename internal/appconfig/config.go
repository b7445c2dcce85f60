// Package appconfig resolves batchrun's runtime settings from flags,
// BATCHRUN_* environment variables, a batchrun.yaml config file, and
// built-in defaults, in that precedence order.
package appconfig

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for one batchrun invocation.
type Config struct {
	// SetupScriptPath is sourced before launching kwiver runner. Empty means
	// the child inherits the current process environment unmodified.
	SetupScriptPath string
	// KwiverBinary overrides the "kwiver" executable name/path.
	KwiverBinary string
	// ProgressPollFreq is how often the progress poller re-tails the output
	// image list.
	ProgressPollFreq time.Duration
	// Debug runs the pipeline under "gdb --args" on POSIX.
	Debug bool
	// JobRoot is resolved from the job_root setting (default "."). No
	// subcommand reads it: a relative --dir is taken relative to the
	// working directory.
	JobRoot string
}

// Load resolves Config from flags (highest precedence), then
// BATCHRUN_*-prefixed environment variables, then ./batchrun.yaml if
// present, then the defaults below.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BATCHRUN")
	v.AutomaticEnv()

	v.SetDefault("setup_script_path", "")
	v.SetDefault("kwiver_binary", "kwiver")
	v.SetDefault("progress_poll_freq_seconds", 5)
	v.SetDefault("debug", false)
	v.SetDefault("job_root", ".")

	v.SetConfigName("batchrun")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	if flags != nil {
		// Flag names are dashed ("kwiver-binary"); config keys are underscored.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	return &Config{
		SetupScriptPath:  v.GetString("setup_script_path"),
		KwiverBinary:     v.GetString("kwiver_binary"),
		ProgressPollFreq: time.Duration(v.GetInt("progress_poll_freq_seconds")) * time.Second,
		Debug:            v.GetBool("debug"),
		JobRoot:          v.GetString("job_root"),
	}, nil
}
