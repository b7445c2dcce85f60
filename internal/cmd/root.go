// Package cmd holds the root cobra command and its subcommands for
// batchrun.
package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/viame/batchrun/internal/appconfig"
	"github.com/viame/batchrun/internal/cliui"
)

// Helper bundles the dependencies every subcommand needs: resolved
// configuration and a terminal UI to report through.
type Helper struct {
	Config *appconfig.Config
	UI     cli.Ui
}

// NewHelper resolves configuration from flags and builds a colored UI.
func NewHelper(flags *pflag.FlagSet) (*Helper, error) {
	cfg, err := appconfig.Load(flags)
	if err != nil {
		return nil, err
	}
	ui := &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		},
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColor{Code: 33},
		ErrorColor:  cli.UiColorRed,
	}
	return &Helper{Config: cfg, UI: ui}, nil
}

// Logger builds a leveled logger honoring Config.Debug.
func (h *Helper) Logger(name string) hclog.Logger {
	level := hclog.Info
	if h.Config.Debug {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{Name: name, Level: level})
}

// Reporter builds a cliui.Reporter wired to this helper's UI.
func (h *Helper) Reporter() *cliui.Reporter {
	return cliui.New(h.UI)
}

// RootCmd assembles the top-level "batchrun" command with its
// create-job/run/resume subcommands.
func RootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "batchrun",
		Short:         "Batch-run VIAME/kwiver detection pipelines over a dataset manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().String("setup-script-path", "", "VIAME/kwiver environment setup script to source before each task")
	root.PersistentFlags().String("kwiver-binary", "", "override the kwiver executable name/path")
	root.PersistentFlags().Bool("debug", false, "run each task's pipeline under gdb --args")

	root.AddCommand(newCreateJobCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newResumeCmd())

	return root
}

func fail(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
