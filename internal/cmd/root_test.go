package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_RegistersExpectedSubcommands(t *testing.T) {
	root := RootCmd("test-version")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "create-job")
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "resume")
}

func TestRootCmd_CreateJobRequiresCoreFlags(t *testing.T) {
	root := RootCmd("test-version")
	root.SetArgs([]string{"create-job"})
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	assert.Error(t, err, "expected create-job to fail fast without --dir/--pipeline/--dataset")
}

func TestRootCmd_RunRequiresDirFlag(t *testing.T) {
	root := RootCmd("test-version")
	root.SetArgs([]string{"run"})
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	assert.Error(t, err, "expected run to fail fast without --dir")
}
