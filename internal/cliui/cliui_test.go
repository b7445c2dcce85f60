package cliui

import (
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viame/batchrun/internal/jobstore"
)

func TestReporter_StartAndEndTaskWriteColoredSummaryLines(t *testing.T) {
	ui := cli.NewMockUi()
	r := New(ui)

	r.InitializeTask("dataset_a", 0, 100, jobstore.TaskInitialized)
	r.StartTask("dataset_a")
	r.UpdateTaskProgress("dataset_a", 50)
	r.EndTask("dataset_a", jobstore.TaskSuccess)

	out := ui.OutputWriter.String()
	assert.True(t, strings.Contains(out, "dataset_a"), "expected output to mention the task: %s", out)
	assert.True(t, strings.Contains(out, "DONE"), "expected a DONE summary line: %s", out)
}

func TestReporter_InitializeTaskAnnouncesResumedSuccesses(t *testing.T) {
	ui := cli.NewMockUi()
	r := New(ui)

	r.InitializeTask("dataset_b", 200, 200, jobstore.TaskSuccess)

	out := ui.OutputWriter.String()
	assert.Contains(t, out, "dataset_b")
	assert.Contains(t, out, "previous run")
}

func TestReporter_EndTaskReportsCancelledAndError(t *testing.T) {
	ui := cli.NewMockUi()
	r := New(ui)

	r.StartTask("dataset_c")
	r.EndTask("dataset_c", jobstore.TaskCancelled)
	require.Contains(t, ui.ErrorWriter.String()+ui.OutputWriter.String(), "dataset_c")

	ui2 := cli.NewMockUi()
	r2 := New(ui2)
	r2.StartTask("dataset_d")
	r2.EndTask("dataset_d", jobstore.TaskError)
	require.Contains(t, ui2.ErrorWriter.String(), "dataset_d")
}
