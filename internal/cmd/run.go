package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/viame/batchrun/internal/jobstore"
	"github.com/viame/batchrun/internal/scheduler"
	"github.com/viame/batchrun/internal/signals"
)

func newRunCmd() *cobra.Command {
	var jobDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every not-yet-complete task in a job directory to completion",
		RunE: func(c *cobra.Command, args []string) error {
			return runJob(c, jobDir)
		},
	}

	cmd.Flags().StringVar(&jobDir, "dir", "", "job directory to run")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var jobDir string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a previously interrupted job, rerunning any task that did not reach SUCCESS",
		RunE: func(c *cobra.Command, args []string) error {
			return runJob(c, jobDir)
		},
	}

	cmd.Flags().StringVar(&jobDir, "dir", "", "job directory to resume")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

// runJob is shared by "run" and "resume": both load whatever job state is
// on disk -- loading already applies the resume invariant (any non-SUCCESS
// task is treated as INITIALIZED) uniformly -- and hand it to the scheduler;
// there is no separate code path for a "fresh" run versus a "resumed" one.
func runJob(c *cobra.Command, jobDir string) error {
	start := time.Now()

	helper, err := NewHelper(c.Flags())
	if err != nil {
		return err
	}

	state, meta, err := jobstore.LoadJob(jobDir)
	if err != nil {
		return fail("loading job %q: %w", jobDir, err)
	}

	reporter := helper.Reporter()
	sched := scheduler.New(state, meta, jobstore.NewPaths(jobDir), reporter, helper.Config.SetupScriptPath, helper.Config.KwiverBinary, helper.Config.Debug, helper.Logger("scheduler"))
	if helper.Config.ProgressPollFreq > 0 {
		sched.ProgressPollFreq = helper.Config.ProgressPollFreq
	}

	watcher := signals.NewWatcher()
	watcher.AddOnClose(sched.Kill)

	done := make(chan error, 1)
	go func() { done <- sched.Run() }()

	select {
	case err := <-done:
		if err != nil {
			return fail("running job: %w", err)
		}
	case <-watcher.Done():
		<-done
		helper.UI.Warn(fmt.Sprintf("interrupted after %s; job is resumable", time.Since(start).Round(time.Second)))
	}

	if state.IsJobComplete() {
		helper.UI.Output("job complete")
	}
	return nil
}
