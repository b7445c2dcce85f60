// Package scheduler runs a job's tasks sequentially: one child process at a
// time, with progress polling, stdout streaming, cooperative cancellation,
// and outcome-based artifact relocation.
package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/viame/batchrun/internal/appconfig"
	"github.com/viame/batchrun/internal/compiler"
	"github.com/viame/batchrun/internal/dataset"
	"github.com/viame/batchrun/internal/events"
	"github.com/viame/batchrun/internal/jobstore"
	"github.com/viame/batchrun/internal/process"
	"github.com/viame/batchrun/internal/runner"
)

// progressPollFreqDefault matches the upstream scheduler's default.
const progressPollFreqDefault = 5 * time.Second

// queueReadTimeout is the scheduler's suspension point between cancellation
// checks -- cancellation must be observable within one second of request,
// so a timeout well under that bounds worst-case latency.
const queueReadTimeout = 500 * time.Millisecond

// processWaitCeiling bounds how long the scheduler waits for a child to
// exit after a kill or cancellation has closed the process manager, before
// moving on without its exit status.
const processWaitCeiling = 30 * time.Second

// cancelRetryAttempts governs the retry-move (one attempt per second) used
// only for relocating a cancelled task's output files, which may still be
// held open by a child that is slow to release its file handles.
const cancelRetryAttempts = 30

// Scheduler runs one job's tasks to completion (or until killed), honoring
// the resume invariant already applied when JobState was loaded.
type Scheduler struct {
	State  *jobstore.JobState
	Meta   *jobstore.JobMeta
	Paths  jobstore.Paths
	Events events.Manager

	SetupScriptPath  string
	KwiverBinary     string
	Debug            bool
	ProgressPollFreq time.Duration

	mgr    *process.Manager
	logger hclog.Logger

	killOnce sync.Once
	killCh   chan struct{}
}

// New builds a Scheduler ready to Run. logger may be nil, in which case a
// discarding logger is used.
func New(state *jobstore.JobState, meta *jobstore.JobMeta, paths jobstore.Paths, mgr events.Manager, setupScriptPath string, kwiverBinary string, debug bool, logger hclog.Logger) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	pollFreq := progressPollFreqDefault
	return &Scheduler{
		State:            state,
		Meta:             meta,
		Paths:            paths,
		Events:           mgr,
		SetupScriptPath:  setupScriptPath,
		KwiverBinary:     kwiverBinary,
		Debug:            debug,
		ProgressPollFreq: pollFreq,
		mgr:              runner.NewManager(logger),
		logger:           logger,
		killCh:           make(chan struct{}),
	}
}

// Kill requests that the current and all remaining tasks be aborted. Safe
// to call from any goroutine, any number of times.
func (s *Scheduler) Kill() {
	s.killOnce.Do(func() { close(s.killCh) })
}

// Run executes the resume path followed by the main loop, returning when
// every task has reached a terminal status or the scheduler was killed.
func (s *Scheduler) Run() error {
	s.replayResumedTasks()

	for !s.State.IsJobComplete() {
		select {
		case <-s.killCh:
			return s.killAll()
		default:
		}

		current := s.State.CurrentTask()
		if current == "" {
			break
		}
		if err := s.runTask(current); err != nil {
			return err
		}
	}
	return nil
}

// replayResumedTasks emits initialize_task for every already-terminal or
// still-pending task before the main loop begins, so an event manager
// attached to a resumed job sees the whole picture immediately (§4.6
// "Resume path", confirmed against original_source's scheduler.py).
func (s *Scheduler) replayResumedTasks() {
	success := jobstore.TaskSuccess
	for _, task := range s.State.Tasks(&success) {
		entry, ok := s.Meta.Get(task)
		if !ok {
			continue
		}
		ds := entry.ToDataset()
		maxCount := ds.MaxImageCount()
		s.Events.InitializeTask(task, maxCount, maxCount, jobstore.TaskSuccess)

		if logData, err := os.ReadFile(s.Paths.LogFile(task)); err == nil {
			replayLines(logData, func(line string) { s.Events.UpdateTaskStdout(task, line) })
		}
	}

	for _, task := range s.State.Tasks(nil) {
		if s.State.GetStatus(task) == jobstore.TaskSuccess {
			continue
		}
		entry, ok := s.Meta.Get(task)
		maxCount := 0
		if ok {
			maxCount = entry.ToDataset().MaxImageCount()
		}
		s.Events.InitializeTask(task, 0, maxCount, jobstore.TaskInitialized)
	}
}

func replayLines(data []byte, onLine func(string)) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}

// runTask executes a single task end to end: compile output filenames,
// spawn the child, pump stdout, poll progress, classify the outcome, and
// relocate artifacts.
func (s *Scheduler) runTask(task string) error {
	entry, ok := s.Meta.Get(task)
	if !ok {
		return s.State.SetTaskStatus(task, jobstore.TaskError)
	}
	ds := entry.ToDataset()
	maxCount := ds.MaxImageCount()

	ts := compiler.FormatTimestamp(time.Now())
	outputPatterns := make(map[string]string, len(entry.OutputConfig))
	for _, opt := range entry.OutputConfig {
		outputPatterns[opt.EnvVariable()] = opt.Value() + opt.Type().Extension()
	}
	pendingPaths := compiler.CompileOutputPaths(outputPatterns, s.Paths.OutputsPendingDir(), ts)

	kwiverEnv, _ := shellSourceEnvSafe(s.SetupScriptPath)
	env := map[string]string{}
	for k, v := range pendingPaths {
		env[k] = v
	}
	for k, v := range kwiverEnv {
		env[k] = v
	}

	logPath := s.Paths.LogFile(task)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	s.Events.InitializeTask(task, 0, maxCount, jobstore.TaskInitialized)
	s.Events.StartTask(task)
	if err := s.State.SetTaskStatus(task, jobstore.TaskRunning); err != nil {
		return err
	}

	imageListPath := firstImageListPath(pendingPaths)

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	go func() {
		defer pollWG.Done()
		s.pollProgress(pollCtx, task, imageListPath, maxCount)
	}()

	pump := runner.NewStdoutPump(func(line string) {
		logFile.WriteString(line + "\n")
		s.Events.UpdateTaskStdout(task, line)
	})

	cmd := runner.BuildCommand(runner.Options{
		PipelineFile: filepath.Join(s.Paths.Root, entry.CompiledRelpath),
		SetupScript:  s.SetupScriptPath,
		Debug:        s.Debug,
		KwiverBinary: s.KwiverBinary,
		Env:          env,
		Dir:          s.Paths.Root,
	})
	cmd.Stdout = pump

	done := make(chan error, 1)
	go func() { done <- runner.Run(s.mgr, cmd) }()

	// killed and cancelled are deliberately distinct outcomes even though
	// both break out of the wait loop early and stop the child the same
	// way: a whole-job Kill() must never resolve the in-flight task to
	// CANCELLED. The current task always ends ERROR on a kill, same as
	// every other not-yet-complete task -- killAll owns setting that
	// status once this function returns, so on the killed path runTask
	// itself must not call any finish* method.
	killed := false
	cancelled := false
	var runErr error
waitLoop:
	for {
		select {
		case <-s.killCh:
			killed = true
			break waitLoop
		case runErr = <-done:
			break waitLoop
		case <-time.After(queueReadTimeout):
			if s.Events.CheckCancelled(task) {
				cancelled = true
			}
			if cancelled {
				break waitLoop
			}
		}
	}

	if killed || cancelled {
		s.mgr.Close()
		select {
		case runErr = <-done:
		case <-time.After(processWaitCeiling):
		}
	}
	if cancelled {
		// A closed Manager refuses every later Exec; the remaining tasks
		// run under a fresh one.
		s.mgr = runner.NewManager(s.logger)
	}

	cancelPoll()
	pollWG.Wait()
	pump.Close()

	if killed {
		// Status, EndTask, and output relocation for this task are all
		// handled by killAll once Run's loop observes s.killCh again.
		return nil
	}

	finalCount := dataset.CountNonEmptyLines(imageListPath)
	s.Events.UpdateTaskProgress(task, finalCount)

	switch {
	case cancelled:
		return s.finishCancelled(task, pendingPaths)
	case runErr != nil:
		return s.finishError(task, pendingPaths)
	default:
		return s.finishSuccess(task, pendingPaths)
	}
}

func (s *Scheduler) finishError(task string, pendingPaths map[string]string) error {
	if err := s.State.SetTaskStatus(task, jobstore.TaskError); err != nil {
		return err
	}
	s.Events.EndTask(task, jobstore.TaskError)
	movePendingOutputs(pendingPaths, s.Paths.OutputsErrorDir())
	return nil
}

func (s *Scheduler) finishCancelled(task string, pendingPaths map[string]string) error {
	if err := s.State.SetTaskStatus(task, jobstore.TaskCancelled); err != nil {
		return err
	}
	s.Events.EndTask(task, jobstore.TaskCancelled)
	retryMovePendingOutputs(pendingPaths, s.Paths.OutputsErrorDir())
	return nil
}

func (s *Scheduler) finishSuccess(task string, pendingPaths map[string]string) error {
	newPaths := movePendingOutputs(pendingPaths, s.Paths.OutputsSuccessDir())
	if err := s.State.SetTaskOutputs(task, newPaths); err != nil {
		return err
	}
	if err := s.State.SetTaskStatus(task, jobstore.TaskSuccess); err != nil {
		return err
	}
	s.Events.EndTask(task, jobstore.TaskSuccess)
	s.Events.UpdateTaskOutputFiles(task, newPaths)
	return nil
}

// killAll marks every still-incomplete task ERROR -- including whichever
// task was RUNNING when Kill() fired, which runTask deliberately left
// untouched for killAll to resolve -- and best-effort relocates its
// stranded pending outputs. A single task's state-write failure must not
// stop the rest of the job from being marked dead, so failures are
// collected rather than returned on the first one.
func (s *Scheduler) killAll() error {
	s.mgr.Close()

	var result *multierror.Error
	for _, task := range s.State.Tasks(nil) {
		if s.State.IsTaskComplete(task) {
			continue
		}
		if err := s.State.SetTaskStatus(task, jobstore.TaskError); err != nil {
			result = multierror.Append(result, fmt.Errorf("task %s: %w", task, err))
			continue
		}
		s.Events.EndTask(task, jobstore.TaskError)
		movePendingOutputsForTask(s.Paths, task)
	}
	return result.ErrorOrNil()
}

func movePendingOutputsForTask(paths jobstore.Paths, task string) {
	entries, err := os.ReadDir(paths.OutputsPendingDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(paths.OutputsPendingDir(), e.Name())
		dst := filepath.Join(paths.OutputsErrorDir(), e.Name())
		os.Rename(src, dst)
	}
}

// pollProgress re-tails imageListPath at ProgressPollFreq until ctx is
// cancelled, reporting non-empty line counts against maxCount.
func (s *Scheduler) pollProgress(ctx context.Context, task, imageListPath string, maxCount int) {
	freq := s.ProgressPollFreq
	if freq <= 0 {
		freq = progressPollFreqDefault
	}
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := dataset.CountNonEmptyLines(imageListPath)
			s.Events.UpdateTaskProgress(task, count)
			_ = maxCount
		}
	}
}

func firstImageListPath(pendingPaths map[string]string) string {
	keys := make([]string, 0, len(pendingPaths))
	for k := range pendingPaths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if filepath.Ext(pendingPaths[k]) == ".txt" {
			return pendingPaths[k]
		}
	}
	if len(keys) > 0 {
		return pendingPaths[keys[0]]
	}
	return ""
}

func movePendingOutputs(pendingPaths map[string]string, destDir string) []string {
	var moved []string
	for _, src := range pendingPaths {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := os.Rename(src, dst); err == nil {
			moved = append(moved, dst)
		}
	}
	sort.Strings(moved)
	return moved
}

// retryMovePendingOutputs tolerates a child that has not yet released its
// file handles on the outputs it was writing when cancelled: up to
// cancelRetryAttempts tries at 1 Hz before giving up on a given file.
func retryMovePendingOutputs(pendingPaths map[string]string, destDir string) []string {
	var moved []string
	for _, src := range pendingPaths {
		dst := filepath.Join(destDir, filepath.Base(src))
		operation := func() error {
			if _, err := os.Stat(src); err != nil {
				return nil // nothing to move; not an error worth retrying
			}
			return os.Rename(src, dst)
		}
		b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), cancelRetryAttempts-1)
		if err := backoff.Retry(operation, b); err == nil {
			if _, statErr := os.Stat(dst); statErr == nil {
				moved = append(moved, dst)
			}
		}
	}
	sort.Strings(moved)
	return moved
}

func shellSourceEnvSafe(setupScriptPath string) (map[string]string, error) {
	if setupScriptPath == "" {
		return map[string]string{}, nil
	}
	return appconfig.ShellSourceEnv(setupScriptPath)
}
