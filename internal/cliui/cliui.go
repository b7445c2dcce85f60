// Package cliui renders a batch job's task progress to a terminal: one
// progress bar per task as it runs, and a colored start/end summary line.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"
	progressbar "github.com/schollz/progressbar/v3"

	"github.com/viame/batchrun/internal/events"
	"github.com/viame/batchrun/internal/jobstore"
)

var (
	infoPrefix  = color.New(color.Bold, color.FgWhite, color.ReverseVideo).Sprint(" RUN ")
	okPrefix    = color.New(color.Bold, color.FgGreen, color.ReverseVideo).Sprint(" DONE ")
	errPrefix   = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" FAIL ")
	cancelPrefix = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" CANCEL ")
)

// getWriter unwraps a cli.Ui down to its underlying io.Writer, the same
// unwrapping a terminal spinner needs to hand a progress bar a raw stream.
func getWriter(ui cli.Ui) io.Writer {
	switch u := ui.(type) {
	case *cli.BasicUi:
		return u.Writer
	case *cli.ColoredUi:
		return getWriter(u.Ui)
	case *cli.ConcurrentUi:
		return getWriter(u.Ui)
	case *cli.PrefixedUi:
		return getWriter(u.Ui)
	case *cli.MockUi:
		return u.OutputWriter
	default:
		return nil
	}
}

// Reporter is an events.Manager that drives a live progress bar for the
// currently-running task and prints a colored summary line as each task
// starts, cancels, fails, or succeeds.
type Reporter struct {
	*events.Base

	ui     cli.Ui
	writer io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// New builds a Reporter that writes to ui. Pass cli.NewColoredUi-wrapped
// output for a color-capable terminal, or a plain cli.BasicUi otherwise.
func New(ui cli.Ui) *Reporter {
	r := &Reporter{Base: events.NewBase(), ui: ui, writer: getWriter(ui)}

	r.OnInitializeTask = r.onInitializeTask
	r.OnStartTask = r.onStartTask
	r.OnUpdateTaskProgress = r.onUpdateTaskProgress
	r.OnEndTask = r.onEndTask
	return r
}

func (r *Reporter) onInitializeTask(task string, count, maxCount int, status jobstore.TaskStatus) {
	if status == jobstore.TaskSuccess {
		r.ui.Output(fmt.Sprintf("%s %s (from a previous run)", okPrefix, task))
	}
}

func (r *Reporter) onStartTask(task string) {
	r.ui.Info(fmt.Sprintf("%s %s", infoPrefix, task))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bar = progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(task),
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func (r *Reporter) onUpdateTaskProgress(task string, count, maxCount int) {
	r.mu.Lock()
	bar := r.bar
	r.mu.Unlock()
	if bar == nil {
		return
	}
	if maxCount > 0 && bar.GetMax() != maxCount {
		bar.ChangeMax(maxCount)
	}
	bar.Set(count)
}

func (r *Reporter) onEndTask(task string, status jobstore.TaskStatus) {
	r.mu.Lock()
	bar := r.bar
	r.bar = nil
	r.mu.Unlock()
	if bar != nil {
		bar.Finish()
	}

	elapsed := r.ElapsedTime(task)
	switch status {
	case jobstore.TaskSuccess:
		r.ui.Output(fmt.Sprintf("%s %s (%s)", okPrefix, task, elapsed.Round(time.Second)))
	case jobstore.TaskCancelled:
		r.ui.Warn(fmt.Sprintf("%s %s (%s)", cancelPrefix, task, elapsed.Round(time.Second)))
	default:
		r.ui.Error(fmt.Sprintf("%s %s (%s)", errPrefix, task, elapsed.Round(time.Second)))
	}
}

var _ events.Manager = (*Reporter)(nil)
