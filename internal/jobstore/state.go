package jobstore

import (
	"sort"

	"github.com/viame/batchrun/internal/errs"
)

// TaskStatus is the sum type a task's lifecycle moves through. Values
// match the original enum exactly since they are persisted as integers.
type TaskStatus int

const (
	TaskInitialized TaskStatus = -1
	TaskError       TaskStatus = 0
	TaskSuccess     TaskStatus = 1
	TaskRunning     TaskStatus = 2
	TaskCancelled   TaskStatus = 3
)

// IsComplete reports whether status is one of the three terminal statuses.
func (s TaskStatus) IsComplete() bool {
	return s == TaskSuccess || s == TaskError || s == TaskCancelled
}

func (s TaskStatus) String() string {
	switch s {
	case TaskInitialized:
		return "INITIALIZED"
	case TaskError:
		return "ERROR"
	case TaskSuccess:
		return "SUCCESS"
	case TaskRunning:
		return "RUNNING"
	case TaskCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// jobStateJSON is the wire schema for job_state.json (§6).
type jobStateJSON struct {
	Tasks       []string            `json:"tasks"`
	TaskStatus  map[string]int      `json:"task_status"`
	TaskOutputs map[string][]string `json:"task_outputs"`
	TotalTasks  int                 `json:"total_tasks"`
	Initialized bool                `json:"initialized"`
}

// JobState is the task-status state machine persisted at job_state.json.
// Every mutating method writes the whole file atomically before returning.
type JobState struct {
	path        string
	tasks       []string
	taskStatus  map[string]TaskStatus
	taskOutputs map[string][]string
	totalTasks  int
}

// NewJobState builds and persists a brand-new JobState for taskKeys, with
// every task INITIALIZED and no outputs -- the state half of create_job.
func NewJobState(path string, taskKeys []string) (*JobState, error) {
	if len(taskKeys) == 0 {
		return nil, errs.New(errs.KindJobInit, "no pipelines/tasks provided")
	}

	sorted := append([]string(nil), taskKeys...)
	sort.Strings(sorted)

	js := &JobState{
		path:        path,
		tasks:       sorted,
		taskStatus:  make(map[string]TaskStatus, len(sorted)),
		taskOutputs: make(map[string][]string, len(sorted)),
		totalTasks:  len(sorted),
	}
	for _, k := range sorted {
		js.taskStatus[k] = TaskInitialized
		js.taskOutputs[k] = nil
	}
	if err := js.save(); err != nil {
		return nil, err
	}
	return js, nil
}

// LoadJobState reads job_state.json. Per the resume invariant, any
// non-SUCCESS status is coerced back to INITIALIZED on load -- a crash
// mid-task always reruns that task from scratch.
func LoadJobState(path string) (*JobState, error) {
	var raw jobStateJSON
	if err := readJSON(path, &raw); err != nil {
		return nil, errs.Wrap(errs.KindJobInit, err, "loading job state %q", path)
	}
	if !raw.Initialized {
		return nil, errs.New(errs.KindJobInit, "job state %q is not initialized (possibly corrupt)", path)
	}

	js := &JobState{
		path:        path,
		tasks:       raw.Tasks,
		taskStatus:  make(map[string]TaskStatus, len(raw.Tasks)),
		taskOutputs: make(map[string][]string, len(raw.Tasks)),
		totalTasks:  raw.TotalTasks,
	}
	for k, v := range raw.TaskStatus {
		status := TaskStatus(v)
		if status != TaskSuccess {
			status = TaskInitialized
		}
		js.taskStatus[k] = status
	}
	for k, v := range raw.TaskOutputs {
		js.taskOutputs[k] = v
	}
	return js, nil
}

func (js *JobState) save() error {
	raw := jobStateJSON{
		Tasks:       js.tasks,
		TaskStatus:  make(map[string]int, len(js.taskStatus)),
		TaskOutputs: js.taskOutputs,
		TotalTasks:  js.totalTasks,
		Initialized: true,
	}
	for k, v := range js.taskStatus {
		raw.TaskStatus[k] = int(v)
	}
	return writeJSONAtomic(js.path, raw)
}

// GetStatus returns task's current status.
func (js *JobState) GetStatus(task string) TaskStatus { return js.taskStatus[task] }

// SetTaskStatus updates task's status and persists immediately.
func (js *JobState) SetTaskStatus(task string, status TaskStatus) error {
	js.taskStatus[task] = status
	return js.save()
}

// SetTaskOutputs records task's output paths and persists immediately.
func (js *JobState) SetTaskOutputs(task string, outputs []string) error {
	js.taskOutputs[task] = outputs
	return js.save()
}

// GetTaskOutputs returns task's recorded outputs, or nil if none.
func (js *JobState) GetTaskOutputs(task string) []string {
	if len(js.taskOutputs[task]) == 0 {
		return nil
	}
	return append([]string(nil), js.taskOutputs[task]...)
}

// IsTaskComplete reports whether task has reached a terminal status.
func (js *JobState) IsTaskComplete(task string) bool {
	return js.taskStatus[task].IsComplete()
}

// IsJobComplete reports whether every task has reached a terminal status.
func (js *JobState) IsJobComplete() bool {
	for _, t := range js.tasks {
		if !js.IsTaskComplete(t) {
			return false
		}
	}
	return true
}

// CurrentTask returns the first task (in persisted order) that is not yet
// complete, or "" if every task is complete.
func (js *JobState) CurrentTask() string {
	for _, t := range js.tasks {
		if !js.IsTaskComplete(t) {
			return t
		}
	}
	return ""
}

// Tasks returns every task key in persisted order, optionally filtered by
// status when filter is non-nil.
func (js *JobState) Tasks(filter *TaskStatus) []string {
	if filter == nil {
		return append([]string(nil), js.tasks...)
	}
	var out []string
	for _, t := range js.tasks {
		if js.taskStatus[t] == *filter {
			out = append(out, t)
		}
	}
	return out
}

// CompletedTasks returns every task key that has reached a terminal status.
func (js *JobState) CompletedTasks() []string {
	var out []string
	for _, t := range js.tasks {
		if js.IsTaskComplete(t) {
			out = append(out, t)
		}
	}
	return out
}
