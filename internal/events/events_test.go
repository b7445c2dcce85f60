package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viame/batchrun/internal/jobstore"
)

func TestBase_ElapsedTimeTracksStartAndEnd(t *testing.T) {
	b := NewBase()
	b.StartTask("t1")
	time.Sleep(5 * time.Millisecond)
	b.EndTask("t1", jobstore.TaskSuccess)

	elapsed := b.ElapsedTime("t1")
	assert.Greater(t, elapsed, time.Duration(0))
}

func TestBase_ElapsedTimeZeroForUnknownTask(t *testing.T) {
	b := NewBase()
	assert.Equal(t, time.Duration(0), b.ElapsedTime("never-started"))
}

func TestBase_HooksAreInvokedWithBookkeptState(t *testing.T) {
	var progressSeen []int
	b := NewBase()
	b.OnUpdateTaskProgress = func(task string, count, maxCount int) {
		progressSeen = append(progressSeen, count)
		assert.Equal(t, 10, maxCount)
	}

	b.InitializeTask("t1", 0, 10, jobstore.TaskInitialized)
	b.UpdateTaskProgress("t1", 3)
	b.UpdateTaskProgress("t1", 7)

	assert.Equal(t, []int{3, 7}, progressSeen)
}

func TestBase_CheckCancelledDefaultsFalse(t *testing.T) {
	b := NewBase()
	assert.False(t, b.CheckCancelled("t1"))
}
