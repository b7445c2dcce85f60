package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatcher_CloseRunsHandlersOnceAndClosesDone(t *testing.T) {
	w := &Watcher{doneCh: make(chan struct{})}

	calls := 0
	w.AddOnClose(func() { calls++ })
	w.AddOnClose(func() { calls++ })

	w.Close()
	w.Close()

	assert.Equal(t, 2, calls)
	select {
	case <-w.Done():
	default:
		t.Fatal("expected Done channel to be closed")
	}
}
