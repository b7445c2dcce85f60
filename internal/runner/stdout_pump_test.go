package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutPump_SplitsCompleteLinesOnly(t *testing.T) {
	var lines []string
	pump := NewStdoutPump(func(line string) { lines = append(lines, line) })

	_, err := pump.Write([]byte("frame 1 processed\nframe 2 proc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"frame 1 processed"}, lines)

	_, err = pump.Write([]byte("essed\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"frame 1 processed", "frame 2 processed"}, lines)
}

func TestStdoutPump_CloseFlushesTrailingPartialLine(t *testing.T) {
	var lines []string
	pump := NewStdoutPump(func(line string) { lines = append(lines, line) })

	_, err := pump.Write([]byte("no trailing newline"))
	require.NoError(t, err)
	assert.Empty(t, lines, "partial line must not be emitted before a newline or Close")

	require.NoError(t, pump.Close())
	assert.Equal(t, []string{"no trailing newline"}, lines)
}
