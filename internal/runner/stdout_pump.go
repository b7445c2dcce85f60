package runner

import (
	"log"

	"github.com/viame/batchrun/internal/logstreamer"
)

// LineFunc is invoked once per complete line of child-process output, in
// arrival order, with the trailing newline stripped.
type LineFunc func(line string)

// lineSink adapts a LineFunc into the io.Writer a *log.Logger needs, so it
// can sit behind logstreamer.Logstreamer's line-buffering.
type lineSink struct {
	fn LineFunc
}

func (s *lineSink) Write(p []byte) (int, error) {
	line := string(p)
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	s.fn(line)
	return len(p), nil
}

// NewStdoutPump returns an io.Writer suitable for assigning to
// exec.Cmd.Stdout: every complete line written to it is split out (reusing
// logstreamer's partial-line buffering so a write split mid-line doesn't
// produce a truncated callback) and handed to onLine.
//
// This is the scheduler's "stdout pump" (§4.6): reads are driven by
// exec.Cmd's own copy goroutine rather than a manual readline loop, but the
// per-line callback contract is identical.
func NewStdoutPump(onLine LineFunc) *logstreamer.Logstreamer {
	logger := log.New(&lineSink{fn: onLine}, "", 0)
	return logstreamer.NewLogstreamer(logger, "", false)
}
