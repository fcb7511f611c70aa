package recorder

import (
	"fmt"
	"io"
	"os"
	"time"
)

// captureWriter duplicates pty output into the content log while
// recording the wall-clock delay before each write into the timing
// log, in script(1) format: "delay bytes" per line.
//
// Only the single pty copy goroutine writes here, so no locking is
// needed; readers tail the files concurrently, which is safe for
// append-only writes.
type captureWriter struct {
	content io.Writer
	timing  io.Writer
	last    time.Time
	now     func() time.Time
}

func newCaptureWriter(content, timing io.Writer, start time.Time) *captureWriter {
	return &captureWriter{
		content: content,
		timing:  timing,
		last:    start,
		now:     time.Now,
	}
}

func (w *captureWriter) Write(p []byte) (int, error) {
	now := w.now()
	delay := now.Sub(w.last).Seconds()
	if delay < 0 {
		delay = 0
	}
	w.last = now

	if _, err := fmt.Fprintf(w.timing, "%.6f %d\n", delay, len(p)); err != nil {
		return 0, fmt.Errorf("failed to write timing entry: %w", err)
	}
	n, err := w.content.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write content log: %w", err)
	}
	return n, nil
}

// openArtifacts creates the content and timing log files before the
// child process starts.
func openArtifacts(contentPath, timingPath string) (content, timing *os.File, err error) {
	content, err = os.OpenFile(contentPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create content log: %w", err)
	}
	timing, err = os.OpenFile(timingPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		content.Close()
		os.Remove(contentPath)
		return nil, nil, fmt.Errorf("failed to create timing log: %w", err)
	}
	return content, timing, nil
}
