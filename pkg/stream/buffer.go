package stream

import (
	"strings"
	"time"

	"github.com/agenthost/chatlog/pkg/classify"
)

// flushBuffer accumulates cleaned lines between flushes. All buffered
// lines share one label; the tailer flushes before appending a line
// whose label differs, mirroring the batch chunker's boundaries so
// the verify pass can match live rows by type and content. Owned by
// the tailer goroutine; the final flush happens after the loop has
// stopped, so no locking is needed.
type flushBuffer struct {
	lines      []string
	label      classify.MessageType
	size       int
	lastAppend time.Time
}

func (b *flushBuffer) append(line string, label classify.MessageType, now time.Time) {
	if len(b.lines) == 0 {
		b.label = label
	}
	b.lines = append(b.lines, line)
	b.size += len(line) + 1
	b.lastAppend = now
}

func (b *flushBuffer) empty() bool {
	return len(b.lines) == 0
}

// shouldFlush applies the dual trigger: an inactivity timeout flushes
// small chatty output promptly, a size threshold keeps large output
// batched.
func (b *flushBuffer) shouldFlush(now time.Time, idle time.Duration, maxSize int) bool {
	if b.empty() {
		return false
	}
	if b.size > maxSize {
		return true
	}
	return now.Sub(b.lastAppend) > idle
}

// take returns the buffered content and resets the buffer.
func (b *flushBuffer) take() string {
	content := strings.Join(b.lines, "\n")
	b.lines = nil
	b.size = 0
	return content
}
