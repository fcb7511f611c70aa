package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agenthost/chatlog/internal/metrics"
	"github.com/agenthost/chatlog/pkg/classify"
	"github.com/agenthost/chatlog/pkg/sink"
)

// tailer follows the content log from the offset it has already
// consumed, carries incomplete trailing lines between reads and turns
// flushed buffers into classified events. All methods run on the
// stream loop goroutine.
type tailer struct {
	file      *os.File
	sessionID string
	writer    *asyncWriter
	store     sink.Store

	carry string
	buf   flushBuffer
}

func newTailer(path, sessionID string, writer *asyncWriter, store sink.Store) (*tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content log for tailing: %w", err)
	}
	return &tailer{
		file:      f,
		sessionID: sessionID,
		writer:    writer,
		store:     store,
	}, nil
}

// ingest reads everything appended since the last call into the flush
// buffer. Complete lines are cleaned and buffered; the trailing
// partial line is carried to the next read. A line whose label
// differs from the buffered ones flushes the buffer first, so live
// chunks break on the same boundaries the batch reconstruction uses.
func (t *tailer) ingest(now time.Time) error {
	data, err := io.ReadAll(t.file)
	if err != nil {
		return fmt.Errorf("failed to read content log: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	text := t.carry + string(data)
	lines := strings.Split(text, "\n")
	t.carry = lines[len(lines)-1]

	for _, raw := range lines[:len(lines)-1] {
		line := classify.CleanLine(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}
		t.bufferLine(line, now)
	}
	return nil
}

func (t *tailer) bufferLine(line string, now time.Time) {
	label := classify.LineLabel(line)
	if !t.buf.empty() && label != t.buf.label {
		t.flushAsync(now)
	}
	t.buf.append(line, label, now)
}

// flushAsync hands the buffered content to the background writer.
// Never blocks; a full queue drops the event.
func (t *tailer) flushAsync(now time.Time) {
	ev, ok := t.takeEvent(now)
	if !ok {
		return
	}
	t.writer.enqueue(ev)
}

// flushFinal drains the remaining buffer, including the carried
// partial line, and inserts synchronously. Called once on Stop after
// the loop has exited.
func (t *tailer) flushFinal(ctx context.Context, now time.Time) error {
	if err := t.ingest(now); err != nil {
		return err
	}
	if line := classify.CleanLine(t.carry); strings.TrimSpace(line) != "" {
		t.bufferLine(line, now)
	}
	t.carry = ""

	ev, ok := t.takeEvent(now)
	if !ok {
		return nil
	}

	err := t.store.Insert(ctx, ev)
	metrics.Default().RecordInsert(err == nil)
	if err != nil {
		return fmt.Errorf("final flush insert failed: %w", err)
	}
	return nil
}

// takeEvent empties the buffer into an event carrying the buffered
// lines' shared label. Returns false when there is nothing to emit.
func (t *tailer) takeEvent(now time.Time) (sink.Event, bool) {
	if t.buf.empty() {
		return sink.Event{}, false
	}

	label := t.buf.label
	content := t.buf.take()

	metrics.Default().RecordEvent("stream")
	log.Debug().
		Str("session_id", t.sessionID).
		Str("type", string(label)).
		Int("bytes", len(content)).
		Msg("Stream event emitted")

	return sink.NewEvent(now, t.sessionID, label, content, true), true
}

func (t *tailer) close() error {
	return t.file.Close()
}
