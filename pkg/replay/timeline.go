package replay

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agenthost/chatlog/pkg/classify"
)

// ErrCorruptArtifact reports an unreadable or inconsistent timing or
// content log. Fatal to the affected pass; already-stored data is
// untouched.
var ErrCorruptArtifact = errors.New("corrupt artifact")

// TimingEntry is one line of the timing log: the delay before a pty
// write and the number of bytes written.
type TimingEntry struct {
	Delay time.Duration
	Bytes int
}

// TimedLine is one content-log line with its reconstructed absolute
// timestamp: session start plus the cumulative delay of the write
// that produced the line's first byte.
type TimedLine struct {
	Text      string
	Timestamp time.Time
}

// ParseTimingLog reads a script(1)-format timing log. Malformed lines
// fail the pass with ErrCorruptArtifact, including the offending line
// number.
func ParseTimingLog(path string) ([]TimingEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, path, err)
	}
	defer f.Close()

	var entries []TimingEntry
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: %s:%d: expected \"delay bytes\", got %q", ErrCorruptArtifact, path, lineNum, line)
		}

		delay, err := strconv.ParseFloat(parts[0], 64)
		if err != nil || delay < 0 {
			return nil, fmt.Errorf("%w: %s:%d: bad delay %q", ErrCorruptArtifact, path, lineNum, parts[0])
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: %s:%d: bad byte count %q", ErrCorruptArtifact, path, lineNum, parts[1])
		}

		entries = append(entries, TimingEntry{
			Delay: time.Duration(delay * float64(time.Second)),
			Bytes: count,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s: no timing entries", ErrCorruptArtifact, path)
	}

	return entries, nil
}

// BuildTimeline assigns an absolute timestamp to every line of the
// content log by replaying the timing entries. Lines are cleaned of
// escape sequences; blank lines are kept so chunking can skip them
// while still accounting for every line.
func BuildTimeline(contentPath string, entries []TimingEntry, start time.Time) ([]TimedLine, error) {
	raw, err := os.ReadFile(contentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, contentPath, err)
	}

	total := 0
	for _, e := range entries {
		total += e.Bytes
	}
	if total > len(raw) {
		return nil, fmt.Errorf("%w: %s: timing log claims %d bytes, content has %d",
			ErrCorruptArtifact, contentPath, total, len(raw))
	}
	if total < len(raw) {
		// A trailing write past the last timing entry (e.g. the pty
		// flushing on close) keeps the last timestamp.
		log.Debug().
			Str("content_log", contentPath).
			Int("timed", total).
			Int("actual", len(raw)).
			Msg("Content log longer than timing log; tail keeps last timestamp")
	}

	// Timestamp of every byte offset where a write begins.
	type writeSpan struct {
		offset int
		ts     time.Time
	}
	spans := make([]writeSpan, 0, len(entries))
	cumulative := time.Duration(0)
	offset := 0
	for _, e := range entries {
		cumulative += e.Delay
		spans = append(spans, writeSpan{offset: offset, ts: start.Add(cumulative)})
		offset += e.Bytes
	}

	// Line starts are visited in order, so a single cursor over the
	// spans suffices.
	spanIdx := 0
	tsForOffset := func(pos int) time.Time {
		for spanIdx+1 < len(spans) && spans[spanIdx+1].offset <= pos {
			spanIdx++
		}
		return spans[spanIdx].ts
	}

	var lines []TimedLine
	lineStart := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '\n' {
			if i == len(raw) && lineStart == i {
				break
			}
			text := classify.CleanLine(string(raw[lineStart:i]))
			lines = append(lines, TimedLine{Text: text, Timestamp: tsForOffset(lineStart)})
			lineStart = i + 1
		}
	}

	return lines, nil
}
