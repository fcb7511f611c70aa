package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifacts(t *testing.T, writes []string, delays []float64) (contentPath, timingPath string) {
	t.Helper()
	require.Equal(t, len(writes), len(delays))

	dir := t.TempDir()
	contentPath = filepath.Join(dir, "session.log")
	timingPath = filepath.Join(dir, "session.timing")

	var content, timing string
	for i, w := range writes {
		content += w
		timing += fmt.Sprintf("%.6f %d\n", delays[i], len(w))
	}
	require.NoError(t, os.WriteFile(contentPath, []byte(content), 0600))
	require.NoError(t, os.WriteFile(timingPath, []byte(timing), 0600))
	return contentPath, timingPath
}

func TestParseTimingLog_Valid(t *testing.T) {
	_, timingPath := writeArtifacts(t,
		[]string{"hello\n", "world\n"},
		[]float64{0.25, 1.5},
	)

	entries, err := ParseTimingLog(timingPath)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 250*time.Millisecond, entries[0].Delay)
	assert.Equal(t, 6, entries[0].Bytes)
	assert.Equal(t, 1500*time.Millisecond, entries[1].Delay)
}

func TestParseTimingLog_Malformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"missing field", "0.5\n"},
		{"bad delay", "abc 10\n"},
		{"negative delay", "-1.0 10\n"},
		{"bad count", "0.5 ten\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".timing")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := ParseTimingLog(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptArtifact)
		})
	}
}

func TestParseTimingLog_MissingFile(t *testing.T) {
	_, err := ParseTimingLog(filepath.Join(t.TempDir(), "nope.timing"))
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestBuildTimeline_CumulativeTimestamps(t *testing.T) {
	contentPath, timingPath := writeArtifacts(t,
		[]string{"first\n", "second\n", "third\n"},
		[]float64{0.5, 1.0, 2.0},
	)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	entries, err := ParseTimingLog(timingPath)
	require.NoError(t, err)
	lines, err := BuildTimeline(contentPath, entries, start)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, start.Add(500*time.Millisecond), lines[0].Timestamp)
	assert.Equal(t, start.Add(1500*time.Millisecond), lines[1].Timestamp)
	assert.Equal(t, start.Add(3500*time.Millisecond), lines[2].Timestamp)
}

func TestBuildTimeline_LineSpansMultipleWrites(t *testing.T) {
	// One logical line delivered in two pty writes: the line gets the
	// timestamp of the write containing its first byte.
	contentPath, timingPath := writeArtifacts(t,
		[]string{"par", "tial line\n"},
		[]float64{0.5, 3.0},
	)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	entries, err := ParseTimingLog(timingPath)
	require.NoError(t, err)
	lines, err := BuildTimeline(contentPath, entries, start)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "partial line", lines[0].Text)
	assert.Equal(t, start.Add(500*time.Millisecond), lines[0].Timestamp)
}

func TestBuildTimeline_TruncatedContent(t *testing.T) {
	dir := t.TempDir()
	contentPath := filepath.Join(dir, "session.log")
	timingPath := filepath.Join(dir, "session.timing")
	require.NoError(t, os.WriteFile(contentPath, []byte("short"), 0600))
	require.NoError(t, os.WriteFile(timingPath, []byte("0.1 500\n"), 0600))

	entries, err := ParseTimingLog(timingPath)
	require.NoError(t, err)

	_, err = BuildTimeline(contentPath, entries, time.Now())
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestBuildTimeline_StripsEscapes(t *testing.T) {
	contentPath, timingPath := writeArtifacts(t,
		[]string{"\x1b[32m> ok\x1b[0m\r\n"},
		[]float64{0.1},
	)

	entries, err := ParseTimingLog(timingPath)
	require.NoError(t, err)
	lines, err := BuildTimeline(contentPath, entries, time.Now())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "> ok", lines[0].Text)
}
