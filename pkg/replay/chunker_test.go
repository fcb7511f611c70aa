package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthost/chatlog/pkg/classify"
)

func timedLines(start time.Time, step time.Duration, texts ...string) []TimedLine {
	lines := make([]TimedLine, len(texts))
	for i, text := range texts {
		lines[i] = TimedLine{Text: text, Timestamp: start.Add(time.Duration(i) * step)}
	}
	return lines
}

func TestBuildChunks_BoundaryOnLabelChange(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	lines := timedLines(start, 100*time.Millisecond,
		"> list files",
		"I'll list the files",
		"here they are",
		"● Bash(ls)",
	)

	chunks := BuildChunks(lines, DefaultIdleThreshold)
	require.Len(t, chunks, 3)

	assert.Equal(t, classify.UserInput, chunks[0].Label)
	assert.Equal(t, classify.AssistantResponse, chunks[1].Label)
	assert.Equal(t, []string{"I'll list the files", "here they are"}, chunks[1].Lines)
	assert.Equal(t, classify.ToolUsage, chunks[2].Label)
}

func TestBuildChunks_BoundaryOnIdleGap(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	lines := []TimedLine{
		{Text: "output line one", Timestamp: start},
		{Text: "output line two", Timestamp: start.Add(time.Second)},
		// Same label, but a long pause forces a new chunk.
		{Text: "output after a pause", Timestamp: start.Add(10 * time.Second)},
	}

	chunks := BuildChunks(lines, 2*time.Second)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"output line one", "output line two"}, chunks[0].Lines)
	assert.Equal(t, []string{"output after a pause"}, chunks[1].Lines)
	assert.Equal(t, start.Add(10*time.Second), chunks[1].Timestamp)
}

func TestBuildChunks_SkipsBlankLines(t *testing.T) {
	start := time.Now()
	lines := timedLines(start, 10*time.Millisecond,
		"",
		"> status",
		"   ",
		"\t",
		"I'll check",
	)

	chunks := BuildChunks(lines, DefaultIdleThreshold)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"> status"}, chunks[0].Lines)
	assert.Equal(t, []string{"I'll check"}, chunks[1].Lines)
}

func TestBuildChunks_Completeness(t *testing.T) {
	start := time.Now()
	texts := []string{
		"> run the tests",
		"",
		"I'll run them now",
		"Running: go test ./...",
		"ok  pkg 0.2s",
		"  ",
		"✅ all green",
		"> thanks",
	}
	lines := timedLines(start, 50*time.Millisecond, texts...)

	chunks := BuildChunks(lines, DefaultIdleThreshold)

	// Every non-blank line appears in exactly one chunk.
	var collected []string
	for _, c := range chunks {
		collected = append(collected, c.Lines...)
	}

	var nonBlank []string
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonBlank = append(nonBlank, text)
		}
	}
	assert.Equal(t, nonBlank, collected)
}

func TestBuildChunks_TimestampsMonotonic(t *testing.T) {
	start := time.Now()
	lines := timedLines(start, 700*time.Millisecond,
		"> one", "reply one", "> two", "reply two", "● Read(x.go)", "> three",
	)

	chunks := BuildChunks(lines, DefaultIdleThreshold)
	for i := 1; i < len(chunks); i++ {
		assert.False(t, chunks[i].Timestamp.Before(chunks[i-1].Timestamp),
			"chunk %d timestamp went backwards", i)
	}
}

func TestBuildChunks_Empty(t *testing.T) {
	assert.Empty(t, BuildChunks(nil, DefaultIdleThreshold))
	assert.Empty(t, BuildChunks([]TimedLine{{Text: "   ", Timestamp: time.Now()}}, DefaultIdleThreshold))
}
