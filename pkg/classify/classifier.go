package classify

import (
	"regexp"
	"strings"
)

// MessageType is the label assigned to one classified chunk.
type MessageType string

const (
	UserInput         MessageType = "user_input"
	AssistantResponse MessageType = "assistant_response"
	ToolUsage         MessageType = "tool_usage"
)

// rule pairs a leading-line pattern with the label it produces.
type rule struct {
	pattern *regexp.Regexp
	label   MessageType
}

// Rules are checked top to bottom; the first match wins. The tool-call
// pattern sits above the bare bullet so "● Bash(ls)" is tool usage
// while a plain "● done" bullet stays an assistant response.
var rules = []rule{
	{regexp.MustCompile(`^(>|\$|❯|➜)\s`), UserInput},
	{regexp.MustCompile(`^●\s*\w+\(`), ToolUsage},
	{regexp.MustCompile(`^(⎿|Running: )`), ToolUsage},
	{regexp.MustCompile(`^(I'll |Let me |●|✅|❌)`), AssistantResponse},
}

var (
	questionShape   = regexp.MustCompile(`^[a-z][^\n]*\?\s*$`)
	imperativeShape = regexp.MustCompile(`^[A-Z][a-z]*\s+[a-z]`)
)

// Classify assigns a message type to a chunk of terminal text based on
// its first non-blank line. The second return value is false when the
// chunk is empty or whitespace-only, in which case no event should be
// emitted.
func Classify(chunk string) (MessageType, bool) {
	line := firstNonBlankLine(chunk)
	if line == "" {
		return "", false
	}
	return LineLabel(line), true
}

// LineLabel returns the label a single line would produce. The batch
// chunker uses this per line to decide chunk boundaries, so it must
// agree with Classify for single-line chunks.
func LineLabel(line string) MessageType {
	line = strings.TrimLeft(line, " \t")

	for _, r := range rules {
		if r.pattern.MatchString(line) {
			return r.label
		}
	}

	// Fallback: question or imperative shaped lines read as the user
	// talking; everything else is attributed to the assistant.
	if questionShape.MatchString(line) || imperativeShape.MatchString(line) {
		return UserInput
	}
	return AssistantResponse
}

func firstNonBlankLine(chunk string) string {
	for _, line := range strings.Split(chunk, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
