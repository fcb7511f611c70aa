package classify

import (
	"regexp"
	"sort"
	"strings"
)

var toolCall = regexp.MustCompile(`●\s*(\w+)\((.*?)\)`)

// filePatterns map tool output shapes to the operation they imply.
// Checked in order; the first match wins.
var filePatterns = []struct {
	pattern   *regexp.Regexp
	operation string
}{
	{regexp.MustCompile(`●\s*Read\((.*?)\)`), "read"},
	{regexp.MustCompile(`●\s*Write\((.*?)\)`), "write"},
	{regexp.MustCompile(`●\s*Edit\((.*?)\)`), "edit"},
	{regexp.MustCompile(`●\s*Bash.*?(/[\w\-/.]+)`), "execute"},
	{regexp.MustCompile(`created.*?(/[\w\-/.]+)`), "create"},
}

// projectKeywords score content against known project areas. Plain
// substring matching keeps the tag deterministic.
var projectKeywords = map[string][]string{
	"ai-agent-host": {"agent-host", "claude", "grafana", "agentic"},
	"python":        {"python", "pip", ".py", "conda", "jupyter"},
	"docker":        {"docker", "container", "compose", "dockerfile"},
	"database":      {"questdb", "sql", "schema", "time-series", "database"},
	"javascript":    {"javascript", "node", "npm", ".js"},
}

// ExtractTool pulls the tool name and arguments out of a tool-usage
// chunk like "● Read(notes.txt)".
func ExtractTool(content string) (name, args string, ok bool) {
	m := toolCall.FindStringSubmatch(content)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), m[2], true
}

// ExtractFile returns the file path and operation referenced by a
// chunk, if any.
func ExtractFile(content string) (path, operation string, ok bool) {
	for _, fp := range filePatterns {
		if m := fp.pattern.FindStringSubmatch(content); m != nil {
			return m[1], fp.operation, true
		}
	}
	return "", "", false
}

// DetectProjectTag guesses the project area a chunk belongs to by
// keyword occurrence count. Returns "" when nothing matches. Ties
// break alphabetically so repeated runs agree.
func DetectProjectTag(content string) string {
	lower := strings.ToLower(content)

	best, bestScore := "", 0
	tags := make([]string, 0, len(projectKeywords))
	for tag := range projectKeywords {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		score := 0
		for _, kw := range projectKeywords[tag] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = tag, score
		}
	}
	return best
}

// EstimateTokens approximates the token count of content as one token
// per four characters, with a floor of one.
func EstimateTokens(content string) int {
	n := len(content) / 4
	if n < 1 {
		n = 1
	}
	return n
}
