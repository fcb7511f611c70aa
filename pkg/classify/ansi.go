package classify

import (
	"regexp"
	"strings"
)

// ansiEscape matches CSI sequences and single-character escapes as
// emitted by interactive programs (colors, cursor movement, etc.).
var ansiEscape = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal escape sequences from s. The raw bytes
// stay in the content log; only the stored event content is cleaned.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// CleanLine strips escape sequences, carriage returns and trailing
// whitespace from a captured line.
func CleanLine(line string) string {
	line = StripANSI(line)
	line = strings.ReplaceAll(line, "\r", "")
	return strings.TrimRight(line, " \t")
}
