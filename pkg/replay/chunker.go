package replay

import (
	"strings"
	"time"

	"github.com/agenthost/chatlog/pkg/classify"
)

// DefaultIdleThreshold is the gap between consecutive line timestamps
// that forces a chunk boundary even when the line type is unchanged.
const DefaultIdleThreshold = 2 * time.Second

// Chunk is a contiguous span of non-blank lines sharing one label.
// Its timestamp is the timestamp of its first line.
type Chunk struct {
	Lines     []string
	Label     classify.MessageType
	Timestamp time.Time
}

// Content joins the chunk's lines into the stored event content.
func (c Chunk) Content() string {
	return strings.Join(c.Lines, "\n")
}

// BuildChunks groups timed lines into classification units. A new
// chunk starts when the per-line label changes or when the gap since
// the previous line exceeds the idle threshold. Blank lines belong to
// no chunk.
func BuildChunks(lines []TimedLine, idle time.Duration) []Chunk {
	if idle <= 0 {
		idle = DefaultIdleThreshold
	}

	var chunks []Chunk
	var current *Chunk
	var prevTS time.Time

	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}

		label := classify.LineLabel(line.Text)
		boundary := current == nil ||
			label != current.Label ||
			line.Timestamp.Sub(prevTS) > idle

		if boundary {
			if current != nil {
				chunks = append(chunks, *current)
			}
			current = &Chunk{Label: label, Timestamp: line.Timestamp}
		}
		current.Lines = append(current.Lines, line.Text)
		prevTS = line.Timestamp
	}
	if current != nil {
		chunks = append(chunks, *current)
	}

	return chunks
}
