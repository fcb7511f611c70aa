package sink

import (
	"fmt"
	"time"

	"github.com/agenthost/chatlog/pkg/classify"
)

// keyPrefixLen bounds the content part of an event key. Long chunks
// differ within the first 64 characters in practice, and the prefix
// keeps the verify query result small.
const keyPrefixLen = 64

// Event is one classified, timestamped unit of conversation content.
// Events are immutable once written; repair re-inserts missing ones
// but never updates rows in place.
type Event struct {
	Timestamp     time.Time
	SessionID     string
	Type          classify.MessageType
	Content       string
	ProjectTag    string
	ToolUsed      string
	FileModified  string
	ContextTokens int
	Streaming     bool
}

// NewEvent builds an event from a classified chunk, filling the
// ancillary fields from the content. The timestamp is truncated to
// microseconds, the resolution of the chat table's TIMESTAMP column;
// sub-microsecond remainders would make stored and reconstructed
// events disagree.
func NewEvent(ts time.Time, sessionID string, label classify.MessageType, content string, streaming bool) Event {
	ev := Event{
		Timestamp:     ts.UTC().Truncate(time.Microsecond),
		SessionID:     sessionID,
		Type:          label,
		Content:       content,
		ProjectTag:    classify.DetectProjectTag(content),
		ContextTokens: classify.EstimateTokens(content),
		Streaming:     streaming,
	}

	if label == classify.ToolUsage || label == classify.AssistantResponse {
		if path, _, ok := classify.ExtractFile(content); ok {
			ev.FileModified = path
		}
		if label == classify.ToolUsage {
			if name, _, ok := classify.ExtractTool(content); ok {
				ev.ToolUsed = name
			}
		}
	}

	return ev
}

// Key returns the identity used to compare stored and reconstructed
// events during verification. The timestamp component is rendered at
// microsecond precision so keys survive a round trip through the
// sink's TIMESTAMP column.
func (e Event) Key() string {
	return fmt.Sprintf("%s|%s|%s",
		e.Timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		e.Type, e.contentPrefix())
}

// LooseKey identifies an event by type and content prefix only. Rows
// written by the live path carry wall-clock flush timestamps that the
// timing-log reconstruction cannot reproduce, so the verify pass
// matches them without the timestamp component.
func (e Event) LooseKey() string {
	return fmt.Sprintf("%s|%s", e.Type, e.contentPrefix())
}

func (e Event) contentPrefix() string {
	if len(e.Content) > keyPrefixLen {
		return e.Content[:keyPrefixLen]
	}
	return e.Content
}
