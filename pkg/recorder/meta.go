package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Metadata is the session record persisted next to the log artifacts.
// It is written once at session start and amended exactly once at
// session end.
type Metadata struct {
	SessionID      string     `json:"session_id"`
	Mode           string     `json:"mode"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	ExitCode       *int       `json:"exit_code"`
	User           string     `json:"user"`
	Hostname       string     `json:"hostname"`
	WorkingDir     string     `json:"working_dir"`
	Command        string     `json:"command"`
	CommandVersion string     `json:"command_version,omitempty"`
	Environment    string     `json:"environment"`
	ContentLog     string     `json:"content_log"`
	TimingLog      string     `json:"timing_log"`
}

// metaSchema validates metadata records on load. A record failing the
// schema is treated as a corrupt artifact by the batch path.
const metaSchema = `{
	"type": "object",
	"required": ["session_id", "mode", "start_time", "user", "hostname", "working_dir", "content_log", "timing_log"],
	"properties": {
		"session_id": {"type": "string", "minLength": 1},
		"mode": {"type": "string", "enum": ["stream", "batch"]},
		"start_time": {"type": "string"},
		"end_time": {"type": ["string", "null"]},
		"exit_code": {"type": ["integer", "null"]},
		"user": {"type": "string"},
		"hostname": {"type": "string"},
		"working_dir": {"type": "string"},
		"command": {"type": "string"},
		"command_version": {"type": "string"},
		"environment": {"type": "string"},
		"content_log": {"type": "string", "minLength": 1},
		"timing_log": {"type": "string", "minLength": 1}
	}
}`

// Save writes the metadata record to path with restricted permissions.
func (m *Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Finalized reports whether the end of session has been recorded.
func (m *Metadata) Finalized() bool {
	return m.EndTime != nil
}

// Finalize sets end time and exit code and persists the record. A
// second call is a no-op: the first finalization wins and the stored
// values are never overwritten.
func (m *Metadata) Finalize(path string, end time.Time, exitCode int) error {
	if m.Finalized() {
		return nil
	}
	end = end.UTC()
	m.EndTime = &end
	m.ExitCode = &exitCode
	return m.Save(path)
}

// LoadMetadata reads and schema-validates a metadata record.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metaSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate metadata %s: %w", path, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid metadata %s: %s", path, result.Errors()[0])
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return &meta, nil
}
