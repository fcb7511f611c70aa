package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTool(t *testing.T) {
	name, args, ok := ExtractTool("● Read(/tmp/notes.txt)")
	assert.True(t, ok)
	assert.Equal(t, "read", name)
	assert.Equal(t, "/tmp/notes.txt", args)

	name, args, ok = ExtractTool("● Bash(ls -la)")
	assert.True(t, ok)
	assert.Equal(t, "bash", name)
	assert.Equal(t, "ls -la", args)

	_, _, ok = ExtractTool("no tool call here")
	assert.False(t, ok)
}

func TestExtractFile(t *testing.T) {
	tests := []struct {
		content   string
		path      string
		operation string
	}{
		{"● Read(/etc/hosts)", "/etc/hosts", "read"},
		{"● Write(config.json)", "config.json", "write"},
		{"● Edit(main.go)", "main.go", "edit"},
		{"● Bash(cat /var/log/syslog)", "/var/log/syslog", "execute"},
		{"created /opt/app/run.sh", "/opt/app/run.sh", "create"},
	}

	for _, tt := range tests {
		path, op, ok := ExtractFile(tt.content)
		assert.True(t, ok, tt.content)
		assert.Equal(t, tt.path, path)
		assert.Equal(t, tt.operation, op)
	}

	_, _, ok := ExtractFile("nothing file related")
	assert.False(t, ok)
}

func TestDetectProjectTag(t *testing.T) {
	assert.Equal(t, "python", DetectProjectTag("pip install pandas for the python script"))
	assert.Equal(t, "docker", DetectProjectTag("rebuild the docker container from the compose file"))
	assert.Equal(t, "database", DetectProjectTag("the questdb table needs a new schema"))
	assert.Equal(t, "", DetectProjectTag("completely unrelated text"))
}

func TestDetectProjectTag_Deterministic(t *testing.T) {
	content := "python script inside a docker container"
	first := DetectProjectTag(content)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, DetectProjectTag(content))
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("12345678"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}
