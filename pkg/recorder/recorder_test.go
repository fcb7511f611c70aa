package recorder

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDelivery struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (d *stubDelivery) Start(ctx context.Context) error {
	d.started.Add(1)
	return nil
}

func (d *stubDelivery) Stop(ctx context.Context) error {
	d.stopped.Add(1)
	return nil
}

func TestNew_MissingCommand(t *testing.T) {
	_, err := New(Options{Command: "definitely-not-a-real-binary-xyz", LogDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrerequisiteMissing)
}

func TestNew_MissingLogDir(t *testing.T) {
	_, err := New(Options{Command: "sh"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrerequisiteMissing)
}

func TestNew_Defaults(t *testing.T) {
	rec, err := New(Options{Command: "sh", LogDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, rec.opts.Mode)
	assert.Equal(t, "ai-agent-host", rec.opts.Environment)
}

func TestRun_RecordsSessionAndFinalizes(t *testing.T) {
	dir := t.TempDir()

	rec, err := New(Options{
		Command: "sh",
		Args:    []string{"-c", "printf 'captured output'"},
		LogDir:  dir,
		Stdin:   bytes.NewReader(nil),
		Stdout:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	summary, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode)
	assert.NotEmpty(t, summary.SessionID)

	content, err := os.ReadFile(summary.ContentLog)
	require.NoError(t, err)
	assert.Contains(t, string(content), "captured output")

	timing, err := os.ReadFile(summary.TimingLog)
	require.NoError(t, err)
	assert.NotEmpty(t, timing)
	for _, line := range strings.Split(strings.TrimSpace(string(timing)), "\n") {
		parts := strings.Fields(line)
		assert.Len(t, parts, 2, "timing line %q", line)
	}

	meta, err := LoadMetadata(summary.MetaFile)
	require.NoError(t, err)
	require.NotNil(t, meta.EndTime)
	require.NotNil(t, meta.ExitCode)
	assert.Equal(t, 0, *meta.ExitCode)
	assert.False(t, meta.EndTime.Before(meta.StartTime))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	rec, err := New(Options{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
		LogDir:  t.TempDir(),
		Stdin:   bytes.NewReader(nil),
		Stdout:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	summary, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ExitCode)

	meta, err := LoadMetadata(summary.MetaFile)
	require.NoError(t, err)
	require.NotNil(t, meta.ExitCode)
	assert.Equal(t, 3, *meta.ExitCode)
}

func TestRun_StreamModeStopsDeliveryAndReconciles(t *testing.T) {
	delivery := &stubDelivery{}
	var reconciled atomic.Int32
	var factoryMeta *Metadata

	rec, err := New(Options{
		Command: "sh",
		Args:    []string{"-c", "printf done"},
		LogDir:  t.TempDir(),
		Mode:    ModeStream,
		NewDelivery: func(meta *Metadata) Delivery {
			factoryMeta = meta
			return delivery
		},
		Reconcile: func(ctx context.Context, meta *Metadata) (string, error) {
			reconciled.Add(1)
			return "validated", nil
		},
		Stdin:  bytes.NewReader(nil),
		Stdout: &bytes.Buffer{},
	})
	require.NoError(t, err)

	summary, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), delivery.started.Load())
	assert.Equal(t, int32(1), delivery.stopped.Load())
	assert.Equal(t, int32(1), reconciled.Load())
	assert.Equal(t, "validated", summary.ReconcileStatus)

	// The factory sees the metadata with artifact paths already set.
	require.NotNil(t, factoryMeta)
	assert.Equal(t, summary.ContentLog, factoryMeta.ContentLog)

	// The finalizer is once-guarded: a second invocation is inert.
	rec.finalize(context.Background(), 99)
	assert.Equal(t, int32(1), delivery.stopped.Load())
	assert.Equal(t, int32(1), reconciled.Load())
	assert.Equal(t, 0, summary.ExitCode)
}

func TestRun_BatchModeSkipsReconcile(t *testing.T) {
	rec, err := New(Options{
		Command: "sh",
		Args:    []string{"-c", "true"},
		LogDir:  t.TempDir(),
		Stdin:   bytes.NewReader(nil),
		Stdout:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	summary, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "skipped", summary.ReconcileStatus)
}
