package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ErrPrerequisiteMissing reports that the wrapped command or the
// terminal-capture mechanism is unavailable. Raised before any session
// state is created.
var ErrPrerequisiteMissing = errors.New("prerequisite missing")

// Mode selects the delivery path for a session.
type Mode string

const (
	// ModeStream delivers events live while the session runs, with a
	// reconciliation pass at the end.
	ModeStream Mode = "stream"
	// ModeBatch defers all delivery to a single pass after the
	// session ends.
	ModeBatch Mode = "batch"
)

// Delivery is the live delivery path started alongside the session.
// Stop performs the final synchronous flush and is awaited.
type Delivery interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DeliveryFactory builds the live delivery for a session once its
// artifacts exist. Called after the metadata record has been written,
// so meta carries the final content log path.
type DeliveryFactory func(meta *Metadata) Delivery

// ReconcileFunc runs the verify pass against the finalized artifacts
// and returns a human-readable status (validated / repaired / failed).
type ReconcileFunc func(ctx context.Context, meta *Metadata) (string, error)

// Options configures a Recorder.
type Options struct {
	Command     string
	Args        []string
	LogDir      string
	Environment string
	Mode        Mode
	NewDelivery DeliveryFactory // live path, stream mode only
	Reconcile   ReconcileFunc   // verify pass, run by the finalizer
	Stdin       io.Reader
	Stdout      io.Writer
}

// Summary is printed on every exit, regardless of how the session
// ended.
type Summary struct {
	SessionID       string
	ContentLog      string
	TimingLog       string
	MetaFile        string
	ExitCode        int
	ReconcileStatus string
}

// Recorder wraps one interactive command for one session.
type Recorder struct {
	opts Options

	meta     *Metadata
	metaPath string

	delivery     Delivery
	finalizeOnce sync.Once
	summary      Summary
}

// New validates preconditions and returns a Recorder. It fails fast
// with ErrPrerequisiteMissing before creating any session state.
func New(opts Options) (*Recorder, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("%w: no command given", ErrPrerequisiteMissing)
	}
	if _, err := exec.LookPath(opts.Command); err != nil {
		return nil, fmt.Errorf("%w: command %q not found: %v", ErrPrerequisiteMissing, opts.Command, err)
	}

	if opts.LogDir == "" {
		return nil, fmt.Errorf("%w: no log directory configured", ErrPrerequisiteMissing)
	}
	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: log directory: %v", ErrPrerequisiteMissing, err)
	}

	// Confirm a pty can be allocated at all before touching anything.
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: pty allocation: %v", ErrPrerequisiteMissing, err)
	}
	ptmx.Close()
	tty.Close()

	if opts.Environment == "" {
		opts.Environment = "ai-agent-host"
	}
	if opts.Mode == "" {
		opts.Mode = ModeBatch
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	return &Recorder{opts: opts}, nil
}

// Run records one session: allocates the pty, spawns the command,
// mirrors its output into the artifacts and finalizes the session
// metadata on every exit path. A non-zero child exit code is reported
// in the summary, not as an error.
func (r *Recorder) Run(ctx context.Context) (*Summary, error) {
	start := time.Now().UTC()
	id := NewSessionID(start)

	contentPath := filepath.Join(r.opts.LogDir, id+".log")
	timingPath := filepath.Join(r.opts.LogDir, id+".timing")
	r.metaPath = filepath.Join(r.opts.LogDir, id+".meta.json")

	content, timing, err := openArtifacts(contentPath, timingPath)
	if err != nil {
		return nil, err
	}

	r.meta = r.newMetadata(id, start, contentPath, timingPath)
	if err := r.meta.Save(r.metaPath); err != nil {
		content.Close()
		timing.Close()
		return nil, err
	}

	r.summary = Summary{
		SessionID:       id,
		ContentLog:      contentPath,
		TimingLog:       timingPath,
		MetaFile:        r.metaPath,
		ReconcileStatus: "skipped",
	}

	log.Info().
		Str("session_id", id).
		Str("command", r.opts.Command).
		Str("mode", string(r.opts.Mode)).
		Msg("Session started")

	cmd := exec.Command(r.opts.Command, r.opts.Args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		content.Close()
		timing.Close()
		r.finalize(ctx, -1)
		return &r.summary, fmt.Errorf("failed to start %s under pty: %w", r.opts.Command, err)
	}

	if r.opts.NewDelivery != nil && r.opts.Mode == ModeStream {
		d := r.opts.NewDelivery(r.meta)
		if err := d.Start(ctx); err != nil {
			// Live delivery is best effort; the batch pass covers the
			// session if it never comes up.
			log.Warn().Err(err).Msg("Live delivery failed to start")
		} else {
			r.delivery = d
		}
	}

	restore := r.setupTerminal(ptmx)
	defer restore()

	// Termination signals go to the child; the recorder itself keeps
	// running so the finalizer sees the real exit code.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigc)
		close(sigc)
	}()
	go func() {
		for sig := range sigc {
			if cmd.Process != nil {
				cmd.Process.Signal(sig)
			}
		}
	}()

	// Stdin flows into the pty for the child's lifetime. The goroutine
	// exits with the process; a blocked read on a closed stdin is
	// harmless at that point.
	go io.Copy(ptmx, r.opts.Stdin)

	capture := newCaptureWriter(content, timing, start)
	out := io.MultiWriter(r.opts.Stdout, capture)

	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		copyPtyOutput(out, ptmx)
	}()

	waitErr := cmd.Wait()
	<-copyDone
	ptmx.Close()
	content.Close()
	timing.Close()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	r.finalize(ctx, exitCode)
	return &r.summary, nil
}

// finalize stops live delivery, records end time and exit code exactly
// once and triggers reconciliation for successful streamed sessions.
// Safe to call from any exit path; only the first call has effect.
func (r *Recorder) finalize(ctx context.Context, exitCode int) {
	r.finalizeOnce.Do(func() {
		if r.delivery != nil {
			if err := r.delivery.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("Live delivery stop failed")
			}
		}

		if r.meta != nil {
			if err := r.meta.Finalize(r.metaPath, time.Now(), exitCode); err != nil {
				log.Error().Err(err).Msg("Failed to finalize session metadata")
			}
		}
		r.summary.ExitCode = exitCode

		if r.opts.Mode == ModeStream && exitCode == 0 && r.opts.Reconcile != nil {
			status, err := r.opts.Reconcile(ctx, r.meta)
			if err != nil {
				log.Warn().Err(err).Msg("Reconciliation failed")
				status = "failed"
			}
			r.summary.ReconcileStatus = status
		}

		log.Info().
			Str("session_id", r.summary.SessionID).
			Int("exit_code", exitCode).
			Str("reconcile", r.summary.ReconcileStatus).
			Msg("Session finalized")
	})
}

func (r *Recorder) newMetadata(id string, start time.Time, contentPath, timingPath string) *Metadata {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()

	return &Metadata{
		SessionID:      id,
		Mode:           string(r.opts.Mode),
		StartTime:      start,
		User:           username,
		Hostname:       hostname,
		WorkingDir:     wd,
		Command:        strings.TrimSpace(r.opts.Command + " " + strings.Join(r.opts.Args, " ")),
		CommandVersion: commandVersion(r.opts.Command),
		Environment:    r.opts.Environment,
		ContentLog:     contentPath,
		TimingLog:      timingPath,
	}
}

// setupTerminal puts stdin into raw mode when it is a terminal and
// keeps the pty sized to the controlling terminal. Returns a restore
// function for the deferred cleanup.
func (r *Recorder) setupTerminal(ptmx *os.File) func() {
	stdinFile, ok := r.opts.Stdin.(*os.File)
	if !ok || !term.IsTerminal(int(stdinFile.Fd())) {
		return func() {}
	}

	oldState, err := term.MakeRaw(int(stdinFile.Fd()))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to set raw mode")
		return func() {}
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			if err := pty.InheritSize(stdinFile, ptmx); err != nil {
				log.Debug().Err(err).Msg("Resize failed")
			}
		}
	}()
	winch <- syscall.SIGWINCH

	return func() {
		signal.Stop(winch)
		close(winch)
		term.Restore(int(stdinFile.Fd()), oldState)
	}
}

// copyPtyOutput drains the pty into out. On Linux the pty read fails
// with EIO once the child exits; that is the normal end of stream.
func copyPtyOutput(out io.Writer, ptmx *os.File) {
	if _, err := io.Copy(out, ptmx); err != nil && !errors.Is(err, syscall.EIO) {
		log.Debug().Err(err).Msg("Pty copy ended")
	}
}

// commandVersion resolves "<command> --version" with a short timeout,
// best effort.
func commandVersion(command string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, command, "--version").Output()
	if err != nil {
		return ""
	}
	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return strings.TrimSpace(line)
}
