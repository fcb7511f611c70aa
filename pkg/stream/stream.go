package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/agenthost/chatlog/pkg/sink"
)

// Config tunes the live delivery path.
type Config struct {
	// Interval is the poll cadence of the tail loop.
	Interval time.Duration
	// IdleTimeout flushes the buffer once no new line arrived for this
	// long.
	IdleTimeout time.Duration
	// MaxBuffer flushes the buffer once it exceeds this many bytes.
	MaxBuffer int
	// QueueCapacity bounds the background write queue.
	QueueCapacity int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Interval:      500 * time.Millisecond,
		IdleTimeout:   2 * time.Second,
		MaxBuffer:     500,
		QueueCapacity: 64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = d.MaxBuffer
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	return c
}

// Stream tails one session's content log and delivers events live.
// It implements the recorder's delivery contract: Start launches the
// tail loop, Stop drains everything still buffered or queued.
type Stream struct {
	cfg         Config
	store       sink.Store
	sessionID   string
	contentPath string

	writer  *asyncWriter
	tailer  *tailer
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a Stream for one session. The content log must already
// exist when Start is called.
func New(store sink.Store, sessionID, contentPath string, cfg Config) *Stream {
	return &Stream{
		cfg:         cfg.withDefaults(),
		store:       store,
		sessionID:   sessionID,
		contentPath: contentPath,
	}
}

// Start opens the content log and launches the tail loop. A watcher
// failure is not fatal; the loop falls back to pure polling.
func (s *Stream) Start(ctx context.Context) error {
	writer := newAsyncWriter(s.store, s.cfg.QueueCapacity)

	tl, err := newTailer(s.contentPath, s.sessionID, writer, s.store)
	if err != nil {
		writer.close()
		return err
	}

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		werr = watcher.Add(s.contentPath)
	}
	if werr != nil {
		log.Debug().Err(werr).Msg("Content log watch unavailable, polling only")
		if watcher != nil {
			watcher.Close()
		}
		watcher = nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.writer = writer
	s.tailer = tl
	s.watcher = watcher
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx)

	log.Info().
		Str("session_id", s.sessionID).
		Dur("interval", s.cfg.Interval).
		Msg("Live delivery started")
	return nil
}

// run polls the content log on a ticker, with watcher write events as
// early wake-ups, and flushes on the idle or size trigger.
func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if s.watcher != nil {
		watchEvents = s.watcher.Events
		watchErrors = s.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case ev, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if !ev.Has(fsnotify.Write) {
				continue
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			log.Debug().Err(err).Msg("Content log watcher error")
			continue
		}

		now := time.Now()
		if err := s.tailer.ingest(now); err != nil {
			log.Debug().Err(err).Msg("Content log read failed")
			continue
		}
		if s.tailer.buf.shouldFlush(now, s.cfg.IdleTimeout, s.cfg.MaxBuffer) {
			s.tailer.flushAsync(now)
		}
	}
}

// Stop halts the tail loop, performs one synchronous final flush and
// waits for the write queue to drain. Safe to call once after a
// successful Start.
func (s *Stream) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return fmt.Errorf("stream was never started")
	}

	s.cancel()
	<-s.done

	if s.watcher != nil {
		s.watcher.Close()
	}

	flushErr := s.tailer.flushFinal(ctx, time.Now())
	s.tailer.close()
	s.writer.close()

	log.Info().Str("session_id", s.sessionID).Msg("Live delivery stopped")
	return flushErr
}
