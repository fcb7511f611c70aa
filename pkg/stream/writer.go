package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agenthost/chatlog/internal/metrics"
	"github.com/agenthost/chatlog/pkg/sink"
)

// insertTimeout bounds a single background insert so a hung sink
// cannot pin the worker forever.
const insertTimeout = 10 * time.Second

// asyncWriter drains a bounded queue of events into the sink. It is
// the fire-and-forget half of the live path: enqueue never blocks,
// and insert failures are swallowed (counted, logged at debug) for
// the reconciliation pass to repair.
type asyncWriter struct {
	store sink.Store
	tasks chan sink.Event
	wg    sync.WaitGroup
}

func newAsyncWriter(store sink.Store, capacity int) *asyncWriter {
	w := &asyncWriter{
		store: store,
		tasks: make(chan sink.Event, capacity),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer w.wg.Done()
	for ev := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		err := w.store.Insert(ctx, ev)
		cancel()

		metrics.Default().RecordInsert(err == nil)
		if err != nil {
			// Never surfaced to the interactive user; the verify pass
			// picks these up.
			log.Debug().Err(err).Str("session_id", ev.SessionID).Msg("Stream insert failed")
		}
	}
}

// enqueue hands an event to the background worker. Returns false when
// the queue is full and the event was dropped.
func (w *asyncWriter) enqueue(ev sink.Event) bool {
	select {
	case w.tasks <- ev:
		return true
	default:
		metrics.Default().RecordDrop()
		log.Debug().Str("session_id", ev.SessionID).Msg("Stream queue full, event dropped")
		return false
	}
}

// close stops accepting events and waits for the queue to drain.
func (w *asyncWriter) close() {
	close(w.tasks)
	w.wg.Wait()
}
