// Package stream tails a growing content log during a live session
// and delivers classified events to the sink with low latency.
//
// Invariants:
// - The poll loop never blocks on the sink: writes go through a
//   bounded queue and a full queue drops the event instead of
//   stalling the interactive session. Drops are repaired by the
//   verify pass.
// - Only the recorder writes the content log; this package reads it.
// - Stop performs one final synchronous, awaited flush; in-loop
//   flushes are fire-and-forget.
//
// Ordering is best effort only; the batch reconciliation pass is
// authoritative.
package stream
