// Package sink persists message events to QuestDB over the Postgres
// wire protocol.
//
// Invariants:
// - The chat table is append-only: this package issues CREATE TABLE IF
//   NOT EXISTS, INSERT and SELECT statements, never UPDATE or DELETE.
// - EnsureSchema is idempotent and must succeed before any insert.
// - Events are keyed by timestamp, type and a content prefix; the
//   verify pass uses those keys to re-insert only what is missing.
//
// Usage:
//
//	store, _ := sink.Open(ctx, sink.Config{Host: "localhost", Port: 8812})
//	_ = store.EnsureSchema(ctx)
//	_ = store.Insert(ctx, ev)
package sink
