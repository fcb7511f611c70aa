// Package recorder wraps an interactive command in a pseudo-terminal
// and captures its output into session artifacts.
//
// Invariants:
// - The content log receives every byte the child writes, including
//   control sequences; the timing log records the delay before each
//   write in script(1) format ("delay bytes").
// - Artifacts and the metadata record are created before the child
//   starts; end time and exit code are written exactly once, on every
//   exit path, by a once-guarded finalizer.
// - The content and timing logs are written only by the recorder;
//   the live delivery path reads them concurrently but never writes.
//
// Usage:
//
//	rec, _ := recorder.New(recorder.Options{Command: "claude", LogDir: dir})
//	summary, _ := rec.Run(ctx)
package recorder
