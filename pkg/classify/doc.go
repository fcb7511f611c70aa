// Package classify labels spans of captured terminal text as
// conversation message types.
//
// Invariants:
// - Classification is a pure function of the chunk text: the same
//   input always yields the same label.
// - Rules are evaluated in a fixed priority order; the first match
//   wins and no confidence score is computed.
// - Blank or whitespace-only chunks classify to nothing and are
//   discarded by callers.
//
// Usage:
//
//	label, ok := classify.Classify("> list files")
//	if ok {
//		// label == classify.UserInput
//	}
package classify
