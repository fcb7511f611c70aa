package recorder

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID returns a time-based identifier with a short random
// suffix, e.g. "20250601_103000_k3x9qa". Collisions within the same
// second are accepted as improbable; the recorder refuses to reuse
// artifacts if one ever occurs.
func NewSessionID(now time.Time) string {
	suffix, err := gonanoid.Generate(idAlphabet, 6)
	if err != nil {
		// gonanoid only fails when the system entropy source is
		// broken; fall back to the nanosecond clock.
		suffix = fmt.Sprintf("%06d", now.Nanosecond()%1000000)
	}
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), suffix)
}
