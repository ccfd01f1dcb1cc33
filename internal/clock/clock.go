// Package clock provides the UTC timestamp and identity helpers shared by
// every component that needs a stable "now" or a short, unique id.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Layout is the wire timestamp format: UTC ISO 8601 with a trailing Z,
// second precision. Every persisted timestamp in this module uses it.
const Layout = "2006-01-02T15:04:05Z"

// Now returns the current instant in UTC, truncated to second precision so
// that round-tripping through Format/Parse is lossless.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Format renders t as the wire timestamp format.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads the wire timestamp format.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

// ShortID returns a short, unique identifier suitable for session ids and
// other non-content-addressed identity needs. It is a UUIDv4 with the
// hyphens stripped, truncated to 16 hex characters.
func ShortID() string {
	id := uuid.New().String()
	compact := make([]byte, 0, len(id))
	for _, r := range id {
		if r != '-' {
			compact = append(compact, byte(r))
		}
	}
	return string(compact[:16])
}
