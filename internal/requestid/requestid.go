// Package requestid generates the locally unique identifier the header
// conventions stage stamps onto X-Request-Id (spec.md §4.3). The
// teacher's internal/proxy.ensureRequestID built IDs from a timestamp and
// an atomic counter; this implementation instead draws on the uuid
// library already present in the example pack's caddyserver-caddy
// go.mod, which is a better-grounded building block for a "unique
// identifier" than hand-rolled counters.
package requestid

import "github.com/google/uuid"

// New returns a new random request identifier.
func New() string {
	return uuid.NewString()
}
