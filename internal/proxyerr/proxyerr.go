// Package proxyerr maps the canonical proxy error kinds from spec.md §7
// to the status codes the proxy emits itself (as distinct from upstream
// responses relayed verbatim).
package proxyerr

import "net/http"

// Kind enumerates the canonical proxy error kinds (spec.md §7).
type Kind int

const (
	// KindNone is the zero value: no proxy-level error occurred.
	KindNone Kind = iota
	// KindRoutingMiss: no listener rule matched the request path.
	KindRoutingMiss
	// KindNoTarget: a rule matched but no healthy target was available.
	KindNoTarget
	// KindConnectFailure: the final upstream attempt failed to connect.
	KindConnectFailure
	// KindTimeout: the final upstream attempt exceeded the overall timeout.
	KindTimeout
)

// Status returns the canonical HTTP status code the proxy emits for a
// given error kind (spec.md §6, "Canonical status codes").
func (k Kind) Status() int {
	switch k {
	case KindRoutingMiss:
		return http.StatusNotFound
	case KindNoTarget:
		return http.StatusServiceUnavailable
	case KindConnectFailure:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
