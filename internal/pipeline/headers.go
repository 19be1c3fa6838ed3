// Header-conventions stage (spec.md §4.3), adapted from the teacher's
// internal/proxy.directRequest: client-IP derivation, X-Forwarded-*
// stamping and Host preservation. The teacher took the first entry of an
// inbound X-Forwarded-For as authoritative; this spec intentionally
// preserves a different, explicitly documented discrepancy (taking the
// *last* entry — spec.md §9) rather than "fixing" it to the common
// convention.
package pipeline

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/felipecampolina/go-lb/internal/requestid"
)

// applyHeaderConventions mutates outHeader in place per spec.md §4.3. It
// is a no-op when enabled is false. listenerPort and isTLS describe the
// inbound connection; remoteAddr is the client's TCP peer address.
func applyHeaderConventions(enabled bool, outHeader http.Header, originalHost, remoteAddr, listenerPort string, isTLS bool) (requestID string) {
	if !enabled {
		return ""
	}

	clientIP := deriveClientIP(outHeader, remoteAddr)

	if existing := outHeader.Get("X-Forwarded-For"); existing != "" {
		outHeader.Set("X-Forwarded-For", existing+", "+clientIP)
	} else {
		outHeader.Set("X-Forwarded-For", clientIP)
	}
	if originalHost != "" {
		outHeader.Set("X-Forwarded-Host", originalHost)
	}
	outHeader.Set("X-Forwarded-Port", listenerPort)
	if isTLS {
		outHeader.Set("X-Forwarded-Proto", "https")
	} else {
		outHeader.Set("X-Forwarded-Proto", "http")
	}
	outHeader.Set("X-Real-IP", clientIP)

	requestID = requestid.New()
	outHeader.Set("X-Request-Id", requestID)
	return requestID
}

// deriveClientIP implements spec.md §4.3's precedence: last entry of an
// inbound X-Forwarded-For, else X-Real-IP, else the TCP peer address.
func deriveClientIP(header http.Header, remoteAddr string) string {
	if xff := strings.TrimSpace(header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		if last != "" {
			return last
		}
	}
	if realIP := strings.TrimSpace(header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}

// listenerPortOf extracts the numeric port a server is listening on from
// its configured address, for the X-Forwarded-Port header.
func listenerPortOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ""
	}
	return port
}

// hopHeaders lists headers stripped before forwarding upstream, per
// RFC 7230 (kept from the teacher's internal/proxy/cache.go list).
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"TE",
	"Trailer",
}

func stripHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
