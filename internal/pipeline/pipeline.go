// Package pipeline implements the request pipeline from spec.md §4.6
// (C7): context init, header conventions, selection, dispatch-with-retry
// and response relay. Shaped after the teacher's
// internal/proxy.ReverseProxy.ServeHTTP / serveUpstream split, generalised
// from a single hard-coded target list to the router/algorithm-registry
// composition spec.md requires, and with the cache/queue layers the
// teacher wraps this with dropped (see DESIGN.md: both are explicit
// spec.md Non-goals).
package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/felipecampolina/go-lb/internal/applog"
	"github.com/felipecampolina/go-lb/internal/balancer"
	"github.com/felipecampolina/go-lb/internal/proxyerr"
	"github.com/felipecampolina/go-lb/internal/router"
	"github.com/felipecampolina/go-lb/internal/target"
	"github.com/felipecampolina/go-lb/internal/upstreamclient"
)

// Config controls the retry policy and header-conventions toggle. These
// are process-wide lbConfig settings (spec.md §6), not per target group.
type Config struct {
	HeaderConventionEnabled bool
	RetryEnabled            bool
	RetryBackoff            time.Duration
	RetryCount              int
	ListenAddr              string
}

// Server is the HTTP handler implementing the full request pipeline. It
// is safe for concurrent use by multiple goroutines.
type Server struct {
	router     *router.Router
	algorithms *balancer.Registry
	client     *upstreamclient.Client
	cfg        Config
	listenPort string
}

// New builds a Server over the given router, algorithm registry and
// upstream client.
func New(r *router.Router, algorithms *balancer.Registry, client *upstreamclient.Client, cfg Config) *Server {
	return &Server{
		router:     r,
		algorithms: algorithms,
		client:     client,
		cfg:        cfg,
		listenPort: listenerPortOf(cfg.ListenAddr),
	}
}

// ServeHTTP implements the five-step pipeline from spec.md §4.6.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Step 1: context init — route the request.
	group := s.router.Match(r.URL.Path)
	if group == nil {
		applog.Error("routing miss path=%s", r.URL.Path)
		writeCanonicalError(w, proxyerr.KindRoutingMiss)
		return
	}

	forwardedPath := rewritePath(r.URL.Path, group.PathRewrite)
	if r.URL.RawQuery != "" {
		forwardedPath += "?" + r.URL.RawQuery
	}

	outHeader := r.Header.Clone()
	stripHopHeaders(outHeader)

	// Step 2: header conventions. When disabled this is a no-op
	// pass-through: the upstream request's Host header defaults to the
	// selected target's own host, exactly as a bare reverse proxy would.
	requestID := applyHeaderConventions(s.cfg.HeaderConventionEnabled, outHeader, r.Host, r.RemoteAddr, s.listenPort, r.TLS != nil)
	hostOverride := ""
	if s.cfg.HeaderConventionEnabled {
		hostOverride = r.Host
	}

	// Step 3: selection.
	algorithm := s.algorithms.Get(group.AlgorithmName)
	selected := algorithm.Select(group, r)
	if selected == nil {
		applog.Error("no healthy target req_id=%s group=%s", requestID, group.Name)
		writeCanonicalError(w, proxyerr.KindNoTarget)
		return
	}
	applog.Info("%s", applog.RequestLine(requestID, r.Method, forwardedPath, selected.URL.Host, 1))

	// Request bodies can only be read once; buffer so retries of the
	// same logical request can resend it, per spec.md §4.6's retry
	// semantics (the upstream client itself still streams each attempt's
	// reader without re-buffering on its side).
	var bodyBytes []byte
	if r.Body != nil && r.Body != http.NoBody {
		bodyBytes, _ = io.ReadAll(r.Body)
		r.Body.Close()
	}

	// Step 4: dispatch with retry.
	resp, errKind, attempts := s.executeWithRetry(r.Context(), selected, r.Method, forwardedPath, outHeader, bodyBytes, hostOverride)

	// Step 5: response relay.
	if resp != nil {
		relayResponse(w, resp)
		applog.Info("%s", applog.ResponseLine(requestID, resp.StatusCode, time.Since(start), attempts))
		return
	}

	applog.Error("upstream failed req_id=%s group=%s attempts=%d kind=%d", requestID, group.Name, attempts, errKind)
	writeCanonicalError(w, errKind)
}

// executeWithRetry implements the state machine from spec.md §4.6:
// INIT → DISPATCHED → (RESPONDED | CONNECT_FAILED | TIMED_OUT) →
// CLASSIFIED → (SURFACE | BACKOFF → INIT'). Retries reuse the same
// selected target (spec.md §9's open question, resolved in
// SPEC_FULL.md §11).
func (s *Server) executeWithRetry(ctx context.Context, t *target.Target, method, forwardedPath string, header http.Header, body []byte, hostHeader string) (*upstreamclient.Response, proxyerr.Kind, int) {
	maxAttempts := 1
	if s.cfg.RetryEnabled {
		maxAttempts += s.cfg.RetryCount
	}

	var lastKind proxyerr.Kind
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1)))
		}

		t.IncActiveConnections()
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		resp, err := s.client.Send(ctx, t.URL, method, forwardedPath, header.Clone(), bodyReader, hostHeader)
		t.DecActiveConnections()

		if err == nil {
			if resp.StatusCode < 500 {
				return resp, proxyerr.KindNone, attempt + 1
			}
			// 5xx: retry-candidate but always the best response we have.
			if attempt == maxAttempts-1 {
				return resp, proxyerr.KindNone, attempt + 1
			}
			continue
		}

		upstreamErr, _ := err.(*upstreamclient.Error)
		if upstreamErr != nil && upstreamErr.Kind == upstreamclient.ErrorKindTimeout {
			lastKind = proxyerr.KindTimeout
		} else {
			lastKind = proxyerr.KindConnectFailure
		}
		if attempt == maxAttempts-1 {
			return nil, lastKind, attempt + 1
		}
	}
	return nil, lastKind, maxAttempts
}

func relayResponse(w http.ResponseWriter, resp *upstreamclient.Response) {
	dst := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	stripHopHeaders(dst)
	dst.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeCanonicalError(w http.ResponseWriter, kind proxyerr.Kind) {
	w.WriteHeader(kind.Status())
}
