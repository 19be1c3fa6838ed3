package pipeline

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/felipecampolina/go-lb/internal/balancer"
	"github.com/felipecampolina/go-lb/internal/router"
	"github.com/felipecampolina/go-lb/internal/target"
	"github.com/felipecampolina/go-lb/internal/targetgroup"
	"github.com/felipecampolina/go-lb/internal/upstreamclient"
)

func mustTarget(t *testing.T, raw string) *target.Target {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return target.New(u, 1)
}

func newTestServer(t *testing.T, group *targetgroup.TargetGroup, cfg Config) *Server {
	t.Helper()
	r := router.New([]*targetgroup.TargetGroup{group})
	algorithms := balancer.NewRegistry()
	client := upstreamclient.New(upstreamclient.Config{OverallTimeout: time.Second, ConnectTimeout: time.Second})
	cfg.ListenAddr = ":8080"
	return New(r, algorithms, client, cfg)
}

func TestServeHTTPReturns404OnRoutingMiss(t *testing.T) {
	group := targetgroup.New("g", "/api", "ROUND_ROBIN", nil, "", nil)
	s := newTestServer(t, group, Config{})

	req := httptest.NewRequest(http.MethodGet, "/unmatched", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a routing miss, got %d", w.Code)
	}
}

func TestServeHTTPReturns503WhenNoHealthyTarget(t *testing.T) {
	tg := mustTarget(t, "http://127.0.0.1:1")
	tg.SetHealthy(false)
	group := targetgroup.New("g", "/api", "ROUND_ROBIN", []*target.Target{tg}, "", nil)
	s := newTestServer(t, group, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no healthy target is available, got %d", w.Code)
	}
}

func TestServeHTTPRelaysUpstreamResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Errorf("expected rewritten path /users, got %q", r.URL.Path)
		}
		w.Header().Set("X-From-Upstream", "1")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("upstream-body"))
	}))
	defer upstream.Close()

	tg := mustTarget(t, upstream.URL)
	group := targetgroup.New("g", "/api", "ROUND_ROBIN", []*target.Target{tg}, "/api", nil)
	s := newTestServer(t, group, Config{HeaderConventionEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected relayed status 418, got %d", w.Code)
	}
	if w.Body.String() != "upstream-body" {
		t.Fatalf("expected relayed body, got %q", w.Body.String())
	}
	if w.Header().Get("X-From-Upstream") != "1" {
		t.Fatalf("expected upstream headers to be relayed")
	}
}

func TestServeHTTPRetriesOn5xxAndSurfacesFinalResponse(t *testing.T) {
	var calls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	tg := mustTarget(t, upstream.URL)
	group := targetgroup.New("g", "/api", "ROUND_ROBIN", []*target.Target{tg}, "", nil)
	s := newTestServer(t, group, Config{RetryEnabled: true, RetryCount: 2, RetryBackoff: time.Millisecond})

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected the retried request to eventually succeed with 200, got %d", w.Code)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 upstream calls, got %d", calls)
	}
}

func TestServeHTTPDoesNotOverrideHostWhenConventionsDisabled(t *testing.T) {
	var gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	tg := mustTarget(t, upstream.URL)
	group := targetgroup.New("g", "/api", "ROUND_ROBIN", []*target.Target{tg}, "", nil)
	s := newTestServer(t, group, Config{HeaderConventionEnabled: false})

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Host = "original.example.com"
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	upstreamHost := upstream.URL[len("http://"):]
	if gotHost != upstreamHost {
		t.Fatalf("expected upstream's own host %q when conventions disabled, got %q", upstreamHost, gotHost)
	}
}
