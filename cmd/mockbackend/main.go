// Command mockbackend is a minimal HTTP backend for exercising the load
// balancer manually or from integration tests. Adapted from the
// teacher's internal/upstream/server.go demo server, trimmed of the
// CRUD item API, caching endpoints and Prometheus handler (none of
// which have a home in this spec — see DESIGN.md) and kept to the
// handful of routes useful for observing routing, retries and health
// checks: a landing route, /healthz, and /echo which reports which
// backend instance answered.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", ":9001", "listen address")
	failHealthz := flag.Bool("fail-healthz", false, "always answer /healthz with 500, for exercising the health-check scheduler")
	flag.Parse()

	if err := start(*addr, *failHealthz); err != nil {
		log.Fatalf("mockbackend: %v", err)
	}
}

func start(listenAddr string, failHealthz bool) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if failHealthz {
			http.Error(w, "forced failure", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"host":      r.Host,
			"method":    r.Method,
			"path":      r.URL.Path,
			"query":     r.URL.RawQuery,
			"requestId": r.Header.Get("X-Request-Id"),
			"now":       time.Now().Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mock backend is running\n"))
	})

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil && errors.Is(err, syscall.EADDRINUSE) {
		fallback := addrWithPortZero(listenAddr)
		log.Printf("address %q in use, retrying on %q", listenAddr, fallback)
		listener, err = net.Listen("tcp", fallback)
	}
	if err != nil {
		return err
	}

	log.Printf("mockbackend listening on %s", listener.Addr().String())

	upstreamID := listener.Addr().String()
	return http.Serve(listener, withUpstreamHeader(upstreamID, mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func addrWithPortZero(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ":0"
	}
	return net.JoinHostPort(host, "0")
}

func withUpstreamHeader(upstreamID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", upstreamID)
		next.ServeHTTP(w, r)
	})
}
