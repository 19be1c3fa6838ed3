package target

import (
	"net/url"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func TestNewDefaultsWeightAndHealthy(t *testing.T) {
	tg := New(mustURL(t, "http://10.0.0.1:9001"), 0)
	if tg.Weight != 1 {
		t.Fatalf("expected default weight 1, got %d", tg.Weight)
	}
	if !tg.Healthy() {
		t.Fatalf("expected new target to start healthy")
	}
}

func TestIncrementSuccessesResetsFailures(t *testing.T) {
	tg := New(mustURL(t, "http://10.0.0.1:9001"), 1)
	tg.IncrementFailures()
	tg.IncrementFailures()
	if tg.ConsecutiveFailures() != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", tg.ConsecutiveFailures())
	}
	tg.IncrementSuccesses()
	if tg.ConsecutiveFailures() != 0 {
		t.Fatalf("expected failures reset to 0 after a success, got %d", tg.ConsecutiveFailures())
	}
	if tg.ConsecutiveSuccesses() != 1 {
		t.Fatalf("expected 1 consecutive success, got %d", tg.ConsecutiveSuccesses())
	}
}

func TestActiveConnectionsIncDec(t *testing.T) {
	tg := New(mustURL(t, "http://10.0.0.1:9001"), 1)
	tg.IncActiveConnections()
	tg.IncActiveConnections()
	if got := tg.ActiveConnections(); got != 2 {
		t.Fatalf("expected 2 active connections, got %d", got)
	}
	tg.DecActiveConnections()
	if got := tg.ActiveConnections(); got != 1 {
		t.Fatalf("expected 1 active connection, got %d", got)
	}
}

func TestDueForProbeAndMarkProbeIssued(t *testing.T) {
	tg := New(mustURL(t, "http://10.0.0.1:9001"), 1)
	now := time.Now()
	if !tg.DueForProbe(now, 5*time.Second) {
		t.Fatalf("a target never probed should be immediately due")
	}
	tg.MarkProbeIssued(now)
	if tg.DueForProbe(now.Add(1*time.Second), 5*time.Second) {
		t.Fatalf("target should not be due before its interval elapses")
	}
	if !tg.DueForProbe(now.Add(6*time.Second), 5*time.Second) {
		t.Fatalf("target should be due once its interval elapses")
	}
}

func TestBaseURLReturnsCopy(t *testing.T) {
	u := mustURL(t, "http://10.0.0.1:9001/base")
	tg := New(u, 1)
	cp := tg.BaseURL()
	cp.Host = "mutated:1"
	if tg.URL.Host == "mutated:1" {
		t.Fatalf("BaseURL() must return a copy, not share the underlying URL")
	}
}
