// Package balancer implements the four selection algorithms from
// spec.md §4.4 — ROUND_ROBIN, WEIGHTED, LRT and STICKY — plus the
// name-keyed registry (C5) that resolves an algorithm name to an
// instance. Shaped after the teacher's Balancer interface in
// internal/proxy/balancer.go, generalised from a two-strategy switch to
// four named strategies operating on target groups instead of a single
// proxy-wide target list.
package balancer

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/felipecampolina/go-lb/internal/target"
	"github.com/felipecampolina/go-lb/internal/targetgroup"
)

// Algorithm names, matching lbConfig's `algorithm` enumeration.
const (
	RoundRobin = "ROUND_ROBIN"
	Weighted   = "WEIGHTED"
	LRT        = "LRT"
	Sticky     = "STICKY"
)

// Algorithm selects one target from a group's currently healthy subset.
// Implementations must consult only HealthyTargets(); an empty healthy
// set yields a nil Target, which the pipeline maps to 503.
type Algorithm interface {
	Select(group *targetgroup.TargetGroup, req *http.Request) *target.Target
	Name() string
}

// Registry resolves an algorithm name to a process-wide singleton
// instance, falling back to ROUND_ROBIN for an unrecognised or empty
// name (spec.md §6 default).
type Registry struct {
	roundRobin *roundRobinAlgorithm
	weighted   *weightedAlgorithm
	lrt        *lrtAlgorithm
	sticky     *stickyAlgorithm
}

// NewRegistry builds the four algorithm singletons. There is exactly one
// instance of each per process; STICKY delegates to the same
// roundRobin instance used directly, so a round-robin counter is shared
// by design (spec.md §9, "shared round-robin counter across groups").
func NewRegistry() *Registry {
	rr := &roundRobinAlgorithm{}
	return &Registry{
		roundRobin: rr,
		weighted:   &weightedAlgorithm{},
		lrt:        &lrtAlgorithm{},
		sticky:     &stickyAlgorithm{fallback: rr},
	}
}

// Get returns the algorithm registered under name, defaulting to
// ROUND_ROBIN.
func (r *Registry) Get(name string) Algorithm {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case Weighted:
		return r.weighted
	case LRT:
		return r.lrt
	case Sticky:
		return r.sticky
	default:
		return r.roundRobin
	}
}

// ----- ROUND_ROBIN -----

// roundRobinAlgorithm keeps a single monotonic counter shared across
// every group it is asked to select from, per spec.md §9's permitted
// design: "the source shares a single counter across groups".
type roundRobinAlgorithm struct {
	counter atomic.Uint64
}

func (a *roundRobinAlgorithm) Name() string { return RoundRobin }

func (a *roundRobinAlgorithm) Select(group *targetgroup.TargetGroup, _ *http.Request) *target.Target {
	healthy := group.HealthyTargets()
	if len(healthy) == 0 {
		return nil
	}
	n := uint64(len(healthy))
	idx := a.counter.Add(1) - 1
	return healthy[idx%n]
}

// ----- WEIGHTED -----

// weightedAlgorithm draws uniformly from [0, W) over the sum of healthy
// weights and walks the cumulative distribution. It carries no state
// between calls; math/rand/v2's top-level functions are already safe
// for concurrent use without a shared lock bottleneck (each goroutine
// draws from a per-P source), which is this codebase's thread-local RNG.
type weightedAlgorithm struct{}

func (a *weightedAlgorithm) Name() string { return Weighted }

func (a *weightedAlgorithm) Select(group *targetgroup.TargetGroup, _ *http.Request) *target.Target {
	healthy := group.HealthyTargets()
	if len(healthy) == 0 {
		return nil
	}
	var total int
	for _, t := range healthy {
		total += t.Weight
	}
	if total <= 0 {
		return healthy[rand.IntN(len(healthy))]
	}
	r := rand.IntN(total)
	cumulative := 0
	for _, t := range healthy {
		cumulative += t.Weight
		if r < cumulative {
			return t
		}
	}
	// Unreachable unless weights change concurrently with the walk; fall
	// back to the last candidate rather than returning nil.
	return healthy[len(healthy)-1]
}

// ----- LRT (least-connections) -----

// lrtAlgorithm returns the healthy target with the smallest current
// ActiveConnections, ties broken by list order.
type lrtAlgorithm struct{}

func (a *lrtAlgorithm) Name() string { return LRT }

func (a *lrtAlgorithm) Select(group *targetgroup.TargetGroup, _ *http.Request) *target.Target {
	healthy := group.HealthyTargets()
	if len(healthy) == 0 {
		return nil
	}
	best := healthy[0]
	bestLoad := best.ActiveConnections()
	for _, t := range healthy[1:] {
		if load := t.ActiveConnections(); load < bestLoad {
			best, bestLoad = t, load
		}
	}
	return best
}

// ----- STICKY -----

// stickyAlgorithm extracts a session id from cookies or forwarding
// headers and pins it to a target for the life of the session, falling
// back to round-robin on a miss or on an unset session id. The session
// map is process-wide and unbounded, per spec.md §9's open question.
type stickyAlgorithm struct {
	fallback Algorithm
	sessions sync.Map // session id string -> *target.Target
}

func (a *stickyAlgorithm) Name() string { return Sticky }

func (a *stickyAlgorithm) Select(group *targetgroup.TargetGroup, req *http.Request) *target.Target {
	sessionID := extractSessionID(req)
	if sessionID == "" {
		return a.fallback.Select(group, req)
	}

	if v, ok := a.sessions.Load(sessionID); ok {
		mapped := v.(*target.Target)
		if mapped.Healthy() && inGroup(mapped, group) {
			return mapped
		}
		// Stale entry: target became unhealthy or left the group.
		a.sessions.Delete(sessionID)
	}

	selected := a.fallback.Select(group, req)
	if selected != nil {
		a.sessions.Store(sessionID, selected)
	}
	return selected
}

func inGroup(t *target.Target, group *targetgroup.TargetGroup) bool {
	for _, healthy := range group.HealthyTargets() {
		if healthy == t {
			return true
		}
	}
	return false
}

// extractSessionID implements the precedence order from spec.md §4.4:
// JSESSIONID cookie, then LB_SESSION cookie, then X-Forwarded-For, then
// X-Real-IP.
func extractSessionID(req *http.Request) string {
	if req == nil {
		return ""
	}
	if c, err := req.Cookie("JSESSIONID"); err == nil && c.Value != "" {
		return c.Value
	}
	if c, err := req.Cookie("LB_SESSION"); err == nil && c.Value != "" {
		return c.Value
	}
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if realIP := req.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
