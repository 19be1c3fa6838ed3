// Package router implements the longest-prefix match of a request path
// to a configured TargetGroup (spec.md §4.1, C6). The router is built
// once at startup from a read-only set of groups; no synchronisation is
// needed on the read path.
package router

import (
	"sort"
	"strings"

	"github.com/felipecampolina/go-lb/internal/targetgroup"
)

// Router matches request paths to target groups by longest literal
// prefix.
type Router struct {
	// ordered longest-prefix-first so Match can return on first hit.
	groups []*targetgroup.TargetGroup
}

// New builds a Router over groups, pre-sorting by descending prefix
// length so Match is a simple linear scan. Configured prefixes are
// assumed distinct (spec.md §4.1: "ties are impossible because prefixes
// are distinct").
func New(groups []*targetgroup.TargetGroup) *Router {
	sorted := make([]*targetgroup.TargetGroup, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})
	return &Router{groups: sorted}
}

// Match returns the longest-prefix-matching TargetGroup for path, or nil
// if no configured prefix matches.
func (r *Router) Match(path string) *targetgroup.TargetGroup {
	for _, g := range r.groups {
		if strings.HasPrefix(path, g.PathPrefix) {
			return g
		}
	}
	return nil
}
