// Package registry builds the TargetGroups described by lbConfig,
// resolving each configured host to its IPv4 addresses and creating one
// Target per address (spec.md §2, C3). The registry is populated once at
// startup and is read-only thereafter; no synchronisation is required on
// the read path.
package registry

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/felipecampolina/go-lb/internal/target"
	"github.com/felipecampolina/go-lb/internal/targetgroup"
)

// resolveTimeout bounds each startup DNS lookup so a single unreachable
// resolver can't hang Build indefinitely.
const resolveTimeout = 5 * time.Second

// TargetSpec is the per-target configuration consumed from lbConfig.
type TargetSpec struct {
	URL    string
	Weight int
}

// GroupSpec is the per-target-group configuration consumed from
// lbConfig.
type GroupSpec struct {
	Name          string
	PathPrefix    string
	AlgorithmName string
	PathRewrite   string
	HealthCheck   *targetgroup.HealthCheck
	Targets       []TargetSpec
}

// Registry owns the constructed TargetGroups and, transitively, the
// Targets within them.
type Registry struct {
	Groups []*targetgroup.TargetGroup
}

// Resolver resolves a hostname to its IPv4 addresses. Production code
// uses net.DefaultResolver; tests substitute a fake to avoid real DNS
// lookups.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type netResolver struct{}

func (netResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

// Build constructs a Registry from the given group specs, resolving
// every target host to its IPv4 addresses via resolver. If resolver is
// nil, net.DefaultResolver is used. Build fails fast (returns an error,
// never a partially built Registry) on any malformed target URL, empty
// target group, or DNS resolution failure, since malformed config is
// fatal at startup per spec.md §7.
func Build(specs []GroupSpec, resolver Resolver) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("registry: at least one target group is required")
	}
	if resolver == nil {
		resolver = netResolver{}
	}

	groups := make([]*targetgroup.TargetGroup, 0, len(specs))
	for _, spec := range specs {
		if len(spec.Targets) == 0 {
			return nil, fmt.Errorf("registry: target group %q has no targets", spec.Name)
		}
		var targets []*target.Target
		for _, ts := range spec.Targets {
			expanded, err := expandTarget(ts, resolver)
			if err != nil {
				return nil, fmt.Errorf("registry: group %q: %w", spec.Name, err)
			}
			targets = append(targets, expanded...)
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("registry: target group %q resolved to zero addresses", spec.Name)
		}
		groups = append(groups, targetgroup.New(spec.Name, spec.PathPrefix, spec.AlgorithmName, targets, spec.PathRewrite, spec.HealthCheck))
	}
	return &Registry{Groups: groups}, nil
}

// expandTarget parses a target URL and resolves its host to one Target
// per IPv4 address, preserving scheme, port and path.
func expandTarget(ts TargetSpec, resolver Resolver) ([]*target.Target, error) {
	parsed, err := url.Parse(ts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid target url %q: %w", ts.URL, err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("target url %q must use the http scheme", ts.URL)
	}
	host := parsed.Hostname()
	port := parsed.Port()
	if host == "" {
		return nil, fmt.Errorf("target url %q has no host", ts.URL)
	}

	// A literal IPv4 address needs no DNS expansion.
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return []*target.Target{target.New(withHost(parsed, hostPort(v4.String(), port)), ts.Weight)}, nil
		}
		return nil, fmt.Errorf("target url %q resolves to a non-IPv4 address", ts.URL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", host, err)
	}
	var targets []*target.Target
	for _, addr := range addrs {
		v4 := addr.IP.To4()
		if v4 == nil {
			continue
		}
		targets = append(targets, target.New(withHost(parsed, hostPort(v4.String(), port)), ts.Weight))
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("host %q has no IPv4 addresses", host)
	}
	return targets, nil
}

func hostPort(host, port string) string {
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}

func withHost(base *url.URL, hostport string) *url.URL {
	cp := *base
	cp.Host = hostport
	return &cp
}
