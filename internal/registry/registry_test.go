package registry

import (
	"context"
	"fmt"
	"net"
	"testing"
)

type fakeResolver struct {
	addrs map[string][]net.IPAddr
	err   error
}

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if f.err != nil {
		return nil, f.err
	}
	addrs, ok := f.addrs[host]
	if !ok {
		return nil, fmt.Errorf("no such host %q", host)
	}
	return addrs, nil
}

func TestBuildExpandsLiteralIPv4Directly(t *testing.T) {
	specs := []GroupSpec{
		{
			Name:          "api",
			PathPrefix:    "/api",
			AlgorithmName: "ROUND_ROBIN",
			Targets:       []TargetSpec{{URL: "http://10.0.0.1:9001", Weight: 2}},
		},
	}
	reg, err := Build(specs, fakeResolver{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(reg.Groups))
	}
	targets := reg.Groups[0].Targets
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].URL.Host != "10.0.0.1:9001" {
		t.Fatalf("unexpected host %q", targets[0].URL.Host)
	}
	if targets[0].Weight != 2 {
		t.Fatalf("expected weight 2, got %d", targets[0].Weight)
	}
}

func TestBuildExpandsDNSNameToOneTargetPerIPv4(t *testing.T) {
	resolver := fakeResolver{addrs: map[string][]net.IPAddr{
		"backend.internal": {
			{IP: net.ParseIP("10.0.0.1")},
			{IP: net.ParseIP("10.0.0.2")},
			{IP: net.ParseIP("::1")}, // IPv6, must be filtered out
		},
	}}
	specs := []GroupSpec{
		{
			Name:          "api",
			PathPrefix:    "/api",
			AlgorithmName: "ROUND_ROBIN",
			Targets:       []TargetSpec{{URL: "http://backend.internal:9001"}},
		},
	}
	reg, err := Build(specs, resolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	targets := reg.Groups[0].Targets
	if len(targets) != 2 {
		t.Fatalf("expected 2 expanded IPv4 targets, got %d", len(targets))
	}
}

func TestBuildRejectsNonHTTPScheme(t *testing.T) {
	specs := []GroupSpec{
		{Name: "api", PathPrefix: "/api", Targets: []TargetSpec{{URL: "https://10.0.0.1:9001"}}},
	}
	if _, err := Build(specs, fakeResolver{}); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestBuildFailsFastOnResolutionError(t *testing.T) {
	specs := []GroupSpec{
		{
			Name:       "api",
			PathPrefix: "/api",
			Targets:    []TargetSpec{{URL: "http://unknown.invalid:9001"}},
		},
	}
	if _, err := Build(specs, fakeResolver{}); err == nil {
		t.Fatalf("expected error for unresolvable host")
	}
}

func TestBuildRejectsEmptyTargetGroup(t *testing.T) {
	specs := []GroupSpec{{Name: "api", PathPrefix: "/api", Targets: nil}}
	if _, err := Build(specs, fakeResolver{}); err == nil {
		t.Fatalf("expected error for empty target group")
	}
}

func TestBuildRejectsNoGroups(t *testing.T) {
	if _, err := Build(nil, fakeResolver{}); err == nil {
		t.Fatalf("expected error for zero target groups")
	}
}

// TestNetResolverLookupIPAddrDoesNotPanic exercises the real DNS path
// (netResolver backed by net.DefaultResolver) with a live context, since
// fakeResolver above never touches it. A nil context here would panic
// inside net.DefaultResolver.LookupIPAddr.
func TestNetResolverLookupIPAddrDoesNotPanic(t *testing.T) {
	_, err := netResolver{}.LookupIPAddr(context.Background(), "localhost")
	if err != nil {
		t.Fatalf("unexpected error resolving localhost: %v", err)
	}
}

func TestBuildResolvesDNSHostnameThroughNetResolver(t *testing.T) {
	specs := []GroupSpec{
		{
			Name:       "api",
			PathPrefix: "/api",
			Targets:    []TargetSpec{{URL: "http://localhost:9001"}},
		},
	}
	reg, err := Build(specs, nil)
	if err != nil {
		t.Fatalf("unexpected error resolving localhost through the default resolver: %v", err)
	}
	if len(reg.Groups[0].Targets) == 0 {
		t.Fatalf("expected at least one resolved target")
	}
}
