// Package targetgroup bundles a set of targets with the routing metadata
// a listener rule needs: path prefix, algorithm name, optional path
// rewrite and optional health check. TargetGroups are immutable after
// construction (spec.md §3).
package targetgroup

import (
	"time"

	"github.com/felipecampolina/go-lb/internal/target"
)

// HealthCheck configures active probing for a target group.
type HealthCheck struct {
	Enabled          bool
	Path             string
	Interval         time.Duration
	SuccessThreshold int
	FailureThreshold int
}

// TargetGroup is an immutable bundle of targets sharing a path prefix,
// an algorithm and an optional health check.
type TargetGroup struct {
	Name          string
	PathPrefix    string
	AlgorithmName string
	Targets       []*target.Target
	PathRewrite   string
	HealthCheck   *HealthCheck
}

// New constructs a TargetGroup. targets must be non-empty; the slice is
// defensively copied so later external mutation of the caller's slice
// cannot affect this group's (otherwise immutable) target order.
func New(name, pathPrefix, algorithmName string, targets []*target.Target, pathRewrite string, hc *HealthCheck) *TargetGroup {
	copied := make([]*target.Target, len(targets))
	copy(copied, targets)
	return &TargetGroup{
		Name:          name,
		PathPrefix:    pathPrefix,
		AlgorithmName: algorithmName,
		Targets:       copied,
		PathRewrite:   pathRewrite,
		HealthCheck:   hc,
	}
}

// HealthyTargets returns the targets whose Healthy flag is currently
// true, preserving the underlying order. The returned slice is always a
// subset of Targets.
func (g *TargetGroup) HealthyTargets() []*target.Target {
	out := make([]*target.Target, 0, len(g.Targets))
	for _, t := range g.Targets {
		if t.Healthy() {
			out = append(out, t)
		}
	}
	return out
}
