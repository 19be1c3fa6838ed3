// Package lbconfig loads the lbConfig tree from spec.md §6: a YAML file
// parsed with gopkg.in/yaml.v3 (the library the teacher's internal/log
// package already depends on), overridden by the named environment
// variables, with .env loading via github.com/joho/godotenv exactly as
// the teacher's cmd/server/main.go does. Malformed configuration is
// fatal at startup (spec.md §7): Load returns an error rather than a
// partially valid Config.
package lbconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felipecampolina/go-lb/internal/registry"
	"github.com/felipecampolina/go-lb/internal/targetgroup"
)

// Defaults from spec.md §6.
const (
	DefaultAlgorithm               = "ROUND_ROBIN"
	DefaultListenAddr              = ":8080"
	DefaultConnectionTimeoutMillis = 2000
	DefaultHeaderConventionEnabled = true
	DefaultRetryEnabled            = false
	DefaultRetryBackoffMillis      = 100
	DefaultRetryCount              = 3
	DefaultHealthCheckPath         = "/"
	DefaultHealthCheckIntervalMs   = 5000
	DefaultSuccessThreshold        = 1
	DefaultFailureThreshold        = 3
)

// Config is the fully resolved, validated lbConfig tree.
type Config struct {
	ListenAddr              string
	Algorithm               string
	ConnectionTimeout       time.Duration
	HeaderConventionEnabled bool
	RetryEnabled            bool
	RetryBackoff            time.Duration
	RetryCount              int
	TargetGroups            []registry.GroupSpec
}

// yamlRoot mirrors the on-disk shape documented in spec.md §6.
type yamlRoot struct {
	LBConfig struct {
		Algorithm               string                  `yaml:"algorithm"`
		ConnectionTimeoutMillis int                     `yaml:"connectionTimeoutMillis"`
		HeaderConventionEnabled *bool                   `yaml:"headerConventionEnabled"`
		RetryEnabled            bool                    `yaml:"retryEnabled"`
		RetryBackoffMillis      int                     `yaml:"retryBackoffMillis"`
		RetryCount              int                     `yaml:"retryCount"`
		TargetGroups            map[string]yamlGroupSpec `yaml:"targetGroups"`
	} `yaml:"lbConfig"`
}

type yamlGroupSpec struct {
	Path        string             `yaml:"path"`
	Algorithm   string             `yaml:"algorithm"`
	PathRewrite string             `yaml:"pathRewrite"`
	HealthCheck *yamlHealthCheck   `yaml:"healthCheck"`
	Targets     []yamlTargetSpec   `yaml:"targets"`
}

type yamlHealthCheck struct {
	Enabled          bool `yaml:"enabled"`
	Path             string `yaml:"path"`
	Interval         int  `yaml:"interval"`
	SuccessThreshold int  `yaml:"successThreshold"`
	FailureThreshold int  `yaml:"failureThreshold"`
}

type yamlTargetSpec struct {
	URL    string `yaml:"url"`
	Weight int    `yaml:"weight"`
}

// Load reads .env (if present), parses the YAML file at path, applies
// environment-variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Matches the teacher's main.go: a missing .env file is not fatal.
		fmt.Fprintf(os.Stderr, "warning: could not load .env file (%v), using system environment\n", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lbconfig: reading %q: %w", path, err)
	}
	var root yamlRoot
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("lbconfig: parsing %q: %w", path, err)
	}

	cfg := &Config{
		ListenAddr:              DefaultListenAddr,
		Algorithm:               orDefault(root.LBConfig.Algorithm, DefaultAlgorithm),
		ConnectionTimeout:       millisOrDefault(root.LBConfig.ConnectionTimeoutMillis, DefaultConnectionTimeoutMillis),
		HeaderConventionEnabled: boolPtrOrDefault(root.LBConfig.HeaderConventionEnabled, DefaultHeaderConventionEnabled),
		RetryEnabled:            root.LBConfig.RetryEnabled,
		RetryBackoff:            millisOrDefault(root.LBConfig.RetryBackoffMillis, DefaultRetryBackoffMillis),
		RetryCount:              intOrDefault(root.LBConfig.RetryCount, DefaultRetryCount),
	}

	if len(root.LBConfig.TargetGroups) == 0 {
		return nil, fmt.Errorf("lbconfig: targetGroups must not be empty")
	}
	for name, g := range root.LBConfig.TargetGroups {
		spec, err := toGroupSpec(name, g, cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		cfg.TargetGroups = append(cfg.TargetGroups, spec)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toGroupSpec(name string, g yamlGroupSpec, defaultAlgorithm string) (registry.GroupSpec, error) {
	if !strings.HasPrefix(g.Path, "/") {
		return registry.GroupSpec{}, fmt.Errorf("lbconfig: target group %q: path must start with '/'", name)
	}
	if len(g.Targets) == 0 {
		return registry.GroupSpec{}, fmt.Errorf("lbconfig: target group %q: targets must not be empty", name)
	}

	algorithm := orDefault(g.Algorithm, defaultAlgorithm)

	var hc *targetgroup.HealthCheck
	if g.HealthCheck != nil {
		hc = &targetgroup.HealthCheck{
			Enabled:          g.HealthCheck.Enabled,
			Path:             orDefault(g.HealthCheck.Path, DefaultHealthCheckPath),
			Interval:         millisOrDefault(g.HealthCheck.Interval, DefaultHealthCheckIntervalMs),
			SuccessThreshold: intOrDefault(g.HealthCheck.SuccessThreshold, DefaultSuccessThreshold),
			FailureThreshold: intOrDefault(g.HealthCheck.FailureThreshold, DefaultFailureThreshold),
		}
	}

	targets := make([]registry.TargetSpec, 0, len(g.Targets))
	for _, t := range g.Targets {
		if t.URL == "" {
			return registry.GroupSpec{}, fmt.Errorf("lbconfig: target group %q: target url is required", name)
		}
		weight := t.Weight
		if weight <= 0 {
			weight = 1
		}
		targets = append(targets, registry.TargetSpec{URL: t.URL, Weight: weight})
	}

	return registry.GroupSpec{
		Name:          name,
		PathPrefix:    g.Path,
		AlgorithmName: algorithm,
		PathRewrite:   g.PathRewrite,
		HealthCheck:   hc,
		Targets:       targets,
	}, nil
}

// applyEnvOverrides applies the recognised environment variables from
// spec.md §6, each overriding only the field it names.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LISTENER_PORT")); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("CONNECTION_TIMEOUT")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ConnectionTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOAD_BALANCING_ALGORITHM")); v != "" {
		cfg.Algorithm = v
	}
	if v := strings.TrimSpace(os.Getenv("HEADER_CONVENTION_ENABLE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HeaderConventionEnabled = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_ENABLE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RetryEnabled = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_BACKOFF")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.RetryBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryCount = n
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.TargetGroups) == 0 {
		return fmt.Errorf("lbconfig: no target groups configured")
	}
	for _, g := range cfg.TargetGroups {
		if len(g.Targets) == 0 {
			return fmt.Errorf("lbconfig: target group %q has no targets", g.Name)
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func millisOrDefault(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

func boolPtrOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
