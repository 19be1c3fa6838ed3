// Command loadbalancer is the process entrypoint (spec.md §9 /
// SPEC_FULL.md §9.4): load configuration, build the registry, router,
// algorithm registry and upstream client, start the health-check
// scheduler, and serve HTTP with graceful shutdown on SIGINT/SIGTERM.
// Shaped after the teacher's cmd/server/main.go, with TLS wiring
// dropped (TLS is an explicit spec.md Non-goal, see DESIGN.md).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felipecampolina/go-lb/internal/applog"
	"github.com/felipecampolina/go-lb/internal/balancer"
	"github.com/felipecampolina/go-lb/internal/healthcheck"
	"github.com/felipecampolina/go-lb/internal/lbconfig"
	"github.com/felipecampolina/go-lb/internal/pipeline"
	"github.com/felipecampolina/go-lb/internal/registry"
	"github.com/felipecampolina/go-lb/internal/router"
	"github.com/felipecampolina/go-lb/internal/upstreamclient"
)

func main() {
	configPath := flag.String("config", "lbconfig.yaml", "path to the lbConfig YAML file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	applog.SetDebug(*debug)

	cfg, err := lbconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("loadbalancer: fatal config error: %v", err)
	}

	reg, err := registry.Build(cfg.TargetGroups, nil)
	if err != nil {
		log.Fatalf("loadbalancer: fatal registry error: %v", err)
	}

	connectTimeout := cfg.ConnectionTimeout
	if connectTimeout > 2*time.Second {
		connectTimeout = 2 * time.Second
	}
	client := upstreamclient.New(upstreamclient.Config{
		OverallTimeout: cfg.ConnectionTimeout,
		ConnectTimeout: connectTimeout,
	})

	rt := router.New(reg.Groups)
	algorithms := balancer.NewRegistry()

	server := pipeline.New(rt, algorithms, client, pipeline.Config{
		HeaderConventionEnabled: cfg.HeaderConventionEnabled,
		RetryEnabled:            cfg.RetryEnabled,
		RetryBackoff:            cfg.RetryBackoff,
		RetryCount:              cfg.RetryCount,
		ListenAddr:              cfg.ListenAddr,
	})

	checker := healthcheck.New(reg.Groups)
	ctx, cancel := context.WithCancel(context.Background())
	checker.Start(ctx)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	go func() {
		applog.Info("listening addr=%s algorithm=%s groups=%d", cfg.ListenAddr, cfg.Algorithm, len(reg.Groups))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("loadbalancer: serve error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	applog.Info("shutting down")
	cancel()
	checker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		applog.Error("graceful shutdown failed: %v", err)
	}
}
