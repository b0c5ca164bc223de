// Package main runs the resource management layer standalone: it loads
// configuration, constructs the manager, and periodically prints a metrics
// snapshot until interrupted. Useful for smoke-testing a configuration and
// for observing reaper behavior against synthetic load.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toolpool-dev/toolpool/internal/resource"
	"github.com/toolpool-dev/toolpool/internal/resource/configuration"
	"github.com/toolpool-dev/toolpool/pkg/audit"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

var (
	configPath       = flag.String("config", "", "Path to a configuration file (YAML); defaults apply when empty")
	snapshotInterval = flag.Duration("snapshot-interval", 10*time.Second, "How often to print a metrics snapshot")
	trace            = flag.Bool("trace", false, "Log every span and event (noisy)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "toolpool: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configuration.Load(*configPath)
	if err != nil {
		return err
	}

	logger := configuration.NewLogger(cfg.Observability)

	opts := []resource.Option{
		resource.WithLogger(logger),
		resource.WithAuditor(audit.NewLogAuditor(logger)),
	}
	if *trace {
		opts = append(opts, resource.WithTracer(telemetry.NewLogTracer(logger)))
	}

	mgr, err := resource.NewManager(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("toolpool running", "config", *configPath)

	ticker := time.NewTicker(*snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printSnapshot(mgr)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return mgr.Close(shutdownCtx)
		}
	}
}

func printSnapshot(mgr *resource.Manager) {
	snap := mgr.Snapshot()
	out, err := json.Marshal(snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolpool: marshal snapshot: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
