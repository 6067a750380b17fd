// Package main provides the watchd daemon - a projection watcher for a
// meta-protocol ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/klingon-exchange/ledger-watcher/internal/config"
	"github.com/klingon-exchange/ledger-watcher/internal/ledger"
	"github.com/klingon-exchange/ledger-watcher/internal/projection"
	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.watchd", "Data directory")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("watchd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*dataDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	log = logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("config loaded", "path", config.ConfigPath(*dataDir))

	switch args[0] {
	case "run":
		runStart(cfg, log)
	case "rollback":
		if len(args) != 2 {
			log.Fatal("rollback requires a block_index argument")
		}
		blockIndex, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			log.Fatal("invalid block_index", "value", args[1], "error", err)
		}
		runRollback(cfg, log, blockIndex)
	case "migrate":
		runMigrate(cfg, log)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `watchd - meta-protocol projection watcher

Usage:
  watchd [flags] run
  watchd [flags] rollback <block_index>
  watchd [flags] migrate

Flags:
`)
	flag.PrintDefaults()
}

// runStart implements the run() operational verb (SPEC_FULL.md §6.5):
// open the Primary Ledger Store read-only, open the Projection Store
// (running migrations under the advisory lock), run the watcher's initial
// catch-up, then serve the follow/mempool loops and /metrics until signalled.
func runStart(cfg *config.Config, log *logging.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := ledger.OpenStore(ctx, cfg.Ledger.Path, log)
	if err != nil {
		log.Fatal("failed to open primary ledger store", "error", err)
	}
	defer src.Close()
	log.Info("primary ledger store opened", "path", cfg.Ledger.Path)

	ps, err := projection.OpenStore(ctx, projection.StoreConfig{
		Path:        cfg.Projection.Path,
		LockTimeout: cfg.Projection.MigrationLockTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to open projection store", "error", err)
	}
	defer ps.Close()
	log.Info("projection store opened", "path", cfg.Projection.Path)

	watcher := projection.NewWatcher(ps.DB(), src, projection.WatcherConfig{
		FollowInterval:  cfg.Watcher.FollowInterval,
		MempoolInterval: cfg.Watcher.MempoolInterval,
		SkipListSize:    cfg.Watcher.SkipListSize,
	}, log)

	if err := watcher.Start(ctx); err != nil {
		log.Fatal("watcher failed to start", "error", err)
	}

	var metricsServer *http.Server
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", watcher.Metrics().Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	log.Info("watchd running")
	<-ctx.Done()
	log.Info("shutting down")

	watcher.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}
}

// runRollback implements the rollback(block_index) operational verb
// (SPEC_FULL.md §6.5): open the Projection Store read-write and unapply
// every message with block_index >= blockIndex in descending message_index
// order, then close.
func runRollback(cfg *config.Config, log *logging.Logger, blockIndex int64) {
	ctx := context.Background()

	ps, err := projection.OpenStore(ctx, projection.StoreConfig{
		Path:        cfg.Projection.Path,
		LockTimeout: cfg.Projection.MigrationLockTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to open projection store", "error", err)
	}
	defer ps.Close()

	watcher := projection.NewWatcher(ps.DB(), nil, projection.WatcherConfig{}, log)
	log.Info("rolling back", "block_index", blockIndex)
	if err := watcher.Rollback(ctx, blockIndex); err != nil {
		log.Fatal("rollback failed", "error", err)
	}
	log.Info("rollback complete", "block_index", blockIndex)
}

// runMigrate implements the migrate() operational verb (SPEC_FULL.md §6.5):
// open the Projection Store, which applies every outstanding migration under
// the advisory lock (§6.2, §7) as a side effect of opening, then close
// without touching the watcher or the Primary Ledger Store. Useful for
// applying schema changes ahead of a deploy, independent of starting the
// follow loop.
func runMigrate(cfg *config.Config, log *logging.Logger) {
	ctx := context.Background()

	ps, err := projection.OpenStore(ctx, projection.StoreConfig{
		Path:        cfg.Projection.Path,
		LockTimeout: cfg.Projection.MigrationLockTimeout,
	}, log)
	if err != nil {
		log.Fatal("migration failed", "error", err)
	}
	defer ps.Close()
	log.Info("migrations up to date", "path", cfg.Projection.Path)
}
