package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// WatcherConfig configures a Watcher's poll cadence (SPEC_FULL.md §5, §6.5).
type WatcherConfig struct {
	// FollowInterval is how often the steady-state loop reconciles and
	// catches up once initial catch-up has finished.
	FollowInterval time.Duration
	// MempoolInterval is how often the mempool projection is rebuilt.
	MempoolInterval time.Duration
	// SkipListSize bounds the mempool uniqueness skip list (§4.5, §9).
	SkipListSize int
}

func (c WatcherConfig) followInterval() time.Duration {
	if c.FollowInterval <= 0 {
		return 10 * time.Second
	}
	return c.FollowInterval
}

func (c WatcherConfig) mempoolInterval() time.Duration {
	if c.MempoolInterval <= 0 {
		return 5 * time.Second
	}
	return c.MempoolInterval
}

// Watcher owns the single cooperative worker that drives the Projection
// Store forward (SPEC_FULL.md §5): one goroutine holds the PS connection,
// catch-up runs to completion before the follow/mempool loop starts, and a
// stop channel is polled at suspension points rather than the loop being
// preempted mid-transaction.
type Watcher struct {
	db      *sql.DB
	src     LedgerSource
	cfg     WatcherConfig
	skip    *skipList
	metrics *Metrics
	log     *logging.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher constructs a Watcher. Call Start to begin catch-up and the
// follow/mempool loops; call Stop to end them.
func NewWatcher(db *sql.DB, src LedgerSource, cfg WatcherConfig, log *logging.Logger) *Watcher {
	if log == nil {
		log = logging.Default()
	}
	return &Watcher{
		db:      db,
		src:     src,
		cfg:     cfg,
		skip:    newSkipList(cfg.SkipListSize),
		metrics: newMetrics(),
		log:     log.Component("watcher"),
		stopCh:  make(chan struct{}),
	}
}

// Metrics exposes the watcher's Prometheus instrumentation, so the caller
// can serve it over HTTP.
func (w *Watcher) Metrics() *Metrics {
	return w.metrics
}

// Start runs catch-up to completion, then launches the steady-state
// follow and mempool-rebuild loops in the background. It returns once
// initial catch-up finishes; the background loops keep running until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	if err := Bootstrap(ctx, w.db); err != nil {
		return fmt.Errorf("watcher: bootstrap: %w", err)
	}

	w.log.Info("running initial catch-up")
	// CatchUp reconciles any divergence against the ledger (§4.4) and
	// rebuilds the mempool projection before draining confirmed events
	// (§4.3 steps 1-2), so a fresh Start already covers scenario S3.
	if err := CatchUp(ctx, w.db, w.src, w.skip, w.metrics, w.log, 1000); err != nil {
		return fmt.Errorf("watcher: initial catch-up: %w", err)
	}
	w.log.Info("initial catch-up complete")

	w.wg.Add(1)
	go w.followLoop(ctx)
	w.wg.Add(1)
	go w.mempoolLoop(ctx)
	return nil
}

// Stop signals both background loops to exit and waits for them.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

// Rollback implements the rollback CLI verb (§6.5): it unapplies every
// message with block_index >= blockIndex, working from the highest
// message_index down to preserve each step's inverse semantics (an
// update's previous_state is only valid relative to the state immediately
// after it was applied).
func (w *Watcher) Rollback(ctx context.Context, blockIndex int64) error {
	for {
		head, ok, err := headMessageIndex(ctx, w.db)
		if err != nil {
			return fmt.Errorf("rollback: read head: %w", err)
		}
		if !ok {
			return nil
		}
		stored, found, err := messageAt(ctx, w.db, head)
		if err != nil {
			return fmt.Errorf("rollback: read message %d: %w", head, err)
		}
		if !found || stored.BlockIndex < blockIndex {
			return nil
		}
		if err := UnapplyEvent(ctx, w.db, head); err != nil {
			return fmt.Errorf("rollback: unapply %d: %w", head, err)
		}
		if w.metrics != nil {
			w.metrics.ReconcileRollback.Inc()
		}
	}
}

func (w *Watcher) followLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.followInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := FollowTick(ctx, w.db, w.src, w.skip, w.metrics, w.log); err != nil {
				w.log.Error("follow tick failed", "error", err)
			}
		}
	}
}

func (w *Watcher) mempoolLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.mempoolInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := RebuildMempool(ctx, w.db, w.src, w.skip, w.metrics, w.log); err != nil {
				w.log.Error("mempool rebuild failed", "error", err)
			}
		}
	}
}
