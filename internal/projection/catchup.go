package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// LedgerSource is the subset of the Primary Ledger Store the projection
// package consumes (SPEC_FULL.md §6.1). internal/ledger.Store implements
// it; tests can supply a fake.
type LedgerSource interface {
	NextEvent(ctx context.Context, afterIndex int64) (*Event, bool, error)
	HeadEventHash(ctx context.Context, messageIndex int64) (string, bool, error)
	MempoolSnapshot(ctx context.Context) ([]MempoolEvent, error)
}

// LedgerHeadProbe is satisfied by sources that can additionally report their
// current head, used only to populate the catch-up lag gauge.
type LedgerHeadProbe interface {
	HeadMessageIndex(ctx context.Context) (int64, bool, error)
}

// CatchUp implements SPEC_FULL.md §4.3 in full: step 1 runs the reconciler
// so a diverging PS suffix is rolled back before anything new is read, step
// 2 rebuilds the mempool projection (RebuildMempool clears it, then
// re-projects the current snapshot) so catch-up never drains confirmed
// events against a stale unconfirmed view, and the remaining steps apply every
// confirmed event after the Projection Store's current head, one short
// transaction at a time, until NextEvent reports there is nothing left. Each
// applied event updates the watcher's event-applied counter; the catch-up
// lag gauge is refreshed whenever the source supports LedgerHeadProbe. When
// an applied event is BLOCK_PARSED, a mempool resynchronisation runs
// immediately afterward (step 5): a new block almost always invalidates
// part of the previous mempool snapshot (transactions it confirmed), so the
// projected mempool view must not wait for the next scheduled rebuild to
// catch up.
func CatchUp(ctx context.Context, db *sql.DB, src LedgerSource, skip *skipList, metrics *Metrics, log *logging.Logger, progressEvery int64) error {
	if progressEvery <= 0 {
		progressEvery = 1000
	}
	log = log.Component("catchup")

	if err := Reconcile(ctx, db, src, metrics, log); err != nil {
		return fmt.Errorf("catchup: reconcile: %w", err)
	}
	if err := RebuildMempool(ctx, db, src, skip, metrics, log); err != nil {
		return fmt.Errorf("catchup: rebuild mempool projection: %w", err)
	}

	applied := int64(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, _, err := headMessageIndex(ctx, db)
		if err != nil {
			return fmt.Errorf("catchup: read PS head: %w", err)
		}

		ev, ok, err := src.NextEvent(ctx, head)
		if err != nil {
			return fmt.Errorf("catchup: next event: %w", err)
		}
		if !ok {
			if metrics != nil {
				metrics.CatchupLag.Set(0)
			}
			return nil
		}

		if err := ApplyEvent(ctx, db, ev); err != nil {
			return fmt.Errorf("catchup: apply message %d: %w", ev.MessageIndex, err)
		}
		applied++
		if metrics != nil {
			metrics.EventsApplied.Inc()
		}

		if ev.Event == "BLOCK_PARSED" {
			if err := RebuildMempool(ctx, db, src, skip, metrics, log); err != nil {
				return fmt.Errorf("catchup: mempool resync after block %d: %w", ev.BlockIndex, err)
			}
		}

		if probe, ok := src.(LedgerHeadProbe); ok && metrics != nil {
			if plsHead, found, err := probe.HeadMessageIndex(ctx); err == nil && found {
				lag := plsHead - ev.MessageIndex
				if lag < 0 {
					lag = 0
				}
				metrics.CatchupLag.Set(float64(lag))
			}
		}

		if applied%progressEvery == 0 {
			log.Info("catch-up progress", "applied", applied, "head_message_index", ev.MessageIndex)
		}
	}
}
