package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// Reconcile implements SPEC_FULL.md §4.4: it compares the Projection
// Store's head event_hash fingerprint against the Primary Ledger Store's,
// and on mismatch rolls back the PS suffix one event at a time until the
// fingerprints agree (or the PS is empty). A reorg upstream rewrites
// message_index assignments from some point on, so anything PS has recorded
// past that point no longer matches what the PLS now says happened there.
func Reconcile(ctx context.Context, db *sql.DB, src LedgerSource, metrics *Metrics, log *logging.Logger) error {
	log = log.Component("reconcile")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, ok, err := headMessageIndex(ctx, db)
		if err != nil {
			return fmt.Errorf("reconcile: read PS head: %w", err)
		}
		if !ok {
			return nil
		}

		stored, found, err := messageAt(ctx, db, head)
		if err != nil {
			return fmt.Errorf("reconcile: read PS head message: %w", err)
		}
		if !found {
			return fmt.Errorf("reconcile: PS head %d vanished mid-reconcile", head)
		}

		plsHash, foundInPLS, err := src.HeadEventHash(ctx, head)
		if err != nil {
			return fmt.Errorf("reconcile: read PLS event hash: %w", err)
		}
		if foundInPLS && plsHash == stored.EventHash {
			return nil
		}

		log.Warn("rolling back diverging message", "message_index", head)
		if err := UnapplyEvent(ctx, db, head); err != nil {
			return fmt.Errorf("reconcile: unapply %d: %w", head, err)
		}
		if metrics != nil {
			metrics.ReconcileRollback.Inc()
		}
	}
}
