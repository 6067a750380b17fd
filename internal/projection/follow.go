package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// FollowTick implements one iteration of SPEC_FULL.md §4.6's steady-state
// loop: CatchUp already reconciles any reorg before applying anything new
// (§4.3 steps 1-2), so a tick is just one catch-up pass.
func FollowTick(ctx context.Context, db *sql.DB, src LedgerSource, skip *skipList, metrics *Metrics, log *logging.Logger) error {
	if err := CatchUp(ctx, db, src, skip, metrics, log, 1000); err != nil {
		return fmt.Errorf("follow: catch up: %w", err)
	}
	return nil
}
