package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// ApplyEvent runs the eight-step per-event transaction of SPEC_FULL.md §4.2:
// translator mutation, balance delta, expiration log, assets_info update,
// XCP-supply adjustment, address-events index, fairminter counters, and
// finally the messages row itself. All eight steps commit or fail together.
func ApplyEvent(ctx context.Context, db *sql.DB, ev *Event) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply %s: begin: %w", ev.Event, err)
	}
	defer tx.Rollback()

	translation, err := translateEvent(ctx, tx, ev)
	if err != nil {
		return fmt.Errorf("apply %s: translate: %w", ev.Event, err)
	}
	if err := applyBalanceDelta(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: balances: %w", ev.Event, err)
	}
	if err := applyExpiration(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: expirations: %w", ev.Event, err)
	}
	if err := applyAssetsInfo(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: assets_info: %w", ev.Event, err)
	}
	if err := applyXCPSupplyDestruction(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: xcp supply: %w", ev.Event, err)
	}
	if err := applyAddressEvents(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: address_events: %w", ev.Event, err)
	}
	if err := applyFairminterCounters(ctx, tx, ev); err != nil {
		return fmt.Errorf("apply %s: fairminters: %w", ev.Event, err)
	}
	if err := persistMessage(ctx, tx, ev, translation.PreviousState, translation.InsertRowID); err != nil {
		return fmt.Errorf("apply %s: persist message: %w", ev.Event, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply %s: commit: %w", ev.Event, err)
	}
	return nil
}
