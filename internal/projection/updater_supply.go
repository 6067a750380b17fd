package projection

import (
	"context"
	"database/sql"
)

// applyXCPSupplyDestruction implements SPEC_FULL.md §4.2.4: a subset of
// event kinds burn a fee_paid quantity of XCP outright, distinct from
// ASSET_DESTRUCTION's own per-asset supply decrement handled in
// updater_assets.go.
func applyXCPSupplyDestruction(ctx context.Context, tx *sql.Tx, ev *Event) error {
	if !xcpDestroyingEvents[ev.Event] {
		return nil
	}
	fee := ev.Bindings.Int64Value("fee_paid")
	if fee == 0 {
		return nil
	}
	return adjustSupply(ctx, tx, XCPAssetName, -fee)
}

func unapplyXCPSupplyDestruction(ctx context.Context, tx *sql.Tx, ev *Event) error {
	if !xcpDestroyingEvents[ev.Event] {
		return nil
	}
	fee := ev.Bindings.Int64Value("fee_paid")
	if fee == 0 {
		return nil
	}
	return adjustSupply(ctx, tx, XCPAssetName, fee)
}
