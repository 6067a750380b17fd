package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// Bootstrap seeds the reserved BTC/XCP rows required before the watcher's
// first catch-up pass (SPEC_FULL.md §6.2, §6.5's start() verb). It is
// idempotent: restarting against an already-bootstrapped Projection Store
// is a no-op thanks to INSERT OR IGNORE.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	return seedReservedAssets(ctx, db)
}

// seedReservedAssets inserts the BTC (id 0) and XCP (id 1) singleton rows
// required at bootstrap (SPEC_FULL.md §6.2). XCP additionally gets its
// assets_info row seeded with its known historical issuance bounds, since
// unlike every other asset XCP was never actually issued by an ASSET_CREATION
// event the ledger emits.
func seedReservedAssets(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO assets (asset_id, asset_name, block_index) VALUES (?, ?, 0)`,
		BTCAssetID, BTCAssetName); err != nil {
		return fmt.Errorf("bootstrap: seed BTC asset: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO assets (asset_id, asset_name, block_index) VALUES (?, ?, 0)`,
		XCPAssetID, XCPAssetName); err != nil {
		return fmt.Errorf("bootstrap: seed XCP asset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO assets_info
			(asset, asset_id, divisible, locked, supply, description, first_issuance_block_index, last_issuance_block_index, confirmed)
		VALUES (?, ?, 1, 1, 0, 'The Counterparty protocol native currency', 0, 0, 1)`,
		XCPAssetName, XCPAssetID); err != nil {
		return fmt.Errorf("bootstrap: seed XCP assets_info: %w", err)
	}

	return tx.Commit()
}
