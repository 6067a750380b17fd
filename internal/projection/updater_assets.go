package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// applyAssetsInfo implements SPEC_FULL.md §4.2.2: the generic translator
// mutates the issuances table (or orders/sweeps/etc.) as its own primary
// target; this updater additionally folds the event into the asset's
// aggregate assets_info row.
func applyAssetsInfo(ctx context.Context, tx *sql.Tx, ev *Event) error {
	switch ev.Event {
	case "ASSET_CREATION":
		return applyAssetCreation(ctx, tx, ev)
	case "ASSET_ISSUANCE", "RESET_ISSUANCE":
		if ev.Bindings.StringValue("status") != "valid" {
			return nil
		}
		return applyAssetIssuance(ctx, tx, ev)
	case "ASSET_DESTRUCTION":
		if ev.Bindings.StringValue("status") != "valid" || IsMempool(ev.BlockIndex) {
			return nil
		}
		quantity := ev.Bindings.Int64Value("quantity")
		if quantity == 0 {
			return nil
		}
		return adjustSupply(ctx, tx, ev.Bindings.StringValue("asset"), -quantity)
	case "ASSET_TRANSFER":
		if ev.Bindings.StringValue("status") != "valid" || IsMempool(ev.BlockIndex) {
			return nil
		}
		_, err := tx.ExecContext(ctx, `UPDATE assets_info SET owner = ? WHERE asset = ?`,
			ev.Bindings.StringValue("issuer"), ev.Bindings.StringValue("asset"))
		if err != nil {
			return fmt.Errorf("assets_info: transfer owner: %w", err)
		}
		return nil
	case "BURN":
		earned := ev.Bindings.Int64Value("earned")
		if earned == 0 {
			return nil
		}
		return adjustSupply(ctx, tx, XCPAssetName, earned)
	default:
		return nil
	}
}

func unapplyAssetsInfo(ctx context.Context, tx *sql.Tx, ev *Event) error {
	switch ev.Event {
	case "ASSET_CREATION":
		_, err := tx.ExecContext(ctx, `DELETE FROM assets_info WHERE asset = ?`, ev.Bindings.StringValue("asset"))
		if err != nil {
			return fmt.Errorf("assets_info: undo creation: %w", err)
		}
		return nil
	case "ASSET_ISSUANCE", "RESET_ISSUANCE":
		if ev.Bindings.StringValue("status") != "valid" || IsMempool(ev.BlockIndex) {
			return nil
		}
		return refreshAssetInfo(ctx, tx, ev.Bindings.StringValue("asset"), ev.Bindings.StringValue("tx_hash"))
	case "ASSET_DESTRUCTION":
		if ev.Bindings.StringValue("status") != "valid" || IsMempool(ev.BlockIndex) {
			return nil
		}
		quantity := ev.Bindings.Int64Value("quantity")
		if quantity == 0 {
			return nil
		}
		return adjustSupply(ctx, tx, ev.Bindings.StringValue("asset"), quantity)
	case "ASSET_TRANSFER":
		if ev.Bindings.StringValue("status") != "valid" || IsMempool(ev.BlockIndex) {
			return nil
		}
		return refreshAssetInfo(ctx, tx, ev.Bindings.StringValue("asset"), ev.Bindings.StringValue("tx_hash"))
	case "BURN":
		earned := ev.Bindings.Int64Value("earned")
		if earned == 0 {
			return nil
		}
		return adjustSupply(ctx, tx, XCPAssetName, -earned)
	default:
		return nil
	}
}

func applyAssetCreation(ctx context.Context, tx *sql.Tx, ev *Event) error {
	asset := ev.Bindings.StringValue("asset")
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO assets_info
			(asset, asset_id, asset_longname, issuer, owner, divisible, locked, supply, description,
			 first_issuance_block_index, last_issuance_block_index, confirmed)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, '', ?, ?, ?)`,
		asset,
		ev.Bindings.StringValue("asset_id"),
		ev.Bindings.StringValue("asset_longname"),
		ev.Bindings.StringValue("issuer"),
		ev.Bindings.StringValue("issuer"),
		boolToInt(ev.Bindings.BoolValue("divisible")),
		ev.BlockIndex, ev.BlockIndex,
		boolToInt(!IsMempool(ev.BlockIndex)))
	if err != nil {
		return fmt.Errorf("assets_info: creation: %w", err)
	}
	return nil
}

// applyAssetIssuance applies a valid ASSET_ISSUANCE/RESET_ISSUANCE to the
// asset's aggregate row, creating it if ASSET_CREATION never ran (longname
// sub-assets can be issued without a standalone creation event). Matching
// tries the asset column first, then asset_longname if no row keyed by
// asset exists yet (SPEC_FULL.md §4.2.2).
func applyAssetIssuance(ctx context.Context, tx *sql.Tx, ev *Event) error {
	asset := ev.Bindings.StringValue("asset")
	longname := ev.Bindings.StringValue("asset_longname")
	quantity := ev.Bindings.Int64Value("quantity")
	confirmed := !IsMempool(ev.BlockIndex)

	existing, err := selectRowByID(ctx, tx, "assets_info", []string{"asset"}, mustBindings("asset", asset))
	if err != nil {
		return fmt.Errorf("assets_info: issuance lookup: %w", err)
	}
	if existing == nil && longname != "" {
		existing, err = selectRowByID(ctx, tx, "assets_info", []string{"asset_longname"}, mustBindings("asset_longname", longname))
		if err != nil {
			return fmt.Errorf("assets_info: issuance longname lookup: %w", err)
		}
	}

	if existing == nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assets_info
				(asset, asset_id, asset_longname, issuer, owner, divisible, locked, supply, description,
				 first_issuance_block_index, last_issuance_block_index, confirmed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			asset,
			ev.Bindings.StringValue("asset_id"),
			longname,
			ev.Bindings.StringValue("issuer"),
			ev.Bindings.StringValue("issuer"),
			boolToInt(ev.Bindings.BoolValue("divisible")),
			boolToInt(ev.Bindings.BoolValue("locked")),
			quantity,
			ev.Bindings.StringValue("description"),
			ev.BlockIndex, ev.BlockIndex,
			boolToInt(confirmed))
		if err != nil {
			return fmt.Errorf("assets_info: issuance insert: %w", err)
		}
		return nil
	}

	// An unconfirmed (mempool) issuance never advances an existing asset's
	// aggregate row: if the row is already confirmed this protects
	// confirmed data from mempool noise, and if the row is itself still
	// unconfirmed this keeps supply at its creation value until an
	// issuance actually confirms (SPEC_FULL.md §4.2.2, §8 scenario S2).
	if !confirmed {
		return nil
	}

	existingAsset := existing.StringValue("asset")
	locked := existing.BoolValue("locked") || ev.Bindings.BoolValue("locked")
	_, err = tx.ExecContext(ctx, `
		UPDATE assets_info
		SET supply = supply + ?, description = ?, locked = ?, last_issuance_block_index = ?, confirmed = ?
		WHERE asset = ?`,
		quantity, ev.Bindings.StringValue("description"), boolToInt(locked), ev.BlockIndex, boolToInt(confirmed), existingAsset)
	if err != nil {
		return fmt.Errorf("assets_info: issuance update: %w", err)
	}
	return nil
}

// refreshAssetInfo recomputes an asset's aggregate row from the issuances
// table, the inverse of an issuance/transfer applied earlier (SPEC_FULL.md
// §4.2.2). It is a full rebuild rather than an algebraic subtraction because
// last_issuance_block_index, owner and locked are watermark/sticky fields
// that cannot be undone by simple arithmetic. The issuance being undone
// (excludeTxHash) is left out, since its issuances row is only deleted later
// in the same unapply transaction.
func refreshAssetInfo(ctx context.Context, tx *sql.Tx, asset, excludeTxHash string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT quantity, description, locked, divisible, issuer, block_index, status
		FROM issuances WHERE asset = ? AND tx_hash != ? ORDER BY block_index ASC`, asset, excludeTxHash)
	if err != nil {
		return fmt.Errorf("assets_info: refresh query: %w", err)
	}
	defer rows.Close()

	var (
		supply                                    int64
		description, owner                        string
		locked                                     bool
		divisible                                  sql.NullBool
		first, last                                sql.NullInt64
		any_                                       bool
	)
	for rows.Next() {
		var (
			quantity      int64
			desc, issuer  sql.NullString
			rowLocked     bool
			rowDivisible  bool
			blockIdx      int64
			status        string
		)
		if err := rows.Scan(&quantity, &desc, &rowLocked, &rowDivisible, &issuer, &blockIdx, &status); err != nil {
			return fmt.Errorf("assets_info: refresh scan: %w", err)
		}
		if status != "valid" {
			continue
		}
		any_ = true
		supply += quantity
		description = desc.String
		owner = issuer.String
		locked = locked || rowLocked
		divisible = sql.NullBool{Bool: rowDivisible, Valid: true}
		if !first.Valid || blockIdx < first.Int64 {
			first = sql.NullInt64{Int64: blockIdx, Valid: true}
		}
		if !last.Valid || blockIdx >= last.Int64 {
			last = sql.NullInt64{Int64: blockIdx, Valid: true}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("assets_info: refresh rows: %w", err)
	}

	if !any_ {
		_, err := tx.ExecContext(ctx, `DELETE FROM assets_info WHERE asset = ?`, asset)
		if err != nil {
			return fmt.Errorf("assets_info: refresh delete empty: %w", err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE assets_info
		SET supply = ?, description = ?, locked = ?, divisible = ?, owner = ?,
		    first_issuance_block_index = ?, last_issuance_block_index = ?
		WHERE asset = ?`,
		supply, description, boolToInt(locked), boolToInt(divisible.Bool), owner,
		first.Int64, last.Int64, asset)
	if err != nil {
		return fmt.Errorf("assets_info: refresh update: %w", err)
	}
	return nil
}

// adjustSupply implements the XCP-supply side of SPEC_FULL.md §4.2.4 as well
// as ASSET_DESTRUCTION's own supply decrement: both are a signed delta
// against a single assets_info row.
func adjustSupply(ctx context.Context, tx *sql.Tx, asset string, delta int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE assets_info SET supply = supply + ? WHERE asset = ?`, delta, asset)
	if err != nil {
		return fmt.Errorf("assets_info: adjust supply: %w", err)
	}
	return nil
}

func mustBindings(key string, val any) *Bindings {
	b := NewBindings()
	b.Set(key, val)
	return b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
