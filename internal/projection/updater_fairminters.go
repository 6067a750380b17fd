package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// applyFairminterCounters implements SPEC_FULL.md §4.2.6: a valid
// NEW_FAIRMINT folds its quantities into the parent fairminter's running
// totals, in addition to the translator's own insert of the fairmints row.
func applyFairminterCounters(ctx context.Context, tx *sql.Tx, ev *Event) error {
	if ev.Event != "NEW_FAIRMINT" || ev.Bindings.StringValue("status") != "valid" {
		return nil
	}
	return adjustFairminterCounters(ctx, tx, ev, 1)
}

func unapplyFairminterCounters(ctx context.Context, tx *sql.Tx, ev *Event) error {
	if ev.Event != "NEW_FAIRMINT" || ev.Bindings.StringValue("status") != "valid" {
		return nil
	}
	return adjustFairminterCounters(ctx, tx, ev, -1)
}

func adjustFairminterCounters(ctx context.Context, tx *sql.Tx, ev *Event, sign int64) error {
	txHash := ev.Bindings.StringValue("fairminter_tx_hash")
	if txHash == "" {
		return nil
	}
	earn := sign * ev.Bindings.Int64Value("earn_quantity")
	commission := sign * ev.Bindings.Int64Value("commission")
	paid := sign * ev.Bindings.Int64Value("paid_quantity")

	_, err := tx.ExecContext(ctx, `
		UPDATE fairminters
		SET earn_quantity = earn_quantity + ?, commission = commission + ?, paid_quantity = paid_quantity + ?
		WHERE tx_hash = ?`,
		earn, commission, paid, txHash)
	if err != nil {
		return fmt.Errorf("fairminters: adjust counters: %w", err)
	}
	return nil
}
