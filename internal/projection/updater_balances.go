package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// applyBalanceDelta implements SPEC_FULL.md §4.2.1. It runs for every
// CREDIT/DEBIT event regardless of the event's own command/category,
// alongside (not instead of) the translator's own mutation of the credits
// or debits table.
func applyBalanceDelta(ctx context.Context, tx *sql.Tx, ev *Event) error {
	var sign int64
	switch ev.Event {
	case "CREDIT":
		sign = 1
	case "DEBIT":
		sign = -1
	default:
		return nil
	}

	quantity := ev.Bindings.Int64Value("quantity")
	if quantity == 0 {
		return nil
	}
	delta := sign * quantity
	asset := ev.Bindings.StringValue("asset")

	utxo := ev.Bindings.StringValue("utxo")
	if utxo != "" {
		return upsertBalance(ctx, tx, "", utxo, asset, delta)
	}
	address := ev.Bindings.StringValue("address")
	return upsertBalance(ctx, tx, address, "", asset, delta)
}

// unapplyBalanceDelta reverses a balance delta by swapping CREDIT<->DEBIT
// and re-applying, exactly as SPEC_FULL.md §4.2.1 specifies.
func unapplyBalanceDelta(ctx context.Context, tx *sql.Tx, ev *Event) error {
	swapped := *ev
	switch ev.Event {
	case "CREDIT":
		swapped.Event = "DEBIT"
	case "DEBIT":
		swapped.Event = "CREDIT"
	default:
		return nil
	}
	return applyBalanceDelta(ctx, tx, &swapped)
}

func upsertBalance(ctx context.Context, tx *sql.Tx, address, utxo, asset string, delta int64) error {
	var (
		res sql.Result
		err error
	)
	if utxo != "" {
		res, err = tx.ExecContext(ctx,
			`UPDATE balances SET quantity = quantity + ? WHERE utxo = ? AND asset = ?`,
			delta, utxo, asset)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE balances SET quantity = quantity + ? WHERE address = ? AND asset = ? AND (utxo IS NULL OR utxo = '')`,
			delta, address, asset)
	}
	if err != nil {
		return fmt.Errorf("balances: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("balances: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	if utxo != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (address, utxo, asset, quantity) VALUES (NULL, ?, ?, ?)`,
			utxo, asset, delta)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (address, utxo, asset, quantity) VALUES (?, NULL, ?, ?)`,
			address, asset, delta)
	}
	if err != nil {
		return fmt.Errorf("balances: insert: %w", err)
	}
	return nil
}
