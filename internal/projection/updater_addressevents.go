package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// applyAddressEvents implements SPEC_FULL.md §4.2.5: index every distinct
// address named by the event's bindings against this message_index, so a
// client can ask "what touched address X" without scanning all of messages.
func applyAddressEvents(ctx context.Context, tx *sql.Tx, ev *Event) error {
	addresses := addressesIn(ev.Bindings)
	if len(addresses) == 0 {
		return nil
	}
	for _, addr := range addresses {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO address_events (address, message_index) VALUES (?, ?)`,
			addr, ev.MessageIndex)
		if err != nil {
			return fmt.Errorf("address_events: insert: %w", err)
		}
	}
	return nil
}

// unapplyAddressEvents drops every address_events row for this message,
// exactly reversing applyAddressEvents regardless of how many addresses it
// indexed.
func unapplyAddressEvents(ctx context.Context, tx *sql.Tx, ev *Event) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM address_events WHERE message_index = ?`, ev.MessageIndex)
	if err != nil {
		return fmt.Errorf("address_events: delete: %w", err)
	}
	return nil
}
