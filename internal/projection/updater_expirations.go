package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// applyExpiration implements SPEC_FULL.md §4.2.3. Expiration events carry no
// own category/command of their own interest beyond the generic EXPIRATION
// row; the updater keys all_expirations by (object_id, block_index, type)
// using expirationObjectIDField to find the right binding per event kind.
func applyExpiration(ctx context.Context, tx *sql.Tx, ev *Event) error {
	field, ok := expirationObjectIDField[ev.Event]
	if !ok {
		return nil
	}
	objectID := ev.Bindings.StringValue(field)
	if objectID == "" {
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO all_expirations (object_id, block_index, type) VALUES (?, ?, ?)`,
		objectID, ev.BlockIndex, ev.Event)
	if err != nil {
		return fmt.Errorf("expirations: insert: %w", err)
	}
	return nil
}

// unapplyExpiration removes a single matching row. rowid targeting avoids
// deleting every expiration ever logged for the same object at the same
// block, in the (rare) case an object expires more than once.
func unapplyExpiration(ctx context.Context, tx *sql.Tx, ev *Event) error {
	field, ok := expirationObjectIDField[ev.Event]
	if !ok {
		return nil
	}
	objectID := ev.Bindings.StringValue(field)
	if objectID == "" {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		DELETE FROM all_expirations WHERE id = (
			SELECT id FROM all_expirations
			WHERE object_id = ? AND block_index = ? AND type = ?
			ORDER BY id DESC LIMIT 1
		)`, objectID, ev.BlockIndex, ev.Event)
	if err != nil {
		return fmt.Errorf("expirations: delete: %w", err)
	}
	return nil
}
