package projection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// UnapplyEvent reverses a previously applied event, exactly undoing
// ApplyEvent's eight steps in reverse order, then deleting the messages row
// itself. It is the mechanism behind both the reorg reconciler (§4.4) and
// the rollback CLI verb (§6.5).
func UnapplyEvent(ctx context.Context, db *sql.DB, messageIndex int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unapply %d: begin: %w", messageIndex, err)
	}
	defer tx.Rollback()

	stored, ok, err := messageAt(ctx, tx, messageIndex)
	if err != nil {
		return fmt.Errorf("unapply %d: lookup: %w", messageIndex, err)
	}
	if !ok {
		return fmt.Errorf("unapply %d: %w", messageIndex, ErrRollbackTargetMissing)
	}
	ev := &stored.Event

	if err := unapplyFairminterCounters(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: fairminters: %w", messageIndex, err)
	}
	if err := unapplyAddressEvents(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: address_events: %w", messageIndex, err)
	}
	if err := unapplyXCPSupplyDestruction(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: xcp supply: %w", messageIndex, err)
	}
	if err := unapplyAssetsInfo(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: assets_info: %w", messageIndex, err)
	}
	if err := unapplyExpiration(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: expirations: %w", messageIndex, err)
	}
	if err := unapplyBalanceDelta(ctx, tx, ev); err != nil {
		return fmt.Errorf("unapply %d: balances: %w", messageIndex, err)
	}
	if err := untranslateEvent(ctx, tx, stored); err != nil {
		return fmt.Errorf("unapply %d: untranslate: %w", messageIndex, err)
	}
	if err := deleteMessage(ctx, tx, messageIndex); err != nil {
		return fmt.Errorf("unapply %d: delete message: %w", messageIndex, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unapply %d: commit: %w", messageIndex, err)
	}
	return nil
}

// untranslateEvent reverses translateEvent's domain-table mutation: a
// captured insert rowid is deleted outright, a captured previous row image
// is restored verbatim.
func untranslateEvent(ctx context.Context, tx *sql.Tx, stored *StoredEvent) error {
	ev := &stored.Event
	if SkipEvents[ev.Event] {
		return nil
	}

	switch ev.Command {
	case CommandInsert:
		if !stored.InsertRowID.Valid {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", ev.Category), stored.InsertRowID.Int64)
		if err != nil {
			return fmt.Errorf("untranslate: delete inserted row: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("untranslate: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s rowid %d already gone", ErrRollbackTargetMissing, ev.Category, stored.InsertRowID.Int64)
		}
		return nil

	case CommandUpdate, CommandParse:
		if IsMempool(ev.BlockIndex) || stored.PreviousState == nil {
			return nil
		}
		idCols, ok := idFieldsFor(ev.Event)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEventShape, ev.Event)
		}
		return restoreRow(ctx, tx, ev.Category, idCols, stored.PreviousState)

	default:
		return fmt.Errorf("untranslate %s: unknown command %q", ev.Event, ev.Command)
	}
}

// restoreRow writes every column captured in row back onto the matching
// identified row, undoing an update in place.
func restoreRow(ctx context.Context, tx *sql.Tx, table string, idCols []string, row *Bindings) error {
	idSet := make(map[string]bool, len(idCols))
	for _, c := range idCols {
		idSet[c] = true
	}

	var setCols []string
	var args []any
	for _, c := range row.Keys() {
		if idSet[c] {
			continue
		}
		v, _ := row.Get(c)
		setCols = append(setCols, c+" = ?")
		args = append(args, v)
	}
	if len(setCols) == 0 {
		return nil
	}

	where := make([]string, len(idCols))
	for i, c := range idCols {
		where[i] = c + " = ?"
		v, _ := row.Get(c)
		args = append(args, v)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(setCols, ", "), strings.Join(where, " AND "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("restore row in %s: %w", table, err)
	}
	return nil
}
