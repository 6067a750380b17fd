package projection

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers work
// whether or not the caller is inside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StoredEvent is one row of PS messages: an Event plus the inverse captured
// when it was applied (SPEC_FULL.md §3.2).
type StoredEvent struct {
	Event
	PreviousState *Bindings
	InsertRowID   sql.NullInt64
}

// toJSON serialises b preserving key order, so the on-disk previous_state
// text is stable and diffable. A nil Bindings serialises as SQL NULL, the
// "null marker" SPEC_FULL.md §3.2/GLOSSARY describes for insert/no-op
// events.
func bindingsToJSON(b *Bindings) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return sql.NullString{}, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		v, _ := b.Get(k)
		valBytes, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return sql.NullString{String: buf.String(), Valid: true}, nil
}

func jsonToBindings(s sql.NullString) (*Bindings, error) {
	if !s.Valid {
		return nil, nil
	}
	return ParseBindings(s.String)
}

// persistMessage writes the messages row for ev as the final (eighth) step
// of the per-event transaction (SPEC_FULL.md §4.2).
func persistMessage(ctx context.Context, tx *sql.Tx, ev *Event, previousState *Bindings, insertRowID sql.NullInt64) error {
	bindingsJSON, err := bindingsToJSON(ev.Bindings)
	if err != nil {
		return fmt.Errorf("persist message: encode bindings: %w", err)
	}
	prevJSON, err := bindingsToJSON(previousState)
	if err != nil {
		return fmt.Errorf("persist message: encode previous_state: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_index, block_index, event, category, command, bindings, tx_hash, event_hash, previous_state, insert_rowid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.MessageIndex, ev.BlockIndex, ev.Event, ev.Category, string(ev.Command),
		bindingsJSON.String, nullIfEmpty(ev.TxHash), ev.EventHash, prevJSON, insertRowID)
	if err != nil {
		return fmt.Errorf("persist message: insert: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// headMessageIndex returns the highest message_index stored in PS.
func headMessageIndex(ctx context.Context, q querier) (int64, bool, error) {
	var idx sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(message_index) FROM messages`).Scan(&idx)
	if err != nil {
		return 0, false, fmt.Errorf("head message index: %w", err)
	}
	if !idx.Valid {
		return 0, false, nil
	}
	return idx.Int64, true, nil
}

// messageAt reads back the stored event and its captured inverse at a
// given message_index, used by the reconciler and the rollback engine.
func messageAt(ctx context.Context, q querier, messageIndex int64) (*StoredEvent, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT message_index, block_index, event, category, command, bindings, tx_hash, event_hash, previous_state, insert_rowid
		FROM messages WHERE message_index = ?`, messageIndex)

	var (
		blockIndex              int64
		eventKind, category, cmd string
		bindingsRaw             string
		txHash, eventHash       sql.NullString
		prevState               sql.NullString
		insertRowID             sql.NullInt64
	)
	if err := row.Scan(&messageIndex, &blockIndex, &eventKind, &category, &cmd, &bindingsRaw, &txHash, &eventHash, &prevState, &insertRowID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("message at %d: %w", messageIndex, err)
	}

	bindings, err := ParseBindings(bindingsRaw)
	if err != nil {
		return nil, false, fmt.Errorf("message at %d: decode bindings: %w", messageIndex, err)
	}
	prev, err := jsonToBindings(prevState)
	if err != nil {
		return nil, false, fmt.Errorf("message at %d: decode previous_state: %w", messageIndex, err)
	}

	return &StoredEvent{
		Event: Event{
			MessageIndex: messageIndex,
			BlockIndex:   blockIndex,
			Event:        eventKind,
			Category:     category,
			Command:      Command(cmd),
			Bindings:     bindings,
			TxHash:       txHash.String,
			EventHash:    eventHash.String,
		},
		PreviousState: prev,
		InsertRowID:   insertRowID,
	}, true, nil
}

// deleteMessage removes the messages row at messageIndex, the last step of
// unapplying an event.
func deleteMessage(ctx context.Context, tx *sql.Tx, messageIndex int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE message_index = ?`, messageIndex)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", messageIndex, err)
	}
	return nil
}
