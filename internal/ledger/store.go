// Package ledger provides the Primary Ledger Store contract of
// SPEC_FULL.md §6.1: a read-only view over the append-only event log the
// watcher tails. The watcher never writes to this connection.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/ledger-watcher/internal/projection"
	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// Store is a read-only handle onto the Primary Ledger Store.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// OpenStore opens path in SQLite's read-only mode. The PLS is owned and
// written by the upstream ledger process; this watcher must never hold a
// write lock against it.
func OpenStore(ctx context.Context, path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Default()
	}
	log = log.Component("ledger-store")

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger store: ping: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the PLS connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextEvent returns the first confirmed event with message_index strictly
// greater than afterIndex, the unit of work the catch-up and follow loops
// consume one at a time (SPEC_FULL.md §4.3, §4.6). Rows carrying the
// mempool sentinel block_index are excluded: they belong to the ephemeral
// mempool projection (§3.4), never to the durable total order catch-up
// walks, even though they share the same messages table and message_index
// sequence as confirmed rows.
func (s *Store) NextEvent(ctx context.Context, afterIndex int64) (*projection.Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT message_index, block_index, event, category, command, bindings, tx_hash, event_hash
		FROM messages WHERE message_index > ? AND block_index != ? ORDER BY message_index ASC LIMIT 1`,
		afterIndex, projection.MempoolBlockIndex)

	var (
		messageIndex, blockIndex  int64
		eventKind, category, cmd  string
		bindingsRaw               string
		txHash, eventHash         sql.NullString
	)
	if err := row.Scan(&messageIndex, &blockIndex, &eventKind, &category, &cmd, &bindingsRaw, &txHash, &eventHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ledger store: next event: %w", err)
	}

	bindings, err := projection.ParseBindings(bindingsRaw)
	if err != nil {
		return nil, false, fmt.Errorf("ledger store: next event %d: decode bindings: %w", messageIndex, err)
	}

	return &projection.Event{
		MessageIndex: messageIndex,
		BlockIndex:   blockIndex,
		Event:        eventKind,
		Category:     category,
		Command:      projection.Command(cmd),
		Bindings:     bindings,
		TxHash:       txHash.String,
		EventHash:    eventHash.String,
	}, true, nil
}

// HeadMessageIndex returns the highest message_index currently in the PLS,
// used only to compute the catch-up lag gauge (SPEC_FULL.md §4.3); it is not
// part of the minimal read contract so callers should treat it as best
// effort and tolerate staleness under concurrent ledger writes.
func (s *Store) HeadMessageIndex(ctx context.Context) (int64, bool, error) {
	var idx sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(message_index) FROM messages WHERE block_index != ?`, projection.MempoolBlockIndex).Scan(&idx)
	if err != nil {
		return 0, false, fmt.Errorf("ledger store: head message index: %w", err)
	}
	if !idx.Valid {
		return 0, false, nil
	}
	return idx.Int64, true, nil
}

// HeadEventHash returns the event_hash recorded at messageIndex in the PLS,
// used by the reconciler to compare against the Projection Store's own
// fingerprint (SPEC_FULL.md §4.4).
func (s *Store) HeadEventHash(ctx context.Context, messageIndex int64) (string, bool, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT event_hash FROM messages WHERE message_index = ?`, messageIndex).Scan(&hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ledger store: head event hash: %w", err)
	}
	return hash.String, true, nil
}

// MempoolSnapshot returns every currently unconfirmed event, keyed under the
// mempool block-index sentinel, in message_index order. It is a full
// snapshot, not a delta: the mempool projection is rebuilt from scratch on
// every cycle (SPEC_FULL.md §4.5).
func (s *Store) MempoolSnapshot(ctx context.Context) ([]projection.MempoolEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, command, category, event, bindings, timestamp
		FROM messages WHERE block_index = ? ORDER BY message_index ASC`, projection.MempoolBlockIndex)
	if err != nil {
		return nil, fmt.Errorf("ledger store: mempool snapshot: %w", err)
	}
	defer rows.Close()

	var out []projection.MempoolEvent
	for rows.Next() {
		var (
			txHash, cmd, category, eventKind, bindingsRaw sql.NullString
			timestamp                                     sql.NullInt64
		)
		if err := rows.Scan(&txHash, &cmd, &category, &eventKind, &bindingsRaw, &timestamp); err != nil {
			return nil, fmt.Errorf("ledger store: mempool snapshot scan: %w", err)
		}
		bindings, err := projection.ParseBindings(bindingsRaw.String)
		if err != nil {
			return nil, fmt.Errorf("ledger store: mempool snapshot decode bindings: %w", err)
		}
		out = append(out, projection.MempoolEvent{
			TxHash:    txHash.String,
			Command:   projection.Command(cmd.String),
			Category:  category.String,
			Event:     eventKind.String,
			Bindings:  bindings,
			Timestamp: timestamp.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger store: mempool snapshot rows: %w", err)
	}
	return out, nil
}
