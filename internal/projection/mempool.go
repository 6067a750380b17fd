package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// mempoolDomainTables lists every domain table (besides assets_info, handled
// separately, and balances, which has no block_index column and is never
// touched by mempool application) that can carry rows stamped with the
// mempool sentinel block_index. Cleaned wholesale at the start of every
// rebuild (SPEC_FULL.md §4.5 step 2).
var mempoolDomainTables = []string{
	"transactions", "credits", "debits", "assets", "issuances",
	"orders", "order_matches", "bets", "bet_matches",
	"dispensers", "dispenses", "sweeps", "broadcasts", "burns", "sends",
	"dividends", "fairminters", "fairmints", "rps", "rps_matches",
	"transaction_count",
}

// mempoolSkipEvents are kinds never projected into the mempool view even
// though they may appear in the PLS mempool snapshot: SKIP_EVENTS carry no
// domain mutation anywhere, and NEW_BLOCK/BLOCK_PARSED are confirmation
// events that have no business appearing unconfirmed (SPEC_FULL.md §4.5).
var mempoolSkipEvents = map[string]bool{
	"NEW_BLOCK":    true,
	"BLOCK_PARSED": true,
}

// RebuildMempool implements SPEC_FULL.md §4.5: the mempool view is thrown
// away and rebuilt from the source's current snapshot on every cycle, rather
// than incrementally patched, because unconfirmed transactions can vanish or
// get replaced between cycles with no notification.
//
// tx_index is synthetic: the API surface this projection feeds expects one,
// but unconfirmed events have no confirmed one yet. An event's own tx_index
// binding is expanded to tx_index*1000 plus a random term so it cannot clash
// with future confirmed indices; events with no tx_index binding get none
// in the domain tables. A genuine clash still gets one retry with a freshly
// redrawn value before the tx_hash is given up on for this cycle (scenario S5).
func RebuildMempool(ctx context.Context, db *sql.DB, src LedgerSource, skip *skipList, metrics *Metrics, log *logging.Logger) error {
	log = log.Component("mempool")
	start := time.Now()
	defer func() {
		if metrics != nil {
			metrics.MempoolRebuild.Observe(time.Since(start).Seconds())
		}
	}()

	events, err := src.MempoolSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("mempool: snapshot: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mempool: begin: %w", err)
	}
	defer tx.Rollback()

	if err := cleanMempool(ctx, tx); err != nil {
		return err
	}

	for _, ev := range events {
		if SkipEvents[ev.Event] || mempoolSkipEvents[ev.Event] {
			continue
		}
		if skip.contains(ev.TxHash) {
			continue
		}

		if err := insertMempoolRow(ctx, tx, ev); err != nil {
			return fmt.Errorf("mempool: insert %s: %w", ev.TxHash, err)
		}

		if err := applyMempoolDomain(ctx, tx, ev); err != nil {
			if !isUniquenessViolation(err) {
				return fmt.Errorf("mempool: apply %s: %w", ev.TxHash, err)
			}
			if !isTxIndexViolation(err) {
				// Any other uniqueness violation goes straight to the skip
				// list without a retry (SPEC_FULL.md §4.5).
				skip.add(ev.TxHash)
				log.Warn("skipping tx after uniqueness violation", "tx_hash", ev.TxHash, "error", err)
				continue
			}
			// Only the domain-table application is retried with a freshly
			// drawn tx_index; the mempool row (keyed by tx_hash, already
			// committed in this transaction) is never re-inserted.
			if retryErr := applyMempoolDomain(ctx, tx, ev); retryErr != nil {
				if !isUniquenessViolation(retryErr) {
					return fmt.Errorf("mempool: apply %s (retry): %w", ev.TxHash, retryErr)
				}
				skip.add(ev.TxHash)
				log.Warn("skipping tx after repeated tx_index collision", "tx_hash", ev.TxHash)
			}
		}
	}

	return tx.Commit()
}

// cleanMempool implements SPEC_FULL.md §4.5 step 2: wipe the mempool view,
// every domain row stamped with the mempool sentinel, and unconfirmed
// assets_info rows, so a vanished or superseded unconfirmed transaction
// never lingers.
func cleanMempool(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM mempool`); err != nil {
		return fmt.Errorf("mempool: clear mempool: %w", err)
	}
	for _, table := range mempoolDomainTables {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE block_index = ?", table), MempoolBlockIndex); err != nil {
			return fmt.Errorf("mempool: clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assets_info WHERE confirmed = 0`); err != nil {
		return fmt.Errorf("mempool: clear unconfirmed assets_info: %w", err)
	}
	return nil
}

// applyMempoolDomain folds ev into domain state exactly as SPEC_FULL.md §4.5
// step 3 prescribes: the event is stamped with the mempool sentinel
// block_index and a randomised expanded tx_index, then run through the
// translator and the assets_info updater only — no balances, expirations,
// XCP-supply, address-events, or fairminter-counter side effects, and no
// messages row, since mempool events are never part of the durable total
// order. Called once per event, and again (with a freshly drawn tx_index)
// on the single retry a tx_index collision gets.
func applyMempoolDomain(ctx context.Context, tx *sql.Tx, mev MempoolEvent) error {
	ev := &Event{
		BlockIndex: MempoolBlockIndex,
		Event:      mev.Event,
		Category:   mev.Category,
		Command:    mev.Command,
		Bindings:   mev.Bindings.Clone(),
		TxHash:     mev.TxHash,
	}
	if _, ok := ev.Bindings.Get("tx_index"); ok {
		ev.Bindings.Set("tx_index", randomizedTxIndex(ev.Bindings.Int64Value("tx_index")))
	}

	if _, err := translateEvent(ctx, tx, ev); err != nil {
		return fmt.Errorf("translate: %w", err)
	}
	if err := applyAssetsInfo(ctx, tx, ev); err != nil {
		return fmt.Errorf("assets_info: %w", err)
	}
	return nil
}

func randomizedTxIndex(base int64) int64 {
	return base*1000 + rand.Int63n(100000000)
}

func insertMempoolRow(ctx context.Context, tx *sql.Tx, ev MempoolEvent) error {
	txIndex := randomizedTxIndex(ev.Bindings.Int64Value("tx_index"))
	bindingsJSON, err := bindingsToJSON(ev.Bindings)
	if err != nil {
		return fmt.Errorf("encode bindings: %w", err)
	}
	addresses := addressesIn(ev.Bindings)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mempool (tx_hash, tx_index, event, category, command, bindings, addresses, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TxHash, txIndex, ev.Event, ev.Category, string(ev.Command),
		bindingsJSON.String, strings.Join(addresses, " "), ev.Timestamp)
	return err
}

// isUniquenessViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure, as opposed to any other storage error that should
// abort the rebuild outright.
func isUniquenessViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// isTxIndexViolation reports whether a uniqueness violation was specifically
// the synthetic transactions.tx_index clash the retry-once path exists for
// (SPEC_FULL.md §4.5, scenario S5), as opposed to any other uniqueness
// violation (e.g. a duplicate tx_hash), which goes straight to the skip
// list with no retry.
func isTxIndexViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "tx_index")
}
