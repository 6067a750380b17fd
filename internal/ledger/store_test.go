package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/ledger-watcher/internal/projection"
)

// newTestPLS creates a bare-bones Primary Ledger Store file with just the
// messages table this package reads, mirroring the shape OpenStore expects
// from the upstream ledger process.
func newTestPLS(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "watchd-ledger-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "ledger.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw PLS file: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE messages (
			message_index INTEGER PRIMARY KEY,
			block_index   INTEGER NOT NULL,
			event         TEXT NOT NULL,
			category      TEXT NOT NULL,
			command       TEXT NOT NULL,
			bindings      TEXT NOT NULL,
			tx_hash       TEXT,
			event_hash    TEXT NOT NULL,
			timestamp     INTEGER
		)`); err != nil {
		t.Fatalf("create messages table: %v", err)
	}
	return path
}

func TestStoreNextEventReturnsAscendingOrder(t *testing.T) {
	path := newTestPLS(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`
		INSERT INTO messages (message_index, block_index, event, category, command, bindings, tx_hash, event_hash)
		VALUES
			(1, 100, 'CREDIT', 'credits', 'insert', '{"address":"addr1","asset":"XCP","quantity":100}', 'tx1', 'hash1'),
			(2, 100, 'DEBIT', 'debits', 'insert', '{"address":"addr1","asset":"XCP","quantity":40}', 'tx2', 'hash2')`); err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	store, err := OpenStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ev, ok, err := store.NextEvent(ctx, 0)
	if err != nil || !ok {
		t.Fatalf("NextEvent(0) = (%v, %v, %v)", ev, ok, err)
	}
	if ev.MessageIndex != 1 || ev.Event != "CREDIT" {
		t.Errorf("NextEvent(0) = %+v, want message_index=1 event=CREDIT", ev)
	}
	if ev.Bindings.StringValue("address") != "addr1" {
		t.Errorf("NextEvent(0) bindings address = %q, want addr1", ev.Bindings.StringValue("address"))
	}

	ev2, ok, err := store.NextEvent(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("NextEvent(1) = (%v, %v, %v)", ev2, ok, err)
	}
	if ev2.MessageIndex != 2 {
		t.Errorf("NextEvent(1).MessageIndex = %d, want 2", ev2.MessageIndex)
	}

	_, ok, err = store.NextEvent(ctx, 2)
	if err != nil {
		t.Fatalf("NextEvent(2): %v", err)
	}
	if ok {
		t.Error("NextEvent(2) ok = true, want false (no more events)")
	}
}

func TestStoreHeadEventHash(t *testing.T) {
	path := newTestPLS(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO messages (message_index, block_index, event, category, command, bindings, event_hash)
		VALUES (1, 100, 'CREDIT', 'credits', 'insert', '{}', 'abc123')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	store, err := OpenStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	hash, ok, err := store.HeadEventHash(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("HeadEventHash(1) = (%q, %v, %v)", hash, ok, err)
	}
	if hash != "abc123" {
		t.Errorf("HeadEventHash(1) = %q, want abc123", hash)
	}

	_, ok, err = store.HeadEventHash(ctx, 99)
	if err != nil {
		t.Fatalf("HeadEventHash(99): %v", err)
	}
	if ok {
		t.Error("HeadEventHash(99) ok = true, want false")
	}
}

// TestStoreNextEventSkipsMempoolRows covers §3.4's ephemeral mempool
// lifecycle: a mempool-tagged row shares the messages table and
// message_index sequence with confirmed rows (see TestStoreMempoolSnapshot
// below), but NextEvent must never hand one to the catch-up/follow loops as
// if it were a permanent, confirmed event.
func TestStoreNextEventSkipsMempoolRows(t *testing.T) {
	path := newTestPLS(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO messages (message_index, block_index, event, category, command, bindings, tx_hash, event_hash)
		VALUES
			(1, 100, 'CREDIT', 'credits', 'insert', '{"address":"addr1","asset":"XCP","quantity":100}', 'tx1', 'hash1'),
			(2, ?, 'CREDIT', 'credits', 'insert', '{"address":"addr2","asset":"XCP","quantity":5}', 'txmem', 'hashmem')`,
		projection.MempoolBlockIndex); err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	db.Close()

	store, err := OpenStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ev, ok, err := store.NextEvent(ctx, 1)
	if err != nil {
		t.Fatalf("NextEvent(1): %v", err)
	}
	if ok {
		t.Fatalf("NextEvent(1) = (%+v, true), want not ok (message 2 is mempool-only)", ev)
	}

	head, ok, err := store.HeadMessageIndex(ctx)
	if err != nil {
		t.Fatalf("HeadMessageIndex: %v", err)
	}
	if !ok || head != 1 {
		t.Errorf("HeadMessageIndex() = (%d, %v), want (1, true) excluding the mempool row", head, ok)
	}
}

func TestStoreMempoolSnapshot(t *testing.T) {
	path := newTestPLS(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO messages (message_index, block_index, event, category, command, bindings, tx_hash, event_hash, timestamp)
		VALUES (1, ?, 'CREDIT', 'credits', 'insert', '{"address":"addr1","asset":"XCP","quantity":5}', 'txmem', 'h', 12345)`,
		projection.MempoolBlockIndex); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	store, err := OpenStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	snapshot, err := store.MempoolSnapshot(ctx)
	if err != nil {
		t.Fatalf("MempoolSnapshot: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("MempoolSnapshot() len = %d, want 1", len(snapshot))
	}
	if snapshot[0].TxHash != "txmem" || snapshot[0].Timestamp != 12345 {
		t.Errorf("MempoolSnapshot()[0] = %+v, want tx_hash=txmem timestamp=12345", snapshot[0])
	}
}
