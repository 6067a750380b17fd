package projection

import (
	"context"
	"testing"
)

func mempoolCreditEvent(txHash, address string, quantity int64) MempoolEvent {
	b := NewBindings()
	b.Set("address", address)
	b.Set("asset", "XCP")
	b.Set("quantity", quantity)
	return MempoolEvent{
		TxHash: txHash, Event: "CREDIT", Category: "credits",
		Command: CommandInsert, Bindings: b, Timestamp: 1000,
	}
}

// TestRebuildMempoolProjectsUnconfirmedEvents checks that an unconfirmed
// CREDIT lands in the mempool view and in credits, stamped with the mempool
// sentinel block_index (balances are not touched by mempool application).
func TestRebuildMempoolProjectsUnconfirmedEvents(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	src := &fakeLedgerSource{mempool: []MempoolEvent{
		mempoolCreditEvent("tx1", "addr1", 42),
	}}
	skip := newSkipList(0)

	if err := RebuildMempool(ctx, db, src, skip, nil, nullLogger()); err != nil {
		t.Fatalf("RebuildMempool: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mempool`).Scan(&count); err != nil {
		t.Fatalf("count mempool rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("mempool rows = %d, want 1", count)
	}

	var creditBlockIndex int64
	if err := db.QueryRow(`SELECT block_index FROM credits WHERE address = ?`, "addr1").Scan(&creditBlockIndex); err != nil {
		t.Fatalf("read credits row: %v", err)
	}
	if creditBlockIndex != MempoolBlockIndex {
		t.Errorf("credits.block_index = %d, want mempool sentinel %d", creditBlockIndex, MempoolBlockIndex)
	}
}

func mempoolSendEvent(txHash, source, destination string) MempoolEvent {
	b := NewBindings()
	b.Set("source", source)
	b.Set("destination", destination)
	b.Set("asset", "XCP")
	b.Set("quantity", int64(1))
	return MempoolEvent{
		TxHash: txHash, Event: "SEND", Category: "sends",
		Command: CommandInsert, Bindings: b, Timestamp: 1000,
	}
}

// TestRebuildMempoolAddressesAreSpaceSeparated covers SPEC_FULL.md §4.5 step
// 3's "pre-compute a space-separated addresses string" requirement: a
// mempool row naming more than one address must join them with spaces, not
// commas.
func TestRebuildMempoolAddressesAreSpaceSeparated(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	skip := newSkipList(0)

	src := &fakeLedgerSource{mempool: []MempoolEvent{
		mempoolSendEvent("tx1", "addrA", "addrB"),
	}}
	if err := RebuildMempool(ctx, db, src, skip, nil, nullLogger()); err != nil {
		t.Fatalf("RebuildMempool: %v", err)
	}

	var addresses string
	if err := db.QueryRow(`SELECT addresses FROM mempool WHERE tx_hash = ?`, "tx1").Scan(&addresses); err != nil {
		t.Fatalf("read mempool.addresses: %v", err)
	}
	if addresses != "addrA addrB" {
		t.Errorf("mempool.addresses = %q, want %q", addresses, "addrA addrB")
	}
}

// TestRebuildMempoolDiscardsVanishedTransactions covers scenario S2's
// "clean mempool" step: a tx_hash present in one snapshot but absent from
// the next must leave no trace behind.
func TestRebuildMempoolDiscardsVanishedTransactions(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	skip := newSkipList(0)

	first := &fakeLedgerSource{mempool: []MempoolEvent{
		mempoolCreditEvent("tx1", "addr1", 42),
	}}
	if err := RebuildMempool(ctx, db, first, skip, nil, nullLogger()); err != nil {
		t.Fatalf("first RebuildMempool: %v", err)
	}

	second := &fakeLedgerSource{mempool: []MempoolEvent{
		mempoolCreditEvent("tx2", "addr2", 7),
	}}
	if err := RebuildMempool(ctx, db, second, skip, nil, nullLogger()); err != nil {
		t.Fatalf("second RebuildMempool: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mempool WHERE tx_hash = ?`, "tx1").Scan(&count); err != nil {
		t.Fatalf("count stale mempool rows: %v", err)
	}
	if count != 0 {
		t.Errorf("tx1's mempool row survived a rebuild that no longer lists it")
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM credits WHERE address = ?`, "addr1").Scan(&count); err != nil {
		t.Fatalf("count stale credits rows: %v", err)
	}
	if count != 0 {
		t.Errorf("tx1's credits row survived a rebuild that no longer lists it")
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM mempool WHERE tx_hash = ?`, "tx2").Scan(&count); err != nil {
		t.Fatalf("count tx2 mempool rows: %v", err)
	}
	if count != 1 {
		t.Errorf("tx2's mempool row missing after rebuild, count = %d", count)
	}
}

// TestRebuildMempoolSkipsListedTxHash covers the skip-list half of scenario
// S5: a tx_hash already recorded as problematic is never re-attempted.
func TestRebuildMempoolSkipsListedTxHash(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	skip := newSkipList(0)
	skip.add("bad-tx")

	src := &fakeLedgerSource{mempool: []MempoolEvent{
		mempoolCreditEvent("bad-tx", "addr1", 42),
	}}
	if err := RebuildMempool(ctx, db, src, skip, nil, nullLogger()); err != nil {
		t.Fatalf("RebuildMempool: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mempool`).Scan(&count); err != nil {
		t.Fatalf("count mempool rows: %v", err)
	}
	if count != 0 {
		t.Errorf("mempool rows = %d, want 0 (tx_hash was on the skip list)", count)
	}
}

func TestSkipListBoundsMemory(t *testing.T) {
	s := newSkipList(2)
	s.add("a")
	s.add("b")
	s.add("c")

	present := 0
	for _, h := range []string{"a", "b", "c"} {
		if s.contains(h) {
			present++
		}
	}
	if present != 2 {
		t.Errorf("skip list holds %d entries after adding 3 with capacity 2, want 2", present)
	}
}
