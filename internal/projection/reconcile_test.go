package projection

import (
	"context"
	"testing"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// fakeLedgerSource is an in-memory LedgerSource stand-in, analogous to the
// teacher's own in-package test doubles in internal/storage's tests.
type fakeLedgerSource struct {
	events   []*Event
	headHash map[int64]string
	mempool  []MempoolEvent
}

func (f *fakeLedgerSource) NextEvent(ctx context.Context, afterIndex int64) (*Event, bool, error) {
	for _, ev := range f.events {
		if ev.MessageIndex > afterIndex {
			return ev, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeLedgerSource) HeadEventHash(ctx context.Context, messageIndex int64) (string, bool, error) {
	h, ok := f.headHash[messageIndex]
	return h, ok, nil
}

func (f *fakeLedgerSource) MempoolSnapshot(ctx context.Context) ([]MempoolEvent, error) {
	return f.mempool, nil
}

func simpleCreditEvent(messageIndex, blockIndex int64, address string, quantity int64, hash string) *Event {
	b := NewBindings()
	b.Set("address", address)
	b.Set("asset", "XCP")
	b.Set("quantity", quantity)
	return &Event{
		MessageIndex: messageIndex, BlockIndex: blockIndex, Event: "CREDIT",
		Category: "credits", Command: CommandInsert, Bindings: b, EventHash: hash,
	}
}

// TestCatchUpAppliesEventsInOrder covers the §4.3 catch-up loop against a
// fake source exposing a short run of confirmed events.
func TestCatchUpAppliesEventsInOrder(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	src := &fakeLedgerSource{events: []*Event{
		simpleCreditEvent(1, 100, "addr1", 100, "h1"),
		simpleCreditEvent(2, 100, "addr1", 50, "h2"),
		simpleCreditEvent(3, 101, "addr2", 10, "h3"),
	}}

	skip := newSkipList(0)
	if err := CatchUp(ctx, db, src, skip, nil, nullLogger(), 1000); err != nil {
		t.Fatalf("CatchUp: %v", err)
	}

	if got := balanceOf(t, db, "addr1", "XCP"); got != 150 {
		t.Errorf("addr1 balance = %d, want 150", got)
	}
	if got := balanceOf(t, db, "addr2", "XCP"); got != 10 {
		t.Errorf("addr2 balance = %d, want 10", got)
	}

	head, ok, err := headMessageIndex(ctx, db)
	if err != nil || !ok || head != 3 {
		t.Errorf("headMessageIndex = (%d, %v, %v), want (3, true, nil)", head, ok, err)
	}
}

// TestReconcileRollsBackOnHashMismatch covers scenario S3: a PS head whose
// event_hash no longer matches the PLS (because of a reorg) must be
// unapplied, repeatedly if needed, until the fingerprints agree again.
func TestReconcileRollsBackOnHashMismatch(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	for _, ev := range []*Event{
		simpleCreditEvent(1, 100, "addr1", 100, "h1"),
		simpleCreditEvent(2, 101, "addr1", 50, "h2-stale"),
	} {
		if err := ApplyEvent(ctx, db, ev); err != nil {
			t.Fatalf("seed apply %d: %v", ev.MessageIndex, err)
		}
	}

	src := &fakeLedgerSource{headHash: map[int64]string{
		1: "h1",
		2: "h2-reorged",
	}}

	if err := Reconcile(ctx, db, src, nil, nullLogger()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	head, ok, err := headMessageIndex(ctx, db)
	if err != nil {
		t.Fatalf("headMessageIndex: %v", err)
	}
	if !ok || head != 1 {
		t.Fatalf("headMessageIndex after reconcile = (%d, %v), want (1, true)", head, ok)
	}
	if got := balanceOf(t, db, "addr1", "XCP"); got != 100 {
		t.Errorf("addr1 balance after reconcile = %d, want 100 (message 2 rolled back)", got)
	}
}

// TestCatchUpReconcilesBeforeApplying covers scenario S3 through the actual
// CatchUp/Start path rather than calling Reconcile directly: a PS head that
// has diverged from the ledger must be rolled back before CatchUp admits
// any new event, otherwise the new event would be applied on top of a
// stale, already-superseded row.
func TestCatchUpReconcilesBeforeApplying(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	for _, ev := range []*Event{
		simpleCreditEvent(1, 100, "addr1", 100, "h1"),
		simpleCreditEvent(2, 101, "addr1", 50, "h2-stale"),
	} {
		if err := ApplyEvent(ctx, db, ev); err != nil {
			t.Fatalf("seed apply %d: %v", ev.MessageIndex, err)
		}
	}

	src := &fakeLedgerSource{
		headHash: map[int64]string{1: "h1", 2: "h2-reorged"},
		events: []*Event{
			simpleCreditEvent(1, 100, "addr1", 100, "h1"),
			simpleCreditEvent(2, 101, "addr1", 999, "h2-reorged"),
		},
	}

	skip := newSkipList(0)
	if err := CatchUp(ctx, db, src, skip, nil, nullLogger(), 1000); err != nil {
		t.Fatalf("CatchUp: %v", err)
	}

	head, ok, err := headMessageIndex(ctx, db)
	if err != nil {
		t.Fatalf("headMessageIndex: %v", err)
	}
	if !ok || head != 2 {
		t.Fatalf("headMessageIndex after CatchUp = (%d, %v), want (2, true)", head, ok)
	}
	if got := balanceOf(t, db, "addr1", "XCP"); got != 1099 {
		t.Errorf("addr1 balance after CatchUp = %d, want 1099 (100 from block 100 + reorged 999)", got)
	}
}

// TestWatcherRollbackUnappliesInclusiveOfTarget covers scenario S4: rollback
// to block B must unapply every message with block_index >= B, leaving
// anything strictly before B untouched.
func TestWatcherRollbackUnappliesInclusiveOfTarget(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	for _, ev := range []*Event{
		simpleCreditEvent(1, 100, "addr1", 100, "h1"),
		simpleCreditEvent(2, 101, "addr1", 50, "h2"),
		simpleCreditEvent(3, 102, "addr1", 25, "h3"),
	} {
		if err := ApplyEvent(ctx, db, ev); err != nil {
			t.Fatalf("seed apply %d: %v", ev.MessageIndex, err)
		}
	}

	w := NewWatcher(db, nil, WatcherConfig{}, nullLogger())
	if err := w.Rollback(ctx, 101); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	head, ok, err := headMessageIndex(ctx, db)
	if err != nil {
		t.Fatalf("headMessageIndex: %v", err)
	}
	if !ok || head != 1 {
		t.Fatalf("headMessageIndex after rollback(101) = (%d, %v), want (1, true)", head, ok)
	}
	if got := balanceOf(t, db, "addr1", "XCP"); got != 100 {
		t.Errorf("balance after rollback(101) = %d, want 100 (only block 100's credit survives)", got)
	}
}

func nullLogger() *logging.Logger {
	return logging.Default()
}
