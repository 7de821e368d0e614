package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService err: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestFindOrCreate_SeedsDefaultBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	balance, err := svc.FindOrCreate(ctx, 1001, "Alice")
	if err != nil {
		t.Fatalf("FindOrCreate err: %v", err)
	}
	if balance != DefaultStartingBalance {
		t.Fatalf("expected seeded balance %d, got %d", DefaultStartingBalance, balance)
	}

	// Second call returns the existing row unchanged, not a re-seed.
	if _, err := svc.Adjust(ctx, 1001, 500); err != nil {
		t.Fatalf("Adjust err: %v", err)
	}
	balance, err = svc.FindOrCreate(ctx, 1001, "Alice")
	if err != nil {
		t.Fatalf("FindOrCreate (2nd) err: %v", err)
	}
	if balance != DefaultStartingBalance+500 {
		t.Fatalf("expected existing balance preserved at %d, got %d", DefaultStartingBalance+500, balance)
	}
}

func TestAdjust_RejectsNegativeResultWithoutMutating(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.FindOrCreate(ctx, 2002, "Bob"); err != nil {
		t.Fatalf("FindOrCreate err: %v", err)
	}

	if _, err := svc.Adjust(ctx, 2002, -(DefaultStartingBalance + 1)); !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("expected ErrInsufficientChips, got %v", err)
	}

	balance, err := svc.Balance(ctx, 2002)
	if err != nil {
		t.Fatalf("Balance err: %v", err)
	}
	if balance != DefaultStartingBalance {
		t.Fatalf("expected balance untouched by the rejected adjustment, got %d", balance)
	}
}

// TestAdjustMany_CommitMatchesHandStackDelta: the ledger commit after a
// settled hand equals the sum of every seat's ending stack minus its
// starting stack, with chips neither created nor destroyed.
func TestAdjustMany_CommitMatchesHandStackDelta(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []uint64{3001, 3002, 3003} {
		if _, err := svc.FindOrCreate(ctx, id, "player"); err != nil {
			t.Fatalf("FindOrCreate %d err: %v", id, err)
		}
	}

	// A hand where 3001 wins the whole pot contributed by 3002 and 3003.
	deltas := map[uint64]int64{
		3001: 200,
		3002: -100,
		3003: -100,
	}
	sum := int64(0)
	for _, d := range deltas {
		sum += d
	}
	if sum != 0 {
		t.Fatalf("test setup bug: deltas must net to zero, got %d", sum)
	}

	if err := svc.AdjustMany(ctx, deltas); err != nil {
		t.Fatalf("AdjustMany err: %v", err)
	}

	want := map[uint64]int64{
		3001: DefaultStartingBalance + 200,
		3002: DefaultStartingBalance - 100,
		3003: DefaultStartingBalance - 100,
	}
	for id, expected := range want {
		got, err := svc.Balance(ctx, id)
		if err != nil {
			t.Fatalf("Balance %d err: %v", id, err)
		}
		if got != expected {
			t.Fatalf("user %d: expected balance %d, got %d", id, expected, got)
		}
	}
}

func TestAdjustMany_AllOrNothingOnInsufficientChips(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.FindOrCreate(ctx, 4001, "Winner"); err != nil {
		t.Fatalf("FindOrCreate err: %v", err)
	}
	if _, err := svc.FindOrCreate(ctx, 4002, "Buster"); err != nil {
		t.Fatalf("FindOrCreate err: %v", err)
	}

	deltas := map[uint64]int64{
		4001: 5000,
		4002: -(DefaultStartingBalance + 1), // would go negative
	}
	if err := svc.AdjustMany(ctx, deltas); !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("expected ErrInsufficientChips, got %v", err)
	}

	balance, err := svc.Balance(ctx, 4001)
	if err != nil {
		t.Fatalf("Balance err: %v", err)
	}
	if balance != DefaultStartingBalance {
		t.Fatalf("expected winner's balance untouched after the transaction rolled back, got %d", balance)
	}
}

// TestSaveHand_PersistsWithStableHandID: a settled hand's record is
// addressable by a stable HandID independent of the backend's internal
// auto-increment row id.
func TestSaveHand_PersistsWithStableHandID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rec := HandRecord{
		TableID:    "table-abc",
		HandSeq:    7,
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
		Winners:    []uint64{5001},
		PotTotal:   300,
		RecordJSON: []byte(`{"note":"test hand"}`),
	}
	id, err := svc.SaveHand(ctx, rec)
	if err != nil {
		t.Fatalf("SaveHand err: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected a positive row id, got %d", id)
	}

	// A caller-assigned HandID is kept as given rather than replaced.
	rec2 := rec
	rec2.HandID = "fixed-hand-id"
	id2, err := svc.SaveHand(ctx, rec2)
	if err != nil {
		t.Fatalf("SaveHand (explicit HandID) err: %v", err)
	}
	if id2 == id {
		t.Fatalf("expected a distinct row id for the second hand")
	}
}
