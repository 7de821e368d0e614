package table

import (
	"testing"

	"github.com/coder/quartz"

	"github.com/sabar2001/poker-prestige/holdem"
	"github.com/sabar2001/poker-prestige/internal/view"
)

func newSequenceTestTable(t *testing.T) (*Table, map[uint64][]uint64) {
	t.Helper()

	delivered := make(map[uint64][]uint64)

	cfg := TableConfig{
		MaxPlayers: 6,
		SmallBlind: 50,
		BigBlind:   100,
		MinBuyIn:   100,
		MaxBuyIn:   1000,
	}
	game, err := holdem.NewGame(holdem.Config{
		MaxPlayers: int(cfg.MaxPlayers),
		MinPlayers: 2,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}

	tbl := &Table{
		ID:              "sequence_test",
		Config:          cfg,
		game:            game,
		phase:           PhaseWaiting,
		players:         make(map[uint64]*PlayerConn),
		seats:           make(map[uint16]uint64),
		handStartStacks: make(map[uint16]int64),
		pendingStandUps: make(map[uint64]bool),
		lastView:        make(map[uint64]view.View),
		clock:           quartz.NewMock(t),
		broadcast: func(userID uint64, event string, payload any) {
			switch p := payload.(type) {
			case view.View:
				delivered[userID] = append(delivered[userID], p.Sequence)
			case view.Patch:
				delivered[userID] = append(delivered[userID], p.Sequence)
			}
		},
	}

	for chair := uint16(0); chair < 2; chair++ {
		userID := uint64(chair + 1)
		if err := tbl.game.SitDown(chair, userID, 1000); err != nil {
			t.Fatalf("SitDown chair=%d err: %v", chair, err)
		}
		tbl.players[userID] = &PlayerConn{
			UserID: userID,
			Chair:  chair,
			Stack:  1000,
			Online: true,
		}
		tbl.seats[chair] = userID
	}

	return tbl, delivered
}

// broadcastSnapshotToAllLocked delivers STATE_PATCH payloads (view.Patch)
// after the first snapshot, so this test drives repeated full snapshots via
// sendSnapshotLocked to keep every delivery directly comparable as view.View.
func TestSequence_StrictlyIncreasingAcrossDeliveries(t *testing.T) {
	tbl, delivered := newSequenceTestTable(t)

	tbl.mu.Lock()
	tbl.sendSnapshotLocked(1)
	tbl.sendSnapshotLocked(2)
	tbl.sendSnapshotLocked(1)
	tbl.sendSnapshotLocked(2)
	tbl.mu.Unlock()

	for userID, seqs := range delivered {
		for i := 1; i < len(seqs); i++ {
			if seqs[i] <= seqs[i-1] {
				t.Fatalf("user %d: sequence not strictly increasing: %v", userID, seqs)
			}
		}
	}

	seen := make(map[uint64]bool)
	for _, seqs := range delivered {
		for _, s := range seqs {
			if seen[s] {
				t.Fatalf("sequence %d delivered more than once across recipients", s)
			}
			seen[s] = true
		}
	}
}

func TestSequence_SurvivesAcrossHandActions(t *testing.T) {
	tbl, delivered := newSequenceTestTable(t)

	tbl.mu.Lock()
	tbl.sendSnapshotLocked(1)
	tbl.sendSnapshotLocked(2)
	tbl.mu.Unlock()

	if err := tbl.game.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	tbl.mu.Lock()
	tbl.broadcastSnapshotToAllLocked()
	tbl.broadcastSnapshotToAllLocked()
	tbl.mu.Unlock()

	for userID, seqs := range delivered {
		if len(seqs) != 3 {
			t.Fatalf("user %d: expected 3 deliveries (1 snapshot + 2 patches), got %d (%v)", userID, len(seqs), seqs)
		}
		for i := 1; i < len(seqs); i++ {
			if seqs[i] <= seqs[i-1] {
				t.Fatalf("user %d: sequence not strictly increasing across the hand start: %v", userID, seqs)
			}
		}
	}
}
