package table

import (
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/sabar2001/poker-prestige/holdem"
	"github.com/sabar2001/poker-prestige/internal/view"
)

func newLifecycleTestTable(t *testing.T, mockClock *quartz.Mock) *Table {
	t.Helper()

	cfg := TableConfig{
		MaxPlayers:        6,
		SmallBlind:        50,
		BigBlind:          100,
		MinBuyIn:          100,
		MaxBuyIn:          1000,
		CountdownDuration: 2 * time.Second,
		PayoutDuration:    2 * time.Second,
		BanterDuration:    2 * time.Second,
	}

	game, err := holdem.NewGame(holdem.Config{
		MaxPlayers: int(cfg.MaxPlayers),
		MinPlayers: 2,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}

	tbl := &Table{
		ID:              "lifecycle_test",
		Config:          cfg,
		game:            game,
		phase:           PhaseWaiting,
		players:         make(map[uint64]*PlayerConn),
		seats:           make(map[uint16]uint64),
		handStartStacks: make(map[uint16]int64),
		pendingStandUps: make(map[uint64]bool),
		lastView:        make(map[uint64]view.View),
		clock:           mockClock,
		broadcast:       func(uint64, string, any) {},
	}

	for chair := uint16(0); chair < 2; chair++ {
		userID := uint64(chair + 1)
		stack := int64(1000)
		if err := tbl.game.SitDown(chair, userID, stack); err != nil {
			t.Fatalf("SitDown chair=%d err: %v", chair, err)
		}
		tbl.players[userID] = &PlayerConn{
			UserID: userID,
			Chair:  chair,
			Stack:  stack,
			Ready:  true,
			Online: true,
		}
		tbl.seats[chair] = userID
	}

	return tbl
}

func TestTick_WaitingToStartingToDealing(t *testing.T) {
	mockClock := quartz.NewMock(t)
	tbl := newLifecycleTestTable(t, mockClock)

	tbl.tick()
	if tbl.Phase() != PhaseStarting {
		t.Fatalf("expected ready table to enter Starting countdown, got %v", tbl.Phase())
	}

	mockClock.Advance(3 * time.Second)
	tbl.tick()

	if tbl.Phase() != PhasePreFlop {
		t.Fatalf("expected countdown expiry to deal into PreFlop, got %v", tbl.Phase())
	}
	if tbl.round != 1 {
		t.Fatalf("expected round to increment to 1, got %d", tbl.round)
	}
	snap := tbl.game.Snapshot()
	if snap.ActionChair == holdem.InvalidChair {
		t.Fatalf("expected a valid action chair after dealing")
	}
}

func TestTick_StartingDoesNotDealBeforeCountdownExpires(t *testing.T) {
	mockClock := quartz.NewMock(t)
	tbl := newLifecycleTestTable(t, mockClock)

	tbl.tick()
	if tbl.Phase() != PhaseStarting {
		t.Fatalf("expected Starting, got %v", tbl.Phase())
	}

	mockClock.Advance(1 * time.Second)
	tbl.tick()

	if tbl.Phase() != PhaseStarting {
		t.Fatalf("expected countdown still pending before its deadline, got %v", tbl.Phase())
	}
	if tbl.round != 0 {
		t.Fatalf("expected no hand dealt yet, round=%d", tbl.round)
	}
}

func TestTick_PayoutAnimationToSocialBanterToWaiting(t *testing.T) {
	mockClock := quartz.NewMock(t)
	tbl := newLifecycleTestTable(t, mockClock)

	tbl.mu.Lock()
	tbl.phase = PhasePayoutAnimation
	tbl.phaseDeadline = mockClock.Now().Add(tbl.Config.PayoutDuration)
	tbl.mu.Unlock()

	mockClock.Advance(3 * time.Second)
	tbl.tick()
	if tbl.Phase() != PhaseSocialBanter {
		t.Fatalf("expected payout animation to give way to social banter, got %v", tbl.Phase())
	}

	mockClock.Advance(3 * time.Second)
	tbl.tick()
	if tbl.Phase() != PhaseWaiting {
		t.Fatalf("expected banter phase to return to Waiting with 2 seated players, got %v", tbl.Phase())
	}

	for _, player := range tbl.players {
		if player.Ready {
			t.Fatalf("expected ready flags reset for the next hand, userId=%d still ready", player.UserID)
		}
	}
}
