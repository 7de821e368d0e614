package holdem

import "testing"

func TestHeadsUp_DealerActsFirstAsSmallBlind(t *testing.T) {
	dealer := uint16(0)
	g, err := NewGame(Config{
		MaxPlayers:        2,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		Seed:              1,
		ForcedDealerChair: &dealer,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := g.Snapshot()
	if snap.DealerChair != 0 || snap.SmallBlindChair != 0 {
		t.Fatalf("expected heads-up dealer to double as small blind, got dealer=%d sb=%d", snap.DealerChair, snap.SmallBlindChair)
	}
	if snap.BigBlindChair != 1 {
		t.Fatalf("expected seat 1 as big blind, got %d", snap.BigBlindChair)
	}
	if snap.ActionChair != 0 {
		t.Fatalf("expected small blind/dealer to act first preflop heads-up, got %d", snap.ActionChair)
	}
}

func TestClosedBettingRound_AdvancesPhaseAndCollectsPot(t *testing.T) {
	dealer := uint16(0)
	g, err := NewGame(Config{
		MaxPlayers:        2,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		Seed:              1,
		ForcedDealerChair: &dealer,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	// Dealer/SB calls up to the big blind.
	if _, err := g.Act(0, PlayerActionTypeCall, 100); err != nil {
		t.Fatalf("sb call err: %v", err)
	}
	// Big blind checks, closing the preflop round.
	if _, err := g.Act(1, PlayerActionTypeCheck, 100); err != nil {
		t.Fatalf("bb check err: %v", err)
	}

	snap := g.Snapshot()
	if snap.Phase != PhaseTypeFlop {
		t.Fatalf("expected betting round closed and phase advanced to flop, got %v", snap.Phase)
	}
	if len(snap.CommunityCards) != 3 {
		t.Fatalf("expected 3 flop cards dealt, got %d", len(snap.CommunityCards))
	}
	if len(snap.Pots) != 1 || snap.Pots[0].Amount != 200 {
		t.Fatalf("expected a single 200-chip pot after collection, got %+v", snap.Pots)
	}
	for _, p := range snap.Players {
		if p.Bet != 0 {
			t.Fatalf("expected bets reset to 0 after collection, chair %d has bet %d", p.Chair, p.Bet)
		}
		if p.Stack != 900 {
			t.Fatalf("expected each stack reduced to 900 after the round, chair %d has %d", p.Chair, p.Stack)
		}
	}
}

func TestRaise_BelowMinRaiseRejected(t *testing.T) {
	dealer := uint16(0)
	g, err := NewGame(Config{
		MaxPlayers:        2,
		MinPlayers:        2,
		SmallBlind:        50,
		BigBlind:          100,
		Seed:              1,
		ForcedDealerChair: &dealer,
	})
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	// Preflop MinRaise is the big blind (100); a raise to 150 only adds 50.
	if _, err := g.Act(0, PlayerActionTypeRaise, 150); err == nil {
		t.Fatalf("expected under-min raise to be rejected")
	}

	// State must be untouched by the rejected attempt.
	snap := g.Snapshot()
	if snap.CurBet != 100 {
		t.Fatalf("expected curBet unchanged at 100 after rejected raise, got %d", snap.CurBet)
	}

	// A full raise (delta >= MinRaise) succeeds and reopens the action.
	if _, err := g.Act(0, PlayerActionTypeRaise, 300); err != nil {
		t.Fatalf("expected valid raise to succeed: %v", err)
	}
	snap = g.Snapshot()
	if snap.CurBet != 300 {
		t.Fatalf("expected curBet 300 after raise, got %d", snap.CurBet)
	}
	if snap.MinRaiseDelta != 200 {
		t.Fatalf("expected MinRaise 200 after a 200-chip raise, got %d", snap.MinRaiseDelta)
	}
	if snap.CurrentRaiser != 0 {
		t.Fatalf("expected chair 0 to be the current raiser, got %d", snap.CurrentRaiser)
	}
}
