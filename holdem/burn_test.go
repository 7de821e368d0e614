package holdem

import "testing"

// TestDealCommunityCards_BurnsOneCardPerStreet drives a hand straight through
// to showdown via check/call and asserts the stock pile shrinks by exactly
// one burn per street plus the community cards actually dealt, on top of two
// hole cards per player.
func TestDealCommunityCards_BurnsOneCardPerStreet(t *testing.T) {
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

	const fullDeck = 52
	if err := g.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}
	// Two hole cards dealt to each of 2 players.
	if got, want := g.stockCards.Count(), fullDeck-4; got != want {
		t.Fatalf("expected %d cards left in stock after hole cards, got %d", want, got)
	}

	// Preflop: SB/dealer calls, BB checks, closing into the flop.
	if _, err := g.Act(0, PlayerActionTypeCall, 100); err != nil {
		t.Fatalf("sb call err: %v", err)
	}
	if _, err := g.Act(1, PlayerActionTypeCheck, 100); err != nil {
		t.Fatalf("bb check err: %v", err)
	}
	snap := g.Snapshot()
	if snap.Phase != PhaseTypeFlop || len(snap.CommunityCards) != 3 {
		t.Fatalf("expected flop with 3 community cards, got phase=%v cards=%d", snap.Phase, len(snap.CommunityCards))
	}
	// -4 hole, -1 burn, -3 flop.
	if got, want := g.stockCards.Count(), fullDeck-4-1-3; got != want {
		t.Fatalf("expected %d cards left in stock after the flop, got %d", want, got)
	}

	// Flop: both check, closing into the turn.
	if _, err := g.Act(1, PlayerActionTypeCheck, 0); err != nil {
		t.Fatalf("bb check err: %v", err)
	}
	if _, err := g.Act(0, PlayerActionTypeCheck, 0); err != nil {
		t.Fatalf("sb check err: %v", err)
	}
	snap = g.Snapshot()
	if snap.Phase != PhaseTypeTurn || len(snap.CommunityCards) != 4 {
		t.Fatalf("expected turn with 4 community cards, got phase=%v cards=%d", snap.Phase, len(snap.CommunityCards))
	}
	// -4 hole, -2 burns, -4 flop+turn.
	if got, want := g.stockCards.Count(), fullDeck-4-2-4; got != want {
		t.Fatalf("expected %d cards left in stock after the turn, got %d", want, got)
	}

	// Turn: both check, closing into the river.
	if _, err := g.Act(1, PlayerActionTypeCheck, 0); err != nil {
		t.Fatalf("bb check err: %v", err)
	}
	if _, err := g.Act(0, PlayerActionTypeCheck, 0); err != nil {
		t.Fatalf("sb check err: %v", err)
	}
	snap = g.Snapshot()
	if snap.Phase != PhaseTypeRiver || len(snap.CommunityCards) != 5 {
		t.Fatalf("expected river with 5 community cards, got phase=%v cards=%d", snap.Phase, len(snap.CommunityCards))
	}
	// -4 hole, -3 burns, -5 flop+turn+river.
	if got, want := g.stockCards.Count(), fullDeck-4-3-5; got != want {
		t.Fatalf("expected %d cards left in stock after the river, got %d", want, got)
	}
}

// TestDealCommunityCards_DirectShowdownBurnsThroughSkippedStreets pins the
// all-in runout path: an all-in that settles betting before any community
// card is dealt still burns once per street on its way to a full 5-card
// board, exactly as the incremental path would.
func TestDealCommunityCards_DirectShowdownBurnsThroughSkippedStreets(t *testing.T) {
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

	const fullDeck = 52
	if _, err := g.Act(0, PlayerActionTypeAllin, 1000); err != nil {
		t.Fatalf("dealer all-in err: %v", err)
	}
	if _, err := g.Act(1, PlayerActionTypeAllin, 1000); err != nil {
		t.Fatalf("bb all-in err: %v", err)
	}

	snap := g.Snapshot()
	if len(snap.CommunityCards) != 5 {
		t.Fatalf("expected a full 5-card runout after both players shoved, got %d", len(snap.CommunityCards))
	}
	// -4 hole, -3 burns (one per street), -5 community, all in a single jump.
	if got, want := g.stockCards.Count(), fullDeck-4-3-5; got != want {
		t.Fatalf("expected %d cards left in stock after the direct runout, got %d", want, got)
	}
}
