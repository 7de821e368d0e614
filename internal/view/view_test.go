package view

import (
	"testing"

	"github.com/sabar2001/poker-prestige/card"
)

func sampleGod() GodState {
	return GodState{
		TableID:        "t1",
		Phase:          "PreFlop",
		Sequence:       7,
		CommunityCards: []card.Card{},
		PotTotal:       30,
		CurrentBet:     20,
		DealerSeat:     0,
		ActingSeat:     2,
		Players: []PlayerState{
			{SeatIndex: 0, PlayerID: 1, DisplayName: "P1", Stack: 980, Wager: 20, HoleCards: []card.Card{card.CardSpadeA, card.CardSpadeK}},
			{SeatIndex: 1, PlayerID: 2, DisplayName: "P2", Stack: 990, Wager: 10, HoleCards: []card.Card{card.CardHeart2, card.CardHeart3}},
			{SeatIndex: 2, PlayerID: 3, DisplayName: "P3", Stack: 1000, Folded: true, HoleCards: []card.Card{card.CardClub4, card.CardClub5}},
		},
	}
}

func TestPersonalView_HidesOpponentHoleCardsAndOmitsDeck(t *testing.T) {
	god := sampleGod()
	v := PersonalView(god, 1)

	if v.Players[0].HoleCards[0] == hiddenCard {
		t.Fatalf("recipient's own hole cards must not be hidden")
	}
	for _, seat := range []int{1, 2} {
		for _, c := range v.Players[seat].HoleCards {
			if c != hiddenCard {
				t.Fatalf("seat %d hole card leaked to non-recipient: %v", seat, v.Players[seat].HoleCards)
			}
		}
	}
}

func TestShowdownView_RevealsOnlyNonFolded(t *testing.T) {
	god := sampleGod()
	v := ShowdownView(god)

	if v.Players[0].HoleCards[0] == hiddenCard || v.Players[1].HoleCards[0] == hiddenCard {
		t.Fatalf("non-folded players must be revealed at showdown")
	}
	if v.Players[2].HoleCards[0] != hiddenCard {
		t.Fatalf("folded player's hand must stay hidden even at showdown")
	}
}

func TestDelta_OnlyIncludesChangedFields(t *testing.T) {
	god := sampleGod()
	before := PersonalView(god, 1)

	god.Sequence = 8
	god.CurrentBet = 40
	god.Players[1].Stack = 950
	after := PersonalView(god, 1)

	patch := Delta(before, after)
	if patch.Sequence != 8 {
		t.Fatalf("expected sequence 8, got %d", patch.Sequence)
	}
	if patch.CurrentBet == nil || *patch.CurrentBet != 40 {
		t.Fatalf("expected currentBet patch of 40")
	}
	if patch.PotTotal != nil {
		t.Fatalf("potTotal did not change, must be omitted")
	}
	if len(patch.Players) != 1 || patch.Players[0].SeatIndex != 1 {
		t.Fatalf("expected exactly one changed player (seat 1), got %+v", patch.Players)
	}
}
