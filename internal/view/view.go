// Package view is a pure projection from the table's complete ("god")
// state into per-viewer sanitized views. No method here takes a lock or
// performs I/O — every function is a plain value transform over a God
// state passed in by value.
package view

import "github.com/sabar2001/poker-prestige/card"

const hiddenCard = "hidden"

// PlayerState is one seated player's complete, unsanitized data as the
// table loop knows it. HoleCards is always populated here regardless of
// who will eventually see it — sanitization happens in PersonalView/
// ShowdownView, never earlier.
type PlayerState struct {
	SeatIndex   uint16
	PlayerID    uint64
	DisplayName string
	Stack       int64
	Wager       int64
	Folded      bool
	AllIn       bool
	Ready       bool
	HoleCards   []card.Card // 0 or 2 cards
}

// GodState is the table's complete authoritative view for one instant:
// everything the table loop knows, including the undealt deck's contents
// are deliberately NOT modeled here — View never carries a deck field at
// all, so there is nothing to accidentally leak.
type GodState struct {
	TableID        string
	Phase          string
	Sequence       uint64
	CommunityCards []card.Card
	PotTotal       int64
	CurrentBet     int64
	DealerSeat     uint16
	ActingSeat     uint16
	Players        []PlayerState
}

// PlayerView is one seat's sanitized, wire-ready projection.
type PlayerView struct {
	SeatIndex   uint16   `json:"seatIndex"`
	PlayerID    uint64   `json:"playerId"`
	DisplayName string   `json:"displayName"`
	Stack       int64    `json:"stack"`
	Wager       int64    `json:"wager"`
	Folded      bool     `json:"folded"`
	AllIn       bool     `json:"allIn"`
	Ready       bool     `json:"ready"`
	HoleCards   []string `json:"holeCards"`
}

// View is the sanitized projection delivered to exactly one recipient.
// There is no Deck field: the type cannot express leaking undealt cards,
// which makes that guarantee mechanically checkable rather than merely
// tested.
type View struct {
	TableID        string       `json:"tableId"`
	Phase          string       `json:"phase"`
	Sequence       uint64       `json:"sequence"`
	CommunityCards []string     `json:"communityCards"`
	PotTotal       int64        `json:"potTotal"`
	CurrentBet     int64        `json:"currentBet"`
	DealerSeat     uint16       `json:"dealerSeat"`
	ActingSeat     uint16       `json:"actingSeat"`
	Players        []PlayerView `json:"players"`
}

func cardStrings(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

// project builds a View for recipient, revealing every non-folded seat's
// hole cards when revealAll is set (in addition to the recipient's own,
// always revealed).
func project(god GodState, recipient uint64, revealAll bool) View {
	v := View{
		TableID:        god.TableID,
		Phase:          god.Phase,
		Sequence:       god.Sequence,
		CommunityCards: cardStrings(god.CommunityCards),
		PotTotal:       god.PotTotal,
		CurrentBet:     god.CurrentBet,
		DealerSeat:     god.DealerSeat,
		ActingSeat:     god.ActingSeat,
		Players:        make([]PlayerView, 0, len(god.Players)),
	}

	for _, p := range god.Players {
		pv := PlayerView{
			SeatIndex:   p.SeatIndex,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Stack:       p.Stack,
			Wager:       p.Wager,
			Folded:      p.Folded,
			AllIn:       p.AllIn,
			Ready:       p.Ready,
		}

		reveal := p.PlayerID == recipient || (revealAll && !p.Folded)
		switch {
		case len(p.HoleCards) == 0:
			pv.HoleCards = []string{}
		case reveal:
			pv.HoleCards = cardStrings(p.HoleCards)
		default:
			pv.HoleCards = make([]string, len(p.HoleCards))
			for i := range pv.HoleCards {
				pv.HoleCards[i] = hiddenCard
			}
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

// PersonalView returns recipient's own hole cards in full, with every
// other seat's hole cards replaced with "hidden" and the deck absent
// unconditionally (the View type has no such field).
func PersonalView(god GodState, recipient uint64) View {
	return project(god, recipient, false)
}

// ShowdownView reveals every non-folded player's hole cards to every
// recipient. It takes no recipient, so a folded player's hole cards stay
// "hidden" for everyone, that player included.
func ShowdownView(god GodState) View {
	return project(god, 0, true)
}

// Patch is a delta: only the fields that changed since the last view
// delivered to this recipient, plus the new (always strictly increasing)
// sequence counter.
type Patch struct {
	Sequence       uint64        `json:"sequenceId"`
	Phase          *string       `json:"phase,omitempty"`
	CommunityCards []string      `json:"communityCards,omitempty"`
	PotTotal       *int64        `json:"potTotal,omitempty"`
	CurrentBet     *int64        `json:"currentBet,omitempty"`
	DealerSeat     *uint16       `json:"dealerSeat,omitempty"`
	ActingSeat     *uint16       `json:"actingSeat,omitempty"`
	Players        []PlayerPatch `json:"players,omitempty"`
}

// PlayerPatch carries only the fields of one seat that changed.
type PlayerPatch struct {
	SeatIndex uint16   `json:"seatIndex"`
	Stack     *int64   `json:"stack,omitempty"`
	Wager     *int64   `json:"wager,omitempty"`
	Folded    *bool    `json:"folded,omitempty"`
	AllIn     *bool    `json:"allIn,omitempty"`
	Ready     *bool    `json:"ready,omitempty"`
	HoleCards []string `json:"holeCards,omitempty"`
}

// Delta computes the changed-fields-only patch between two already
// sanitized views for the same recipient.
func Delta(old, next View) Patch {
	p := Patch{Sequence: next.Sequence}

	if old.Phase != next.Phase {
		phase := next.Phase
		p.Phase = &phase
	}
	if !stringSliceEqual(old.CommunityCards, next.CommunityCards) {
		p.CommunityCards = next.CommunityCards
	}
	if old.PotTotal != next.PotTotal {
		v := next.PotTotal
		p.PotTotal = &v
	}
	if old.CurrentBet != next.CurrentBet {
		v := next.CurrentBet
		p.CurrentBet = &v
	}
	if old.DealerSeat != next.DealerSeat {
		v := next.DealerSeat
		p.DealerSeat = &v
	}
	if old.ActingSeat != next.ActingSeat {
		v := next.ActingSeat
		p.ActingSeat = &v
	}

	oldBySeat := make(map[uint16]PlayerView, len(old.Players))
	for _, pv := range old.Players {
		oldBySeat[pv.SeatIndex] = pv
	}
	for _, np := range next.Players {
		op, existed := oldBySeat[np.SeatIndex]
		pp := PlayerPatch{SeatIndex: np.SeatIndex}
		changed := !existed

		if !existed || op.Stack != np.Stack {
			v := np.Stack
			pp.Stack = &v
			changed = true
		}
		if !existed || op.Wager != np.Wager {
			v := np.Wager
			pp.Wager = &v
			changed = true
		}
		if !existed || op.Folded != np.Folded {
			v := np.Folded
			pp.Folded = &v
			changed = true
		}
		if !existed || op.AllIn != np.AllIn {
			v := np.AllIn
			pp.AllIn = &v
			changed = true
		}
		if !existed || op.Ready != np.Ready {
			v := np.Ready
			pp.Ready = &v
			changed = true
		}
		if !existed || !stringSliceEqual(op.HoleCards, np.HoleCards) {
			pp.HoleCards = np.HoleCards
			changed = true
		}
		if changed {
			p.Players = append(p.Players, pp)
		}
	}
	return p
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
