package holdem

import (
	"fmt"

	"github.com/chehsunliu/poker"

	"github.com/sabar2001/poker-prestige/card"
)

type bestHandResult struct {
	Score     uint32 // Larger is stronger.
	HandType  byte
	BestIndex [5]int // Best 5 cards indices in original 7 cards.
}

// kevMaxHandRank mirrors the Cactus Kev ranking convention that
// chehsunliu/poker implements internally: 1 is the best possible hand
// (royal flush), 7462 is the worst (7-5-4-3-2 high card).
const kevMaxHandRank = 7462

// EvalBestOf7 evaluates the best 5-card hand from 7 cards.
func EvalBestOf7(cards card.CardList) *bestHandResult {
	if len(cards) != 7 {
		panic(fmt.Sprintf("EvalBestOf7: expected 7 cards, got %d", len(cards)))
	}

	var best *bestHandResult
	idx := [5]int{}

	for a := 0; a < 3; a++ {
		for b := a + 1; b < 4; b++ {
			for c := b + 1; c < 5; c++ {
				for d := c + 1; d < 6; d++ {
					for e := d + 1; e < 7; e++ {
						idx[0], idx[1], idx[2], idx[3], idx[4] = a, b, c, d, e
						score, handType := eval5(cards[a], cards[b], cards[c], cards[d], cards[e])
						if best == nil || score > best.Score {
							best = &bestHandResult{
								Score:     score,
								HandType:  handType,
								BestIndex: idx,
							}
						}
					}
				}
			}
		}
	}
	return best
}

func eval5(a, b, c, d, e card.Card) (score uint32, handType byte) {
	cards := [5]card.Card{a, b, c, d, e}
	hand := make([]poker.Card, 5)
	for i, cc := range cards {
		hand[i] = toChehsunliu(cc)
	}

	rank := int(poker.Evaluate(hand))

	// Convert Kev-style rank (1 best .. 7462 worst) to "bigger is better".
	score = uint32(kevMaxHandRank + 1 - rank)
	handType = handTypeFromKevRank(rank)
	return score, handType
}

// toChehsunliu converts our suit/rank-nibble Card encoding into the
// rank-then-suit card string chehsunliu/poker expects (e.g. "Ah", "Td").
func toChehsunliu(c card.Card) poker.Card {
	var rankChar byte
	switch c.Rank() {
	case 1:
		rankChar = 'A'
	case 10:
		rankChar = 'T'
	case 11:
		rankChar = 'J'
	case 12:
		rankChar = 'Q'
	case 13:
		rankChar = 'K'
	default:
		rankChar = byte('0' + c.Rank())
	}

	var suitChar byte
	switch c.Suit() {
	case card.Spade:
		suitChar = 's'
	case card.Heart:
		suitChar = 'h'
	case card.Club:
		suitChar = 'c'
	case card.Diamond:
		suitChar = 'd'
	default:
		panic(fmt.Sprintf("invalid card suit for evaluation: %v", c))
	}

	return poker.NewCard(string([]byte{rankChar, suitChar}))
}

func handTypeFromKevRank(rank int) byte {
	switch {
	case rank == 1:
		return HandRoyalFlush
	case rank >= 1 && rank <= 10:
		return HandStraightFlush
	case rank <= 166:
		return HandFourOfKind
	case rank <= 322:
		return HandFullHouse
	case rank <= 1599:
		return HandFlush
	case rank <= 1609:
		return HandStraight
	case rank <= 2467:
		return HandThreeOfKind
	case rank <= 3325:
		return HandTwoPair
	case rank <= 6185:
		return HandOnePair
	default:
		return HandHighCard
	}
}

var handTypeNames = map[byte]string{
	HandHighCard:      "HIGH_CARD",
	HandOnePair:       "ONE_PAIR",
	HandTwoPair:       "TWO_PAIR",
	HandThreeOfKind:   "THREE_OF_A_KIND",
	HandStraight:      "STRAIGHT",
	HandFlush:         "FLUSH",
	HandFullHouse:     "FULL_HOUSE",
	HandFourOfKind:    "FOUR_OF_A_KIND",
	HandStraightFlush: "STRAIGHT_FLUSH",
	HandRoyalFlush:    "ROYAL_FLUSH",
}

// HandTypeName renders a hand-type byte constant as a wire-friendly label.
func HandTypeName(handType byte) string {
	if name, ok := handTypeNames[handType]; ok {
		return name
	}
	return "UNKNOWN"
}
