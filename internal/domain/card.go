package domain

import "fmt"

// Rank identifies a spell stone. It selects the stone's effect and its
// multiplicity in the deck (rank r has r copies).
type Rank int

const (
	MinRank Rank = 1
	MaxRank Rank = 8

	// DeckSize is the number of stones in a full deck: 1+2+...+8.
	DeckSize = 36
)

// Valid reports whether r names one of the eight stones.
func (r Rank) Valid() bool {
	return r >= MinRank && r <= MaxRank
}

// Card is a single spell stone. Only Rank matters to the rules; the display
// attributes are looked up from the catalogue.
type Card struct {
	Rank Rank `json:"rank"`
}

// Stone holds the display attributes of a rank.
type Stone struct {
	Icon   string
	Name   string
	Effect string
}

var catalogue = [MaxRank + 1]Stone{
	1: {Icon: "🐉", Name: "Ancient Dragon", Effect: "roll a die, every other player loses 1-3 HP"},
	2: {Icon: "👻", Name: "Dark Wraith", Effect: "heal 1 HP"},
	3: {Icon: "🌈", Name: "Sweet Dreams", Effect: "roll a die, heal 1-3 HP"},
	4: {Icon: "🦉", Name: "Night Owl", Effect: "take a secret stone"},
	5: {Icon: "⚡", Name: "Lightning Storm", Effect: "both neighbours lose 1 HP"},
	6: {Icon: "🌀", Name: "Blizzard", Effect: "left neighbour loses 1 HP"},
	7: {Icon: "🔥", Name: "Fireball", Effect: "right neighbour loses 1 HP"},
	8: {Icon: "🧪", Name: "Magic Potion", Effect: "heal 1 HP"},
}

// StoneOf returns the display attributes for r. Unknown ranks yield the zero Stone.
func StoneOf(r Rank) Stone {
	if !r.Valid() {
		return Stone{}
	}
	return catalogue[r]
}

// Less orders cards by rank.
func (c Card) Less(other Card) bool {
	return c.Rank < other.Rank
}

// Short renders the card as "icon (rank)".
func (c Card) Short() string {
	return fmt.Sprintf("%s (%d)", StoneOf(c.Rank).Icon, c.Rank)
}

func (c Card) String() string {
	s := StoneOf(c.Rank)
	return fmt.Sprintf("%s %s (%d)", s.Icon, s.Name, c.Rank)
}

// FullDeck returns a fresh copy of the 36 stone multiset, sorted by rank.
func FullDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for r := MinRank; r <= MaxRank; r++ {
		for i := 0; i < int(r); i++ {
			deck = append(deck, Card{Rank: r})
		}
	}
	return deck
}
