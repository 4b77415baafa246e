package domain

import (
	"errors"
	"math/rand"
	"time"
)

var (
	// ErrDeckEmpty is returned when drawing from an exhausted pile.
	ErrDeckEmpty = errors.New("deck is empty")
	// ErrNotEnoughPlayers signals that the game cannot continue with the remaining players.
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// Deck is the undrawn pile. The front of the slice is the top of the pile.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck returns an empty deck shuffling with rng, or a time-seeded source when rng is nil.
func NewDeck(rng *rand.Rand) *Deck {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Deck{rng: rng}
}

// Init replaces the pile with a shuffled copy of cards.
func (d *Deck) Init(cards []Card) {
	out := make([]Card, len(cards))
	copy(out, cards)
	d.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	d.cards = out
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckEmpty
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, nil
}

// Burn removes up to n cards from the top and returns them.
func (d *Deck) Burn(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	burned := append([]Card(nil), d.cards[:n]...)
	d.cards = d.cards[n:]
	return burned
}

// PutBottom places cards underneath the pile.
func (d *Deck) PutBottom(cards []Card) {
	d.cards = append(d.cards, cards...)
}

// Len returns the number of undrawn cards.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the pile, top first.
func (d *Deck) Cards() []Card {
	return append([]Card(nil), d.cards...)
}
