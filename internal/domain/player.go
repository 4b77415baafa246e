package domain

import (
	"math/rand"
)

const (
	// HandSize is the number of stones a player holds after drawing.
	HandSize = 5
	// MaxHP is the hit point ceiling; every round starts at MaxHP.
	MaxHP = 6
	// MaxScore is the score ceiling and also the winning score.
	MaxScore = 8
)

// Player is one seated participant. UserID is owned by the transport layer
// and opaque to the rules.
type Player struct {
	UserID      string
	Hand        []Card
	SecretCards []Card
	LastPlayed  *Card
	HP          int
	Score       int

	slot int
}

func newPlayer(userID string) *Player {
	return &Player{UserID: userID, HP: MaxHP, slot: -1}
}

// Slot returns the ring slot of the player, or -1 once it left the game.
func (p *Player) Slot() int {
	return p.slot
}

// Seated reports whether the player is still part of the ring.
func (p *Player) Seated() bool {
	return p.slot >= 0
}

// Has reports whether the hand holds a stone of rank r.
func (p *Player) Has(r Rank) bool {
	for _, c := range p.Hand {
		if c.Rank == r {
			return true
		}
	}
	return false
}

// Count returns how many stones of rank r the hand holds.
func (p *Player) Count(r Rank) int {
	n := 0
	for _, c := range p.Hand {
		if c.Rank == r {
			n++
		}
	}
	return n
}

// Play removes one stone of rank r from the hand and returns the hand index it
// was taken from. Copies are interchangeable, so rng picks among them. It
// returns -1 when the hand holds no such stone.
func (p *Player) Play(r Rank, rng *rand.Rand) int {
	var indices []int
	for i, c := range p.Hand {
		if c.Rank == r {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return -1
	}
	idx := indices[0]
	if len(indices) > 1 && rng != nil {
		idx = indices[rng.Intn(len(indices))]
	}
	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	p.LastPlayed = &card
	return idx
}

// Draw refills the hand up to HandSize. It returns ErrDeckEmpty when the deck
// ran out first; the cards drawn so far stay in the hand.
func (p *Player) Draw(d *Deck) error {
	for len(p.Hand) < HandSize {
		c, err := d.Draw()
		if err != nil {
			return err
		}
		p.Hand = append(p.Hand, c)
	}
	return nil
}

// Damage removes n hit points, never going below zero.
func (p *Player) Damage(n int) {
	p.HP = clamp(p.HP-n, 0, MaxHP)
}

// Heal adds n hit points, never exceeding MaxHP.
func (p *Player) Heal(n int) {
	p.HP = clamp(p.HP+n, 0, MaxHP)
}

// AddScore adds n points, never exceeding MaxScore.
func (p *Player) AddScore(n int) {
	p.Score = clamp(p.Score+n, 0, MaxScore)
}

// Alive reports whether the player still has hit points this round.
func (p *Player) Alive() bool {
	return p.HP > 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
