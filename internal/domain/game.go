package domain

import (
	"errors"
	"math/rand"
	"time"
)

// Phase represents the lifecycle stage of a game. Phases only move forward.
type Phase string

const (
	// PhaseLobby is the pre-game state where players can join.
	PhaseLobby Phase = "lobby"
	// PhasePlaying covers every round until a winner emerges.
	PhasePlaying Phase = "playing"
	// PhaseEnded is terminal; a new game must be created to play again.
	PhaseEnded Phase = "ended"
)

var phaseOrder = map[Phase]int{PhaseLobby: 0, PhasePlaying: 1, PhaseEnded: 2}

// SecretPoolSize is the number of stones set aside each round for the owl.
const SecretPoolSize = 4

// TurnState is the turn-local record of the current player's casts. It is
// reset whenever the turn moves or a round starts.
type TurnState struct {
	Slot  int
	Casts []Rank
}

// HasCast reports whether the turn holder cast successfully this turn.
func (t TurnState) HasCast() bool {
	return len(t.Casts) > 0
}

// Last returns the most recent rank cast this turn.
func (t TurnState) Last() (Rank, bool) {
	if len(t.Casts) == 0 {
		return 0, false
	}
	return t.Casts[len(t.Casts)-1], true
}

// Game owns the seating ring, the deck and the round bookkeeping of one game.
// It is a single-writer state machine and does no locking of its own.
type Game struct {
	Phase      Phase
	Round      int
	UsedCards  [MaxRank + 1]int
	SecretPool []Card

	ring *Ring
	deck *Deck
	rng  *rand.Rand
	turn TurnState
}

// NewGame returns an empty game in the lobby. rng drives shuffles and copy
// selection; nil means a time-seeded source.
func NewGame(rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Game{
		Phase: PhaseLobby,
		ring:  NewRing(),
		deck:  NewDeck(rng),
		rng:   rng,
		turn:  TurnState{Slot: -1},
	}
}

// Started reports whether the game left the lobby.
func (g *Game) Started() bool {
	return phaseOrder[g.Phase] > phaseOrder[PhaseLobby]
}

// Ended reports whether the game reached its terminal phase.
func (g *Game) Ended() bool {
	return g.Phase == PhaseEnded
}

// End moves the game to PhaseEnded.
func (g *Game) End() {
	g.setPhase(PhaseEnded)
}

func (g *Game) setPhase(p Phase) {
	if phaseOrder[p] < phaseOrder[g.Phase] {
		panic("game: phase cannot regress from " + string(g.Phase) + " to " + string(p))
	}
	g.Phase = p
}

// Deck exposes the undrawn pile.
func (g *Game) Deck() *Deck {
	return g.deck
}

// Current returns the turn holder, nil when nobody is seated.
func (g *Game) Current() *Player {
	return g.ring.Current()
}

// TurnState returns the turn-local cast record.
func (g *Game) TurnState() TurnState {
	return g.turn
}

// Players lists the seated players in turn order starting at the turn holder.
func (g *Game) Players() []*Player {
	return g.ring.Players()
}

// PlayerCount returns the number of seated players.
func (g *Game) PlayerCount() int {
	return g.ring.Len()
}

// Player finds the seated player for userID.
func (g *Game) Player(userID string) (*Player, bool) {
	for _, p := range g.ring.Players() {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

// Left returns the counter-clockwise neighbour of p.
func (g *Game) Left(p *Player) *Player {
	return g.ring.Prev(p.slot)
}

// Right returns the clockwise neighbour of p.
func (g *Game) Right(p *Player) *Player {
	return g.ring.Next(p.slot)
}

// Join seats a new player for userID behind the turn holder.
func (g *Game) Join(userID string) *Player {
	p := newPlayer(userID)
	g.ring.Insert(p)
	if g.turn.Slot < 0 {
		g.turn = TurnState{Slot: p.slot}
	}
	return p
}

// Leave unseats p and returns the hand it held. The hand is not returned to
// the deck; callers that want that use Deck.PutBottom. Callers decide on turn
// handling before calling Leave; if p still holds the turn it passes to its
// next neighbour without a draw.
func (g *Game) Leave(p *Player) []Card {
	held := p.Hand
	wasCurrent := g.ring.current == p.slot
	g.ring.Remove(p.slot)
	p.Hand = nil
	p.LastPlayed = nil
	if wasCurrent {
		g.turn = TurnState{Slot: g.ring.current}
	}
	return held
}

// Start deals a fresh round. It is called once to leave the lobby and again at
// every round boundary; scores carry over, everything else resets.
func (g *Game) Start() {
	n := g.ring.Len()
	if n == 0 {
		panic("game: start with no players")
	}

	g.deck.Init(FullDeck())
	g.UsedCards = [MaxRank + 1]int{}

	if n == 2 || n == 3 {
		for _, c := range g.deck.Burn(6 * (4 - n)) {
			g.UsedCards[c.Rank]++
		}
	}
	g.SecretPool = g.deck.Burn(SecretPoolSize)

	g.setPhase(PhasePlaying)
	g.Round++

	for _, p := range g.ring.Players() {
		p.HP = MaxHP
		p.LastPlayed = nil
		p.SecretCards = nil
		p.Hand = nil
		// a short deck is a round-end condition, not a deal failure
		_ = p.Draw(g.deck)
	}
	g.turn = TurnState{Slot: g.ring.current}
}

// Turn ends the current player's turn: their cast streak is cleared, their
// hand is refilled as far as the deck allows and the turn moves clockwise.
func (g *Game) Turn() error {
	cur := g.ring.Current()
	if cur == nil {
		return ErrNotEnoughPlayers
	}
	cur.LastPlayed = nil
	if err := cur.Draw(g.deck); err != nil && !errors.Is(err, ErrDeckEmpty) {
		return err
	}
	g.ring.Advance()
	g.turn = TurnState{Slot: g.ring.current}
	return nil
}

// Cast takes one stone of rank r from p's hand, counts it as used and records
// it in the turn state. It returns the hand index or -1 when p holds no such
// stone, in which case nothing changes. Effects are resolved by the caller.
func (g *Game) Cast(p *Player, r Rank) int {
	idx := p.Play(r, g.rng)
	if idx < 0 {
		return -1
	}
	g.UsedCards[r]++
	if g.turn.Slot == p.slot {
		g.turn.Casts = append(g.turn.Casts, r)
	}
	return idx
}

// TakeSecret moves the next pool stone into p's secret collection. It
// reports false when the pool is empty.
func (g *Game) TakeSecret(p *Player) (Card, bool) {
	if len(g.SecretPool) == 0 {
		return Card{}, false
	}
	c := g.SecretPool[0]
	g.SecretPool = g.SecretPool[1:]
	p.SecretCards = append(p.SecretCards, c)
	return c, true
}

// ClampHP forces every seated player's hit points into [0, MaxHP].
func (g *Game) ClampHP() {
	for _, p := range g.ring.Players() {
		p.HP = clamp(p.HP, 0, MaxHP)
	}
}

// HasEnded reports whether the round is over: the turn holder ran out of
// stones, the deck is empty or somebody dropped to zero hit points.
func (g *Game) HasEnded() bool {
	cur := g.ring.Current()
	if cur == nil {
		panic("game: round end check with no current player")
	}
	if len(cur.Hand) == 0 || g.deck.Len() == 0 {
		return true
	}
	for _, p := range g.ring.Players() {
		if p.HP == 0 {
			return true
		}
	}
	return false
}

// Scoring awards end-of-round points. It must be called exactly once per round
// end; a second call before the next Start double counts secret stones.
func (g *Game) Scoring() {
	if !g.HasEnded() {
		panic("game: scoring before the round ended")
	}
	cur := g.ring.Current()
	players := g.ring.Players()

	if len(cur.Hand) == 0 || cur.HP > 0 {
		cur.AddScore(3)
		if cur.HP > 0 {
			for _, p := range players {
				if p != cur && p.HP != 0 {
					p.AddScore(1)
				}
			}
		}
	} else {
		for _, p := range players {
			if p.HP != 0 {
				p.AddScore(1)
			}
		}
	}

	for _, p := range players {
		if p.HP != 0 {
			p.AddScore(len(p.SecretCards))
		}
	}
}

// HasWinner reports whether any seated player reached MaxScore.
func (g *Game) HasWinner() bool {
	for _, p := range g.ring.Players() {
		if p.Score == MaxScore {
			return true
		}
	}
	return false
}

// Leaders returns the players holding the highest score.
func (g *Game) Leaders() []*Player {
	var best []*Player
	top := -1
	for _, p := range g.ring.Players() {
		switch {
		case p.Score > top:
			top = p.Score
			best = []*Player{p}
		case p.Score == top:
			best = append(best, p)
		}
	}
	return best
}
