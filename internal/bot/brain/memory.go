package brain

import (
	"spellstone/internal/app"
	"spellstone/internal/domain"
)

// GameMemory stores the bot's private knowledge of the stones it cannot see:
// its own hand, the deck, the secret pool and the other players' secret stones.
type GameMemory struct {
	// Seen counts copies of every rank the bot can account for.
	Seen [domain.MaxRank + 1]int
	// Hidden is the number of stones the bot cannot see.
	Hidden int
	// HandSize is the size of the bot's own, invisible hand.
	HandSize int
	// Absent marks ranks the bot just failed to cast and has not drawn since.
	Absent [domain.MaxRank + 1]bool

	userID string
	round  int
}

// NewMemory initializes a fresh memory state for userID.
func NewMemory(userID string) *GameMemory {
	return &GameMemory{userID: userID}
}

// Reset clears the memory for a new round.
func (m *GameMemory) Reset() {
	m.Seen = [domain.MaxRank + 1]int{}
	m.Absent = [domain.MaxRank + 1]bool{}
	m.Hidden = 0
	m.HandSize = 0
}

// Observe recomputes what is visible from view.
func (m *GameMemory) Observe(view app.PlayerView) {
	if view.Round != m.round || view.HandSize > m.HandSize {
		// a new deal or a refill invalidates what we learned from failures
		m.Absent = [domain.MaxRank + 1]bool{}
	}
	m.round = view.Round
	m.HandSize = view.HandSize

	m.Seen = view.UsedCards
	for _, o := range view.Others {
		for _, c := range o.Hand {
			m.Seen[c.Rank]++
		}
	}
	for _, c := range view.SecretCards {
		m.Seen[c.Rank]++
	}

	seen := 0
	for r := domain.MinRank; r <= domain.MaxRank; r++ {
		m.Seen[r] = min(m.Seen[r], int(r))
		seen += m.Seen[r]
	}
	m.Hidden = domain.DeckSize - seen
}

// Record folds an event into the memory.
func (m *GameMemory) Record(ev app.Event) {
	switch p := ev.Payload.(type) {
	case app.CastFailedPayload:
		if p.UserID == m.userID && p.NextTurnUserID == m.userID {
			m.Absent[p.Rank] = true
		}
	case app.RoundStartedPayload:
		m.Reset()
		m.round = p.Round
	}
}

// Unseen returns how many copies of r may still be in hidden places.
func (m *GameMemory) Unseen(r domain.Rank) int {
	if !r.Valid() {
		return 0
	}
	return max(int(r)-m.Seen[r], 0)
}
