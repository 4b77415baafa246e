package brain

import (
	"spellstone/internal/domain"
)

// Estimator provides probabilistic insights based on memory.
type Estimator struct {
	Memory *GameMemory
}

// NewEstimator creates a new reasoning engine.
func NewEstimator(m *GameMemory) *Estimator {
	return &Estimator{Memory: m}
}

// HoldProbability returns the chance that the bot's own hand holds at least
// one stone of rank r. The hand is a uniform draw of HandSize stones from the
// Hidden ones, so the miss chance is hypergeometric.
func (e *Estimator) HoldProbability(r domain.Rank) float64 {
	m := e.Memory
	if !r.Valid() || m.Absent[r] || m.HandSize == 0 {
		return 0
	}
	copies := m.Unseen(r)
	if copies == 0 {
		return 0
	}
	if m.Hidden-copies < m.HandSize {
		return 1
	}

	miss := 1.0
	for i := 0; i < m.HandSize; i++ {
		miss *= float64(m.Hidden-copies-i) / float64(m.Hidden-i)
	}
	return 1 - miss
}

// ExpectedCopies returns the expected number of rank r stones in hand.
func (e *Estimator) ExpectedCopies(r domain.Rank) float64 {
	m := e.Memory
	if !r.Valid() || m.Absent[r] || m.Hidden == 0 {
		return 0
	}
	return float64(m.HandSize) * float64(m.Unseen(r)) / float64(m.Hidden)
}
