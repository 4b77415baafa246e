package bot

import (
	"spellstone/internal/app"
	"spellstone/internal/bot/brain"
	"spellstone/internal/domain"
)

// InferenceBot casts the rank with the best expected value given what it can
// infer about its own hidden hand.
type InferenceBot struct {
	tuning   Tuning
	memory   *brain.GameMemory
	estimate *brain.Estimator
}

// CautiousBot passes as soon as the odds turn against it.
type CautiousBot struct{ InferenceBot }

// BoldBot keeps casting on thin odds.
type BoldBot struct{ InferenceBot }

func newInferenceBot(userID string, tuning Tuning) InferenceBot {
	m := brain.NewMemory(userID)
	return InferenceBot{tuning: tuning, memory: m, estimate: brain.NewEstimator(m)}
}

// NewCautiousBot returns a CautiousBot playing as userID.
func NewCautiousBot(userID string) *CautiousBot {
	return &CautiousBot{newInferenceBot(userID, CautiousTuning)}
}

// NewBoldBot returns a BoldBot playing as userID.
func NewBoldBot(userID string) *BoldBot {
	return &BoldBot{newInferenceBot(userID, BoldTuning)}
}

// CalculateMove picks a rank to cast or passes when allowed and unattractive.
func (b *InferenceBot) CalculateMove(view app.PlayerView) (Move, error) {
	if !view.YourTurn || len(view.Castable) == 0 {
		return Move{Pass: true}, nil
	}
	b.memory.Observe(view)

	opponents := 0
	for _, o := range view.Others {
		if o.HP > 0 {
			opponents++
		}
	}

	best := view.Castable[0]
	bestValue := b.value(best, view.HP, opponents)
	for _, r := range view.Castable[1:] {
		if v := b.value(r, view.HP, opponents); v > bestValue {
			best, bestValue = r, v
		}
	}

	if view.CanPass && bestValue < b.tuning.PassThreshold {
		return Move{Pass: true}, nil
	}
	return Move{Rank: best}, nil
}

// OnEvent feeds table events into the memory.
func (b *InferenceBot) OnEvent(event app.Event) {
	b.memory.Record(event)
}

func (b *InferenceBot) value(r domain.Rank, hp, opponents int) float64 {
	p := b.estimate.HoldProbability(r)
	return p*b.tuning.gain(r, hp, opponents) - (1-p)*b.tuning.loss(r, hp) - b.tuning.RankPenalty*float64(r)
}
