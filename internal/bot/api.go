package bot

import (
	"spellstone/internal/app"
	"spellstone/internal/domain"
)

// Move represents the decision made by the AI.
type Move struct {
	Pass bool
	Rank domain.Rank
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(view app.PlayerView) (Move, error)
	OnEvent(event app.Event)
}
