package bot

import (
	"spellstone/internal/app"
	"spellstone/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// Play asks the agent to calculate its move based on the current game state.
func (a *Agent) Play(game *domain.Game) (Move, error) {
	view, ok := app.ViewFor(game, a.ID)
	if !ok {
		// Agent is not part of this game
		return Move{Pass: true}, nil
	}

	move, err := a.Strategy.CalculateMove(view)
	if err != nil {
		return Move{Pass: true}, err
	}
	return move, nil
}

// OnGameEvent notifies the agent of a game event.
func (a *Agent) OnGameEvent(event app.Event) {
	a.Strategy.OnEvent(event)
}
