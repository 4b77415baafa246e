package app

import "spellstone/internal/domain"

// OpponentView is what a player can see of someone else at the table. Hands
// are face out: everybody sees every hand but their own.
type OpponentView struct {
	UserID  string
	Hand    []domain.Card
	HP      int
	Score   int
	Secrets int
}

// PlayerView is the per-player menu state sent privately after every change.
type PlayerView struct {
	UserID        string
	Phase         domain.Phase
	Round         int
	CurrentUserID string
	YourTurn      bool
	Castable      []domain.Rank
	CanPass       bool
	HP            int
	Score         int
	HandSize      int
	SecretCards   []domain.Card
	Others        []OpponentView
	DeckLeft      int
	UsedCards     [domain.MaxRank + 1]int
}

// ViewFor builds userID's view of game. The own hand is reported by size only.
func ViewFor(game *domain.Game, userID string) (PlayerView, bool) {
	pl, ok := game.Player(userID)
	if !ok {
		return PlayerView{}, false
	}
	view := PlayerView{
		UserID:      userID,
		Phase:       game.Phase,
		Round:       game.Round,
		HP:          pl.HP,
		Score:       pl.Score,
		HandSize:    len(pl.Hand),
		SecretCards: append([]domain.Card(nil), pl.SecretCards...),
		DeckLeft:    game.Deck().Len(),
		UsedCards:   game.UsedCards,
	}
	if cur := game.Current(); cur != nil {
		view.CurrentUserID = cur.UserID
		view.YourTurn = cur == pl && game.Phase == domain.PhasePlaying
	}
	if view.YourTurn {
		ts := game.TurnState()
		from := domain.MinRank
		if last, ok := ts.Last(); ok {
			from = last
		}
		for r := from; r <= domain.MaxRank; r++ {
			view.Castable = append(view.Castable, r)
		}
		view.CanPass = ts.HasCast()
	}
	for _, p := range game.Players() {
		if p == pl {
			continue
		}
		view.Others = append(view.Others, OpponentView{
			UserID:  p.UserID,
			Hand:    append([]domain.Card(nil), p.Hand...),
			HP:      p.HP,
			Score:   p.Score,
			Secrets: len(p.SecretCards),
		})
	}
	return view, true
}
