package app

import (
	"errors"

	"spellstone/internal/domain"
)

// Rules holds the house rules a Service enforces on top of the engine.
type Rules struct {
	// FailedCastEndsTurn passes the turn after a failed cast the caster survived.
	// False keeps the turn with the caster until a pass or death.
	FailedCastEndsTurn bool
	// ReturnCardsOnLeave puts a leaver's hand back under the deck instead of discarding it.
	ReturnCardsOnLeave bool
}

// DefaultRules matches the classic table rules.
func DefaultRules() Rules {
	return Rules{FailedCastEndsTurn: true}
}

// Service contains spell stone use-cases operating on domain state.
type Service struct {
	roller Roller
	rules  Rules
}

// NewService constructs a Service with the provided roller or a time-seeded default.
func NewService(roller Roller, rules Rules) *Service {
	if roller == nil {
		roller = NewRandRoller(nil)
	}
	return &Service{roller: roller, rules: rules}
}

var (
	ErrNotInLobby    = errors.New("game not in lobby")
	ErrNotPlaying    = errors.New("game not in playing phase")
	ErrTooFewPlayers = errors.New("not enough players to start")
	ErrUnknownPlayer = errors.New("player not found")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrRankTooLow    = errors.New("rank lower than the last stone cast this turn")
	ErrInvalidRank   = errors.New("rank must be between 1 and 8")
	ErrMustCastFirst = errors.New("cast at least one stone before passing")
)

// Rules returns the house rules in force.
func (s *Service) Rules() Rules {
	return s.rules
}

// StartGame deals the first round of a game still in its lobby.
func (s *Service) StartGame(game *domain.Game) ([]Event, error) {
	if game.Started() {
		return nil, ErrNotInLobby
	}
	if game.PlayerCount() == 0 {
		return nil, ErrTooFewPlayers
	}
	game.Start()

	players := game.Players()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	return []Event{
		{Kind: EventGameStarted, Payload: GameStartedPayload{Players: ids}},
		roundStarted(game),
	}, nil
}

// SeatPlayer adds userID to game. Mid-game joiners are dealt a hand straight
// away, which needs at least one stone left in the deck.
func (s *Service) SeatPlayer(game *domain.Game, userID string) (*domain.Player, []Event, error) {
	late := game.Phase == domain.PhasePlaying
	if late && game.Deck().Len() == 0 {
		return nil, nil, domain.ErrDeckEmpty
	}
	pl := game.Join(userID)
	if late {
		if err := pl.Draw(game.Deck()); err != nil && !errors.Is(err, domain.ErrDeckEmpty) {
			return nil, nil, err
		}
	}
	return pl, []Event{{
		Kind:    EventPlayerJoined,
		Payload: PlayerJoinedPayload{UserID: userID, Players: game.PlayerCount(), Late: late},
	}}, nil
}

// RemovePlayer unseats userID. A leaver holding the turn hands it to its
// right neighbour without drawing.
func (s *Service) RemovePlayer(game *domain.Game, userID string) ([]Event, error) {
	pl, ok := game.Player(userID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	playing := game.Phase == domain.PhasePlaying
	held := game.Leave(pl)
	if playing && s.rules.ReturnCardsOnLeave {
		game.Deck().PutBottom(held)
	}

	payload := PlayerLeftPayload{UserID: userID, Players: game.PlayerCount()}
	if cur := game.Current(); cur != nil && playing {
		payload.NextTurnUserID = cur.UserID
	}
	return []Event{{Kind: EventPlayerLeft, Payload: payload}}, nil
}

// CastCard processes a cast of rank by actorUserID and emits resulting events.
// Rejected casts return an error and leave the game untouched; a cast of a
// stone the player does not hold is a failed casting, not an error.
func (s *Service) CastCard(game *domain.Game, actorUserID string, rank domain.Rank) ([]Event, error) {
	pl, err := s.turnHolder(game, actorUserID)
	if err != nil {
		return nil, err
	}
	if !rank.Valid() {
		return nil, ErrInvalidRank
	}
	if last, ok := game.TurnState().Last(); ok && rank < last {
		return nil, ErrRankTooLow
	}

	var events []Event
	if pl.Has(rank) {
		events = append(events, s.resolveCast(game, pl, rank))
	} else {
		events = append(events, s.failCast(game, pl, rank))
	}
	return append(events, s.settleRound(game)...), nil
}

// PassTurn ends the actor's turn after at least one successful cast.
func (s *Service) PassTurn(game *domain.Game, actorUserID string) ([]Event, error) {
	pl, err := s.turnHolder(game, actorUserID)
	if err != nil {
		return nil, err
	}
	if !game.TurnState().HasCast() {
		return nil, ErrMustCastFirst
	}

	drawn := min(domain.HandSize-len(pl.Hand), game.Deck().Len())
	if err := game.Turn(); err != nil {
		return nil, err
	}

	events := []Event{{
		Kind: EventTurnPassed,
		Payload: TurnPassedPayload{
			UserID:         pl.UserID,
			Drawn:          drawn,
			DeckLeft:       game.Deck().Len(),
			NextTurnUserID: game.Current().UserID,
		},
	}}
	return append(events, s.settleRound(game)...), nil
}

func (s *Service) turnHolder(game *domain.Game, userID string) (*domain.Player, error) {
	if game.Phase != domain.PhasePlaying {
		return nil, ErrNotPlaying
	}
	pl, ok := game.Player(userID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if game.Current() != pl {
		return nil, ErrNotYourTurn
	}
	return pl, nil
}

func (s *Service) resolveCast(game *domain.Game, pl *domain.Player, rank domain.Rank) Event {
	before := hpByUser(game)
	idx := game.Cast(pl, rank)
	payload := CardCastPayload{UserID: pl.UserID, Rank: rank, HandIndex: idx, HandLeft: len(pl.Hand)}

	switch rank {
	case 1:
		payload.Roll = s.roller.Roll()
		dmg := DieAmount(payload.Roll)
		for _, p := range game.Players() {
			if p != pl {
				p.Damage(dmg)
			}
		}
	case 2, 8:
		pl.Heal(1)
	case 3:
		payload.Roll = s.roller.Roll()
		pl.Heal(DieAmount(payload.Roll))
	case 4:
		_, payload.Secret = game.TakeSecret(pl)
	case 5:
		left, right := game.Left(pl), game.Right(pl)
		left.Damage(1)
		if left != right {
			right.Damage(1)
		}
	case 6:
		game.Left(pl).Damage(1)
	case 7:
		game.Right(pl).Damage(1)
	}
	game.ClampHP()

	for _, p := range game.Players() {
		if d := p.HP - before[p.UserID]; d != 0 {
			payload.Changes = append(payload.Changes, HPChange{UserID: p.UserID, Delta: d, HP: p.HP})
		}
	}
	return Event{Kind: EventCardCast, Payload: payload}
}

func (s *Service) failCast(game *domain.Game, pl *domain.Player, rank domain.Rank) Event {
	payload := CastFailedPayload{UserID: pl.UserID, Rank: rank, Damage: 1}
	if rank == 1 {
		payload.Roll = s.roller.Roll()
		payload.Damage = DieAmount(payload.Roll)
	}
	pl.Damage(payload.Damage)
	payload.HP = pl.HP
	payload.Died = !pl.Alive()

	// A dead caster keeps the turn so the round ends on them.
	if !payload.Died && s.rules.FailedCastEndsTurn {
		// Turn only fails on an empty ring and pl is seated.
		_ = game.Turn()
	}
	payload.NextTurnUserID = game.Current().UserID
	return Event{Kind: EventCastFailed, Payload: payload}
}

// settleRound scores a finished round and either ends the game or deals the next one.
func (s *Service) settleRound(game *domain.Game) []Event {
	if game.Current() == nil || !game.HasEnded() {
		return nil
	}
	game.Scoring()
	standings := Standings(game)
	events := []Event{{
		Kind:    EventRoundScored,
		Payload: RoundScoredPayload{Round: game.Round, Standings: standings},
	}}

	if game.HasWinner() {
		game.End()
		var winners []string
		for _, p := range game.Leaders() {
			winners = append(winners, p.UserID)
		}
		return append(events, Event{
			Kind:    EventGameEnded,
			Payload: GameEndedPayload{Winners: winners, Standings: standings},
		})
	}

	game.Start()
	return append(events, roundStarted(game))
}

// Standings snapshots every seated player's tally in turn order.
func Standings(game *domain.Game) []Standing {
	players := game.Players()
	out := make([]Standing, len(players))
	for i, p := range players {
		out[i] = Standing{UserID: p.UserID, HP: p.HP, Score: p.Score, Secrets: len(p.SecretCards)}
	}
	return out
}

func roundStarted(game *domain.Game) Event {
	return Event{
		Kind: EventRoundStarted,
		Payload: RoundStartedPayload{
			Round:           game.Round,
			FirstTurnUserID: game.Current().UserID,
			DeckLeft:        game.Deck().Len(),
			Standings:       Standings(game),
		},
	}
}

func hpByUser(game *domain.Game) map[string]int {
	out := make(map[string]int, game.PlayerCount())
	for _, p := range game.Players() {
		out[p.UserID] = p.HP
	}
	return out
}
