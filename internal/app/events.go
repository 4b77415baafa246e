package app

import "spellstone/internal/domain"

// EventKind identifies emitted domain events for Nakama dispatch.
type EventKind string

const (
	EventGameCreated  EventKind = "game_created"
	EventPlayerJoined EventKind = "player_joined"
	EventPlayerLeft   EventKind = "player_left"
	EventGameStarted  EventKind = "game_started"
	EventRoundStarted EventKind = "round_started"
	EventCardCast     EventKind = "card_cast"
	EventCastFailed   EventKind = "cast_failed"
	EventTurnPassed   EventKind = "turn_passed"
	EventRoundScored  EventKind = "round_scored"
	EventGameEnded    EventKind = "game_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type GameCreatedPayload struct {
	RoomID    string
	SessionID string
	StarterID string
}

type PlayerJoinedPayload struct {
	UserID  string
	Players int
	Late    bool
}

type PlayerLeftPayload struct {
	UserID         string
	Players        int
	NextTurnUserID string
	GameOver       bool
}

type GameStartedPayload struct {
	Players []string
}

type RoundStartedPayload struct {
	Round           int
	FirstTurnUserID string
	DeckLeft        int
	Standings       []Standing
}

// HPChange records a player's hit points after an effect resolved.
type HPChange struct {
	UserID string
	Delta  int
	HP     int
}

type CardCastPayload struct {
	UserID    string
	Rank      domain.Rank
	HandIndex int
	HandLeft  int
	Roll      int // 0 when the stone rolls no die
	Secret    bool
	Changes   []HPChange
}

type CastFailedPayload struct {
	UserID         string
	Rank           domain.Rank
	Roll           int
	Damage         int
	HP             int
	Died           bool
	NextTurnUserID string
}

type TurnPassedPayload struct {
	UserID         string
	Drawn          int
	DeckLeft       int
	NextTurnUserID string
}

// Standing is one player's tally at a round boundary.
type Standing struct {
	UserID  string
	HP      int
	Score   int
	Secrets int
}

type RoundScoredPayload struct {
	Round     int
	Standings []Standing
}

type GameEndedPayload struct {
	Winners   []string
	Standings []Standing
	Killed    bool
}
