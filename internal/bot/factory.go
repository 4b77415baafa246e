package bot

import (
	"fmt"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelCautious BotLevel = iota
	BotLevelBold
)

// LevelFromDifficulty maps an identity difficulty onto a strategy level.
func LevelFromDifficulty(difficulty string) BotLevel {
	if difficulty == "hard" {
		return BotLevelBold
	}
	return BotLevelCautious
}

// NewBrain creates a new AI brain for userID based on the specified level.
func NewBrain(userID string, level BotLevel) (Brain, error) {
	switch level {
	case BotLevelCautious:
		return NewCautiousBot(userID), nil
	case BotLevelBold:
		return NewBoldBot(userID), nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}

// NewAgent creates an agent for a bot user, picking the strategy from its identity.
func NewAgent(userID string) (*Agent, error) {
	level := BotLevelCautious
	name := userID
	if identity, ok := GetBotConfig(userID); ok {
		level = LevelFromDifficulty(identity.Difficulty)
		name = identity.DisplayName
	}
	strategy, err := NewBrain(userID, level)
	if err != nil {
		return nil, err
	}
	return &Agent{ID: userID, Name: name, Strategy: strategy}, nil
}
