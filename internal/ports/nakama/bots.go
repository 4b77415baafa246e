package nakama

import (
	"errors"

	"spellstone/internal/app"
	"spellstone/internal/app/lobby"
	"spellstone/internal/bot"
	"spellstone/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

func (mh *matchHandler) processBots(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	session, ok := mh.module.manager.CurrentGame(state.RoomID)
	if !ok {
		state.LastSinglePlayerTick = 0
		state.BotWaitUntil = 0
		return
	}

	var phase domain.Phase
	current := ""
	session.Inspect(func(game *domain.Game) {
		phase = game.Phase
		if cur := game.Current(); cur != nil {
			current = cur.UserID
		}
	})

	switch phase {
	case domain.PhaseLobby:
		mh.autoFill(state, dispatcher, logger, session)
	case domain.PhasePlaying:
		state.LastSinglePlayerTick = 0
		if !bot.IsBot(current) {
			state.BotWaitUntil = 0
			return
		}
		mh.botTurn(state, dispatcher, logger, session, current)
	}
}

// autoFill seats bots up to MinPlayers once a single human waited long enough.
func (mh *matchHandler) autoFill(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, session *lobby.Session) {
	cfg := mh.module.cfg
	members := session.Members()
	humans := 0
	for _, id := range members {
		if !bot.IsBot(id) {
			humans++
		}
	}
	if humans != 1 || len(members) >= cfg.MinPlayers {
		state.LastSinglePlayerTick = 0
		return
	}

	if state.LastSinglePlayerTick == 0 {
		state.LastSinglePlayerTick = state.Tick
		logger.Debug("processBots: Single player detected in room %s, starting auto-fill timer.", state.RoomID)
	}
	if state.Tick-state.LastSinglePlayerTick < int64(cfg.BotAutoFillDelaySec) {
		return
	}
	state.LastSinglePlayerTick = 0

	var events []app.Event
	seated := len(members)
	for i := 0; seated < cfg.MinPlayers && i < 2*cfg.MaxPlayers; i++ {
		identity := bot.GetBotIdentity(i)
		if _, err := mh.module.manager.JoinGame(identity.UserID, state.RoomID); err != nil {
			if errors.Is(err, lobby.ErrAlreadyJoined) {
				continue
			}
			logger.Warn("processBots: Bot %s could not join room %s: %v", identity.UserID, state.RoomID, err)
			break
		}
		seated++

		agent, err := bot.NewAgent(identity.UserID)
		if err != nil {
			logger.Error("processBots: Failed to create bot agent for %s: %v", identity.UserID, err)
		} else {
			state.Bots[identity.UserID] = agent
		}
		logger.Info("processBots: Added bot %s (%s) to room %s", identity.Username, identity.UserID, state.RoomID)
		events = append(events, joinedEvent(session, identity.UserID))
	}
	if len(events) > 0 {
		mh.dispatch(state, dispatcher, logger, session, events)
	}
}

// botTurn lets the bot holding the turn act once its random delay elapsed.
// One cast or pass is made per elapsed delay.
func (mh *matchHandler) botTurn(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, session *lobby.Session, botID string) {
	cfg := mh.module.cfg
	if state.BotWaitUntil == 0 {
		delay := cfg.BotMinDelaySec
		if cfg.BotMaxDelaySec > cfg.BotMinDelaySec {
			delay += state.rng.Intn(cfg.BotMaxDelaySec - cfg.BotMinDelaySec + 1)
		}
		state.BotWaitUntil = state.Tick + int64(delay)
		logger.Debug("processBots: Bot %s will act at tick %d (current %d)", botID, state.BotWaitUntil, state.Tick)
	}
	if state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = 0

	agent, exists := state.Bots[botID]
	if !exists {
		var err error
		agent, err = bot.NewAgent(botID)
		if err != nil {
			logger.Error("processBots: Failed to create fallback agent: %v", err)
			return
		}
		state.Bots[botID] = agent
	}

	var move bot.Move
	var view app.PlayerView
	var playErr error
	session.Inspect(func(game *domain.Game) {
		move, playErr = agent.Play(game)
		view, _ = app.ViewFor(game, botID)
	})
	if playErr != nil {
		logger.Error("processBots: Bot %s failed to calculate move: %v", botID, playErr)
	}

	events, err := mh.applyBotMove(state, botID, move)
	if err != nil {
		logger.Warn("processBots: Bot %s move %+v rejected: %v", botID, move, err)
		fallback := bot.Move{Pass: true}
		if !view.CanPass && len(view.Castable) > 0 {
			fallback = bot.Move{Rank: view.Castable[0]}
		}
		if events, err = mh.applyBotMove(state, botID, fallback); err != nil {
			logger.Error("processBots: Bot %s fallback move failed: %v", botID, err)
			return
		}
	}
	mh.dispatch(state, dispatcher, logger, session, events)
}

func (mh *matchHandler) applyBotMove(state *MatchState, botID string, move bot.Move) ([]app.Event, error) {
	if move.Pass {
		return mh.module.manager.Pass(botID, state.RoomID)
	}
	return mh.module.manager.Cast(botID, state.RoomID, move.Rank)
}
