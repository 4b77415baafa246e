package nakama

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"spellstone/internal/app"
	"spellstone/internal/app/lobby"
	"spellstone/internal/bot"
	"spellstone/internal/domain"
	"spellstone/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const phaseIdle = "idle" // label phase of a room without a game

// MatchState holds the authoritative runtime state of one chat room. Game
// state lives in the module-wide registry; this is only per-room plumbing.
type MatchState struct {
	RoomID               string                      `json:"room_id"`
	MatchID              string                      `json:"match_id"`
	Tick                 int64                       `json:"tick"`
	Presences            map[string]runtime.Presence `json:"-"`                       // Map UserId -> Presence for targeted messaging
	Names                map[string]string           `json:"-"`                       // Display names resolved on join
	Bots                 map[string]*bot.Agent       `json:"-"`                       // Active bot agents of the current game
	BotWaitUntil         int64                       `json:"bot_wait_until"`          // Tick when the bot should act
	LastSinglePlayerTick int64                       `json:"last_single_player_tick"` // Tick when a single player started waiting
	TurnUserID           string                      `json:"turn_user_id"`            // Last announced turn holder
	TurnRound            int                         `json:"turn_round"`

	label string
	rng   *rand.Rand
}

func (ms *MatchState) name(userID string) string {
	if n := ms.Names[userID]; n != "" {
		return n
	}
	if n := bot.GetBotDisplayName(userID); n != "" {
		return n
	}
	return userID
}

type matchHandler struct {
	module   *Module
	accounts ports.AccountPort
}

func newMatchHandler(m *Module, accounts ports.AccountPort) *matchHandler {
	return &matchHandler{module: m, accounts: accounts}
}

// MatchInit binds the match to the room passed in params.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	roomID, _ := params[matchParamRoomID].(string)
	if roomID == "" {
		roomID = matchID
	}
	if roomID == "" {
		logger.Error("MatchInit: No room id in params or context.")
		return nil, 0, ""
	}

	state := &MatchState{
		RoomID:    roomID,
		MatchID:   matchID,
		Presences: make(map[string]runtime.Presence),
		Names:     make(map[string]string),
		Bots:      make(map[string]*bot.Agent),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	label, err := mh.buildLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.label = label

	logger.Info("MatchInit: Room %s bound to match %s.", roomID, matchID)
	return state, matchTickRate, label
}

// MatchJoinAttempt lets anybody into the room; seating is an explicit JOIN.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	if _, ok := state.(*MatchState); !ok {
		return state, false, "state not found"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	var fresh []string
	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p
		if _, known := matchState.Names[userID]; !known {
			matchState.Names[userID] = p.GetUsername()
			fresh = append(fresh, userID)
		}
	}
	mh.resolveNames(ctx, logger, matchState, fresh)

	session, hasGame := mh.module.manager.CurrentGame(matchState.RoomID)
	for _, p := range presences {
		logger.Debug("MatchJoin: User %s entered room %s.", p.GetUserId(), matchState.RoomID)
		mh.sendRoomState(matchState, dispatcher, logger, p.GetUserId())
		if hasGame {
			mh.sendView(matchState, dispatcher, logger, session, p.GetUserId())
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave treats leaving the room as leaving its game.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		if _, seated := mh.module.manager.PlayerForUserInRoom(userID, matchState.RoomID); seated {
			logger.Debug("MatchLeave: Seated user %s left room %s.", userID, matchState.RoomID)
			mh.leaveGame(matchState, dispatcher, logger, userID)
		}
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Room %s is empty, terminating match.", matchState.RoomID)
		mh.closeRoom(matchState, logger)
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		userID := msg.GetUserId()
		switch msg.GetOpCode() {
		case OpNewGame:
			mh.handleNewGame(matchState, dispatcher, logger, userID)
		case OpJoin:
			mh.handleJoin(matchState, dispatcher, logger, userID)
		case OpLeave:
			mh.leaveGame(matchState, dispatcher, logger, userID)
		case OpStartGame:
			mh.handleStartGame(matchState, dispatcher, logger, userID)
		case OpCast:
			mh.handleCast(matchState, dispatcher, logger, userID, msg.GetData())
		case OpPass:
			mh.handlePass(matchState, dispatcher, logger, userID)
		case OpInfo:
			mh.handleInfo(matchState, dispatcher, logger, userID)
		case OpKill:
			mh.handleKill(matchState, dispatcher, logger, userID)
		case OpView:
			mh.handleView(matchState, dispatcher, logger, userID)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	if mh.module.cfg.BotsEnabled {
		mh.processBots(matchState, dispatcher, logger)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated, grace %d seconds.", graceSeconds)
	if matchState, ok := state.(*MatchState); ok {
		mh.closeRoom(matchState, logger)
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

func (mh *matchHandler) handleNewGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	session, err := mh.module.manager.NewGame(state.RoomID, userID)
	if err != nil {
		logger.Warn("NewGame: User %s could not open a game in room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}

	state.Bots = make(map[string]*bot.Agent)
	state.BotWaitUntil = 0
	state.LastSinglePlayerTick = 0
	state.TurnUserID = ""
	state.TurnRound = 0

	logger.Info("NewGame: User %s opened game %s in room %s.", userID, session.ID, state.RoomID)
	events := []app.Event{{
		Kind:    app.EventGameCreated,
		Payload: app.GameCreatedPayload{RoomID: state.RoomID, SessionID: session.ID, StarterID: userID},
	}}
	// The starter takes the first seat.
	_, joinErr := mh.module.manager.JoinGame(userID, state.RoomID)
	if joinErr == nil {
		events = append(events, joinedEvent(session, userID))
	}
	mh.dispatch(state, dispatcher, logger, session, events)
	if joinErr != nil {
		logger.Warn("NewGame: Starter %s was not seated in room %s: %v", userID, state.RoomID, joinErr)
		mh.sendError(state, dispatcher, logger, userID, joinErr)
	}
}

func (mh *matchHandler) handleJoin(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	mgr := mh.module.manager
	if _, err := mgr.JoinGame(userID, state.RoomID); err != nil {
		logger.Warn("JoinGame: User %s failed to join room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	session, ok := mgr.CurrentGame(state.RoomID)
	if !ok {
		return
	}
	mh.dispatch(state, dispatcher, logger, session, []app.Event{joinedEvent(session, userID)})
}

func (mh *matchHandler) handleStartGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	mgr := mh.module.manager
	session, ok := mgr.CurrentGame(state.RoomID)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}
	events, err := mgr.StartGame(state.RoomID, userID)
	if err != nil {
		logger.Warn("StartGame: User %s could not start room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	logger.Info("StartGame: Game %s started in room %s.", session.ID, state.RoomID)
	mh.dispatch(state, dispatcher, logger, session, events)
}

func (mh *matchHandler) handleCast(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, data []byte) {
	rank, err := decodeRank(data)
	if err != nil {
		logger.Warn("handleCast: Invalid payload from %s: %v", userID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	mh.play(state, dispatcher, logger, userID, func(mgr *lobby.Manager) ([]app.Event, error) {
		return mgr.Cast(userID, state.RoomID, rank)
	})
}

func (mh *matchHandler) handlePass(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	mh.play(state, dispatcher, logger, userID, func(mgr *lobby.Manager) ([]app.Event, error) {
		return mgr.Pass(userID, state.RoomID)
	})
}

// play runs a turn action and fans out its events. The session is looked up
// first because a winning action drops it from the registry.
func (mh *matchHandler) play(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, action func(mgr *lobby.Manager) ([]app.Event, error)) {
	mgr := mh.module.manager
	session, ok := mgr.CurrentGame(state.RoomID)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}
	events, err := action(mgr)
	if err != nil {
		logger.Warn("play: User %s action rejected in room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	mh.dispatch(state, dispatcher, logger, session, events)
}

func (mh *matchHandler) handleInfo(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	_, text, ok := mh.module.roomInfo(state.RoomID, state.name)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}
	mh.send(state, dispatcher, logger, OpBoard, boardMessage("info", text), []string{userID})
}

func (mh *matchHandler) handleKill(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	mgr := mh.module.manager
	session, ok := mgr.CurrentGame(state.RoomID)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}
	if err := mgr.EndGame(state.RoomID, userID); err != nil {
		logger.Warn("KillGame: User %s may not end game in room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	logger.Info("KillGame: User %s ended game %s in room %s.", userID, session.ID, state.RoomID)
	mh.dispatch(state, dispatcher, logger, session, []app.Event{gameOverEvent(session, true, "")})
}

func (mh *matchHandler) handleView(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	session, ok := mh.module.manager.CurrentGame(state.RoomID)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}
	if !mh.sendView(state, dispatcher, logger, session, userID) {
		mh.sendError(state, dispatcher, logger, userID, app.ErrUnknownPlayer)
	}
}

// leaveGame unseats userID. A walkout that leaves too few players ends the game.
func (mh *matchHandler) leaveGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	mgr := mh.module.manager
	session, ok := mgr.CurrentGame(state.RoomID)
	if !ok {
		mh.sendError(state, dispatcher, logger, userID, lobby.ErrNoGameInRoom)
		return
	}

	err := mgr.LeaveGame(userID, state.RoomID)
	switch {
	case errors.Is(err, domain.ErrNotEnoughPlayers):
		logger.Info("LeaveGame: User %s left room %s mid-game, ending game %s.", userID, state.RoomID, session.ID)
		if err := mgr.Finish(state.RoomID); err != nil && !errors.Is(err, lobby.ErrNoGameInRoom) {
			logger.Warn("LeaveGame: Failed to finish game %s: %v", session.ID, err)
		}
		var players int
		session.Inspect(func(game *domain.Game) {
			players = game.PlayerCount() - 1
		})
		left := app.Event{Kind: app.EventPlayerLeft, Payload: app.PlayerLeftPayload{UserID: userID, Players: players, GameOver: true}}
		mh.dispatch(state, dispatcher, logger, session, []app.Event{left, gameOverEvent(session, false, userID)})
		return
	case err != nil:
		logger.Warn("LeaveGame: User %s failed to leave room %s: %v", userID, state.RoomID, err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}

	payload := app.PlayerLeftPayload{UserID: userID}
	session.Inspect(func(game *domain.Game) {
		payload.Players = game.PlayerCount()
		if cur := game.Current(); cur != nil && game.Phase == domain.PhasePlaying {
			payload.NextTurnUserID = cur.UserID
		}
	})
	delete(state.Bots, userID)
	mh.dispatch(state, dispatcher, logger, session, []app.Event{{Kind: app.EventPlayerLeft, Payload: payload}})
}

// dispatch broadcasts events, feeds them to the bots and refreshes every
// seated player's private view.
func (mh *matchHandler) dispatch(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, session *lobby.Session, events []app.Event) {
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
		for _, agent := range state.Bots {
			agent.OnGameEvent(ev)
		}

		var board map[string]interface{}
		switch ev.Kind {
		case app.EventRoundScored:
			session.Inspect(func(game *domain.Game) {
				board = boardMessage("scores", app.ScoreBoard(game, state.name))
			})
		case app.EventGameEnded:
			session.Inspect(func(game *domain.Game) {
				board = boardMessage("final", app.FinalBoard(game, state.name))
			})
		}
		if board != nil {
			mh.send(state, dispatcher, logger, OpBoard, board, nil)
		}
	}

	mh.announceTurn(state, dispatcher, logger, session)
	for _, userID := range session.Members() {
		if _, online := state.Presences[userID]; online {
			mh.sendView(state, dispatcher, logger, session, userID)
		}
	}
}

// announceTurn posts the turn prompt whenever the turn holder changes.
func (mh *matchHandler) announceTurn(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, session *lobby.Session) {
	var prompt string
	session.Inspect(func(game *domain.Game) {
		cur := game.Current()
		if game.Phase != domain.PhasePlaying || cur == nil {
			state.TurnUserID, state.TurnRound = "", 0
			return
		}
		if cur.UserID == state.TurnUserID && game.Round == state.TurnRound {
			return
		}
		state.TurnUserID, state.TurnRound = cur.UserID, game.Round
		prompt = app.TurnPrompt(game, state.name)
	})
	if prompt != "" {
		mh.send(state, dispatcher, logger, OpBoard, boardMessage("turn", prompt), nil)
	}
}

// broadcastEvent handles the conversion and dispatching of app events to Nakama.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	opCode, fields, err := eventMessage(ev)
	if err != nil {
		logger.Warn("broadcastEvent: %v", err)
		return
	}
	logger.Debug("Event: %s in room %s (recipients=%d)", ev.Kind, state.RoomID, len(ev.Recipients))
	mh.send(state, dispatcher, logger, opCode, fields, ev.Recipients)
}

// send encodes fields and delivers them to recipients, or to the whole room
// when recipients is empty.
func (mh *matchHandler) send(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, fields map[string]interface{}, recipients []string) {
	data, err := encodeMessage(fields)
	if err != nil {
		logger.Error("send: Failed to encode op %d: %v", opCode, err)
		return
	}

	var presences []runtime.Presence
	if len(recipients) > 0 {
		for _, userID := range recipients {
			if p, ok := state.Presences[userID]; ok {
				presences = append(presences, p)
			}
		}
		// Intended recipients that are not connected (bots) must not turn this into a broadcast.
		if len(presences) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, data, presences, nil, true); err != nil {
		logger.Error("send: Failed to broadcast op %d: %v", opCode, err)
	}
}

// sendView pushes userID's private view. It reports false when userID is not seated.
func (mh *matchHandler) sendView(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, session *lobby.Session, userID string) bool {
	var view app.PlayerView
	var ok bool
	session.Inspect(func(game *domain.Game) {
		view, ok = app.ViewFor(game, userID)
	})
	if !ok {
		return false
	}
	mh.send(state, dispatcher, logger, OpPlayerView, viewMessage(view), []string{userID})
	return true
}

// sendError sends a GAME_ERROR to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	if _, ok := state.Presences[userID]; !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	mh.send(state, dispatcher, logger, OpGameError, errorMessage(errorCode(err), err.Error()), []string{userID})
}

func (mh *matchHandler) sendRoomState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	fields := map[string]interface{}{
		"room_id":  state.RoomID,
		"match_id": state.MatchID,
		"phase":    phaseIdle,
		"members":  []interface{}{},
	}
	names := make(map[string]interface{}, len(state.Presences))
	for id := range state.Presences {
		names[id] = state.name(id)
	}

	if session, ok := mh.module.manager.CurrentGame(state.RoomID); ok {
		members := session.Members()
		for _, id := range members {
			names[id] = state.name(id)
		}
		fields["members"] = stringList(members)
		fields["session_id"] = session.ID
		fields["starter_id"] = session.StarterID()
		fields["open"] = session.Open()
		session.Inspect(func(game *domain.Game) {
			fields["phase"] = string(game.Phase)
		})
	}
	fields["names"] = names

	mh.send(state, dispatcher, logger, OpRoomState, fields, []string{userID})
}

func (mh *matchHandler) resolveNames(ctx context.Context, logger runtime.Logger, state *MatchState, userIDs []string) {
	if mh.accounts == nil || len(userIDs) == 0 {
		return
	}
	names, err := mh.accounts.DisplayNames(ctx, userIDs)
	if err != nil {
		logger.Warn("MatchJoin: Failed to resolve display names: %v", err)
		return
	}
	for id, name := range names {
		if name != "" {
			state.Names[id] = name
		}
	}
}

func (mh *matchHandler) buildLabel(state *MatchState) (string, error) {
	cfg := mh.module.cfg
	phase := phaseIdle
	open := 0
	if session, ok := mh.module.manager.CurrentGame(state.RoomID); ok {
		started, count := false, 0
		session.Inspect(func(game *domain.Game) {
			phase = string(game.Phase)
			started = game.Started()
			count = game.PlayerCount()
		})
		if session.Open() && (!started || cfg.AllowJoinMidGame) {
			open = max(cfg.MaxPlayers-count, 0)
		}
	}

	label, err := structpb.NewStruct(map[string]interface{}{
		"room":  state.RoomID,
		"game":  GameLabel,
		"phase": phase,
		"open":  open,
	})
	if err != nil {
		return "", err
	}
	labelBytes, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(labelBytes), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := mh.buildLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.label = label
}

// closeRoom drops the room's game and unregisters the match.
func (mh *matchHandler) closeRoom(state *MatchState, logger runtime.Logger) {
	if err := mh.module.manager.Finish(state.RoomID); err != nil && !errors.Is(err, lobby.ErrNoGameInRoom) {
		logger.Warn("closeRoom: Failed to finish room %s: %v", state.RoomID, err)
	}
	mh.module.forgetMatch(state.RoomID, state.MatchID)
}

func joinedEvent(session *lobby.Session, userID string) app.Event {
	payload := app.PlayerJoinedPayload{UserID: userID}
	session.Inspect(func(game *domain.Game) {
		payload.Players = game.PlayerCount()
		payload.Late = game.Started()
	})
	return app.Event{Kind: app.EventPlayerJoined, Payload: payload}
}

// gameOverEvent reports the final standings. excluded is a leaver that
// forfeits any claim to the win.
func gameOverEvent(session *lobby.Session, killed bool, excluded string) app.Event {
	payload := app.GameEndedPayload{Killed: killed}
	session.Inspect(func(game *domain.Game) {
		for _, p := range game.Leaders() {
			if p.UserID != excluded {
				payload.Winners = append(payload.Winners, p.UserID)
			}
		}
		payload.Standings = app.Standings(game)
	})
	return app.Event{Kind: app.EventGameEnded, Payload: payload}
}
