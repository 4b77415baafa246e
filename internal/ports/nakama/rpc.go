package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"spellstone/internal/app"
	"spellstone/internal/bot"
	"spellstone/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// FindRoomResponse is the payload returned to clients looking up a room's match.
type FindRoomResponse struct {
	MatchID string `json:"match_id"`
	Room    string `json:"room"`
	IsNew   bool   `json:"is_new"`
}

// RoomInfoResponse carries the text info board of a room.
type RoomInfoResponse struct {
	Room  string `json:"room"`
	Phase string `json:"phase"`
	Text  string `json:"text"`
}

// InviteResponse carries a signed room invite.
type InviteResponse struct {
	Token string `json:"token"`
	Room  string `json:"room"`
}

// VerifyInviteResponse describes a verified invite.
type VerifyInviteResponse struct {
	Room      string `json:"room"`
	InviterID string `json:"inviter_id"`
	ExpiresAt int64  `json:"expires_at"`
	MatchID   string `json:"match_id,omitempty"`
}

type roomRequest struct {
	Room  string `json:"room"`
	Token string `json:"token"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcFindRoom:     m.rpcFindRoom,
		RpcRoomInfo:     m.rpcRoomInfo,
		RpcRoomInvite:   m.rpcRoomInvite,
		RpcVerifyInvite: m.rpcVerifyInvite,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}
	return nil
}

func decodeRoomRequest(payload string) (roomRequest, error) {
	var req roomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return req, runtime.NewError("Invalid payload", codeInvalidArgument)
	}
	req.Room = strings.TrimSpace(req.Room)
	return req, nil
}

func marshalResponse(logger runtime.Logger, v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal rpc response: %v", err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	return string(b), nil
}

// rpcFindRoom returns the match backing a room, creating it on first use.
// Payload: {"room": "..."}
func (m *Module) rpcFindRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	req, err := decodeRoomRequest(payload)
	if err != nil {
		return "", err
	}
	if req.Room == "" {
		return "", runtime.NewError("Room required", codeInvalidArgument)
	}

	// Held across create so two callers cannot open two matches for one room.
	m.mu.Lock()
	defer m.mu.Unlock()

	if matchID, ok := m.matches[req.Room]; ok {
		return marshalResponse(logger, FindRoomResponse{MatchID: matchID, Room: req.Room})
	}

	query := fmt.Sprintf("+label.game:%s +label.room:%q", GameLabel, req.Room)
	matches, err := nk.MatchList(ctx, 1, true, "", nil, nil, query)
	if err != nil {
		logger.Error("RpcFindRoom [User:%s]: Failed to list matches: %v", userID, err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	if len(matches) > 0 {
		matchID := matches[0].GetMatchId()
		m.matches[req.Room] = matchID
		logger.Info("RpcFindRoom [User:%s]: Found match %s for room %s", userID, matchID, req.Room)
		return marshalResponse(logger, FindRoomResponse{MatchID: matchID, Room: req.Room})
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameRoom, map[string]interface{}{matchParamRoomID: req.Room})
	if err != nil {
		logger.Error("RpcFindRoom [User:%s]: Failed to create match: %v", userID, err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	m.matches[req.Room] = matchID
	logger.Info("RpcFindRoom [User:%s]: Created match %s for room %s", userID, matchID, req.Room)
	return marshalResponse(logger, FindRoomResponse{MatchID: matchID, Room: req.Room, IsNew: true})
}

// rpcRoomInfo renders the info board of a room's current game.
// Payload: {"room": "..."}
func (m *Module) rpcRoomInfo(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	req, err := decodeRoomRequest(payload)
	if err != nil {
		return "", err
	}
	if req.Room == "" {
		return "", runtime.NewError("Room required", codeInvalidArgument)
	}

	session, ok := m.manager.CurrentGame(req.Room)
	if !ok {
		return "", runtime.NewError("No game in this room", codeNotFound)
	}

	var humans []string
	for _, id := range session.Members() {
		if !bot.IsBot(id) {
			humans = append(humans, id)
		}
	}
	if !bot.IsBot(session.StarterID()) {
		humans = append(humans, session.StarterID())
	}
	names := map[string]string{}
	if nk != nil && len(humans) > 0 {
		names, err = NewNakamaAccountAdapter(nk).DisplayNames(ctx, humans)
		if err != nil {
			logger.Warn("RpcRoomInfo: Failed to resolve display names: %v", err)
			names = map[string]string{}
		}
	}
	nameOf := func(userID string) string {
		if n := names[userID]; n != "" {
			return n
		}
		if n := bot.GetBotDisplayName(userID); n != "" {
			return n
		}
		return userID
	}

	phase, text, ok := m.roomInfo(req.Room, nameOf)
	if !ok {
		return "", runtime.NewError("No game in this room", codeNotFound)
	}
	return marshalResponse(logger, RoomInfoResponse{Room: req.Room, Phase: phase, Text: text})
}

// rpcRoomInvite signs an invite into a room for the calling user.
// Payload: {"room": "..."}
func (m *Module) rpcRoomInvite(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("Authentication required", codePermissionDenied)
	}
	if m.invites == nil {
		return "", runtime.NewError("Invites are not configured", codeFailedPrecondition)
	}
	req, err := decodeRoomRequest(payload)
	if err != nil {
		return "", err
	}
	if req.Room == "" {
		return "", runtime.NewError("Room required", codeInvalidArgument)
	}

	token, err := m.invites.GenerateToken(userID, req.Room)
	if err != nil {
		logger.Error("RpcRoomInvite [User:%s]: Failed to sign invite: %v", userID, err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	return marshalResponse(logger, InviteResponse{Token: token, Room: req.Room})
}

// rpcVerifyInvite checks an invite token and resolves the room's match.
// Payload: {"token": "..."}
func (m *Module) rpcVerifyInvite(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if m.invites == nil {
		return "", runtime.NewError("Invites are not configured", codeFailedPrecondition)
	}
	req, err := decodeRoomRequest(payload)
	if err != nil {
		return "", err
	}
	invite, err := m.invites.Verify(strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, app.ErrInvalidInvite) {
			return "", runtime.NewError("Invalid invite", codeInvalidArgument)
		}
		logger.Error("RpcVerifyInvite: %v", err)
		return "", runtime.NewError("Internal error", codeInternal)
	}

	resp := VerifyInviteResponse{
		Room:      invite.RoomID,
		InviterID: invite.InviterID,
		ExpiresAt: invite.ExpiresAt.Unix(),
	}
	resp.MatchID, _ = m.matchFor(invite.RoomID)
	return marshalResponse(logger, resp)
}

// roomInfo renders the room board and, mid-game, the round boards.
func (m *Module) roomInfo(roomID string, name app.NameFunc) (string, string, bool) {
	session, ok := m.manager.CurrentGame(roomID)
	if !ok {
		return "", "", false
	}
	sections := []string{app.RoomInfo(session.StarterID(), session.Members(), name)}
	var phase domain.Phase
	session.Inspect(func(game *domain.Game) {
		phase = game.Phase
		if game.Phase == domain.PhasePlaying {
			sections = append(sections, app.RoundBoard(game, name), app.ScoreBoard(game, name), app.UsedCardsBoard(game))
		}
	})
	return string(phase), strings.Join(sections, "\n\n"), true
}
