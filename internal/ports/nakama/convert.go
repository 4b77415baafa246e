package nakama

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"spellstone/internal/app"
	"spellstone/internal/domain"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var errBadPayload = errors.New("malformed message payload")

// eventMessage maps an app event onto its op code and wire fields.
func eventMessage(ev app.Event) (int64, map[string]interface{}, error) {
	switch p := ev.Payload.(type) {
	case app.GameCreatedPayload:
		return OpGameCreated, map[string]interface{}{
			"room_id":    p.RoomID,
			"session_id": p.SessionID,
			"starter_id": p.StarterID,
		}, nil
	case app.PlayerJoinedPayload:
		return OpPlayerJoined, map[string]interface{}{
			"user_id": p.UserID,
			"players": p.Players,
			"late":    p.Late,
		}, nil
	case app.PlayerLeftPayload:
		return OpPlayerLeft, map[string]interface{}{
			"user_id":           p.UserID,
			"players":           p.Players,
			"next_turn_user_id": p.NextTurnUserID,
			"game_over":         p.GameOver,
		}, nil
	case app.GameStartedPayload:
		return OpGameStarted, map[string]interface{}{
			"players": stringList(p.Players),
		}, nil
	case app.RoundStartedPayload:
		return OpRoundStarted, map[string]interface{}{
			"round":              p.Round,
			"first_turn_user_id": p.FirstTurnUserID,
			"deck_left":          p.DeckLeft,
			"standings":          standingList(p.Standings),
		}, nil
	case app.CardCastPayload:
		changes := make([]interface{}, 0, len(p.Changes))
		for _, c := range p.Changes {
			changes = append(changes, map[string]interface{}{
				"user_id": c.UserID,
				"delta":   c.Delta,
				"hp":      c.HP,
			})
		}
		return OpCardCast, map[string]interface{}{
			"user_id":    p.UserID,
			"rank":       int(p.Rank),
			"hand_index": p.HandIndex,
			"hand_left":  p.HandLeft,
			"roll":       p.Roll,
			"secret":     p.Secret,
			"changes":    changes,
		}, nil
	case app.CastFailedPayload:
		return OpCastFailed, map[string]interface{}{
			"user_id":           p.UserID,
			"rank":              int(p.Rank),
			"roll":              p.Roll,
			"damage":            p.Damage,
			"hp":                p.HP,
			"died":              p.Died,
			"next_turn_user_id": p.NextTurnUserID,
		}, nil
	case app.TurnPassedPayload:
		return OpTurnPassed, map[string]interface{}{
			"user_id":           p.UserID,
			"drawn":             p.Drawn,
			"deck_left":         p.DeckLeft,
			"next_turn_user_id": p.NextTurnUserID,
		}, nil
	case app.RoundScoredPayload:
		return OpRoundScored, map[string]interface{}{
			"round":     p.Round,
			"standings": standingList(p.Standings),
		}, nil
	case app.GameEndedPayload:
		return OpGameEnded, map[string]interface{}{
			"winners":   stringList(p.Winners),
			"standings": standingList(p.Standings),
			"killed":    p.Killed,
		}, nil
	default:
		return 0, nil, fmt.Errorf("unknown event %q with payload %T", ev.Kind, ev.Payload)
	}
}

// viewMessage renders a private player view.
func viewMessage(v app.PlayerView) map[string]interface{} {
	castable := make([]interface{}, 0, len(v.Castable))
	for _, r := range v.Castable {
		castable = append(castable, int(r))
	}
	others := make([]interface{}, 0, len(v.Others))
	for _, o := range v.Others {
		others = append(others, map[string]interface{}{
			"user_id": o.UserID,
			"hand":    rankList(o.Hand),
			"hp":      o.HP,
			"score":   o.Score,
			"secrets": o.Secrets,
		})
	}
	used := make([]interface{}, 0, domain.MaxRank)
	for r := domain.MinRank; r <= domain.MaxRank; r++ {
		used = append(used, v.UsedCards[r])
	}
	return map[string]interface{}{
		"user_id":         v.UserID,
		"phase":           string(v.Phase),
		"round":           v.Round,
		"current_user_id": v.CurrentUserID,
		"your_turn":       v.YourTurn,
		"castable":        castable,
		"can_pass":        v.CanPass,
		"hp":              v.HP,
		"score":           v.Score,
		"hand_size":       v.HandSize,
		"secret_cards":    rankList(v.SecretCards),
		"others":          others,
		"deck_left":       v.DeckLeft,
		"used_cards":      used,
	}
}

func boardMessage(kind, text string) map[string]interface{} {
	return map[string]interface{}{"kind": kind, "text": text}
}

func errorMessage(code int, message string) map[string]interface{} {
	return map[string]interface{}{"code": code, "message": message}
}

// encodeMessage serialises fields as a binary google.protobuf.Struct.
func encodeMessage(fields map[string]interface{}) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// decodeMessage accepts a Struct in either its binary or its JSON encoding.
// An empty payload decodes to an empty Struct.
func decodeMessage(data []byte) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return st, nil
	}
	var err error
	if trimmed[0] == '{' {
		err = protojson.Unmarshal(trimmed, st)
	} else {
		err = proto.Unmarshal(data, st)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return st, nil
}

// decodeRank reads the "rank" field of a CAST message.
func decodeRank(data []byte) (domain.Rank, error) {
	st, err := decodeMessage(data)
	if err != nil {
		return 0, err
	}
	v, ok := st.GetFields()["rank"]
	if !ok {
		return 0, fmt.Errorf("%w: rank is required", errBadPayload)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: rank must be an integer", errBadPayload)
	}
	return domain.Rank(n.NumberValue), nil
}

func stringList(ids []string) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

func rankList(cards []domain.Card) []interface{} {
	out := make([]interface{}, 0, len(cards))
	for _, c := range cards {
		out = append(out, int(c.Rank))
	}
	return out
}

func standingList(standings []app.Standing) []interface{} {
	out := make([]interface{}, 0, len(standings))
	for _, s := range standings {
		out = append(out, map[string]interface{}{
			"user_id": s.UserID,
			"hp":      s.HP,
			"score":   s.Score,
			"secrets": s.Secrets,
		})
	}
	return out
}
