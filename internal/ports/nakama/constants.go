package nakama

const (
	// MatchNameRoom is the authoritative match handler name registered with Nakama.
	// Each chat room is backed by exactly one running match.
	MatchNameRoom = "spellstone_room"

	// GameLabel identifies our matches in label queries.
	GameLabel = "spellstone"

	RpcFindRoom     = "find_room"
	RpcRoomInfo     = "room_info"
	RpcRoomInvite   = "room_invite"
	RpcVerifyInvite = "verify_invite"

	// EnvInviteSecret holds the HMAC secret for room invite tokens.
	EnvInviteSecret = "spellstone_invite_secret"
	InviteIssuer    = "spellstone"

	gameConfigPath   = "data/game_config.json"
	botIdentityPath  = "data/bot_identities.json"
	matchTickRate    = 1
	matchParamRoomID = "room"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpNewGame   int64 = 1
	OpJoin      int64 = 2
	OpLeave     int64 = 3
	OpStartGame int64 = 4
	OpCast      int64 = 5 // {"rank": n}
	OpPass      int64 = 6
	OpInfo      int64 = 7
	OpKill      int64 = 8
	OpView      int64 = 9

	// Server -> Client events
	OpRoomState    int64 = 100
	OpGameCreated  int64 = 101
	OpPlayerJoined int64 = 102
	OpPlayerLeft   int64 = 103
	OpGameStarted  int64 = 104
	OpRoundStarted int64 = 105
	OpCardCast     int64 = 106
	OpCastFailed   int64 = 107
	OpTurnPassed   int64 = 108
	OpRoundScored  int64 = 109
	OpGameEnded    int64 = 110
	OpPlayerView   int64 = 111 // send privately
	OpBoard        int64 = 112
	OpGameError    int64 = 120 // send privately
)

// Status codes shared by GAME_ERROR payloads and runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeAlreadyExists      = 6
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
)
