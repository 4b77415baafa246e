package nakama

import (
	"errors"

	"spellstone/internal/app"
	"spellstone/internal/app/lobby"
	"spellstone/internal/domain"
)

// errorCode maps a rejected command onto a status code for GAME_ERROR.
func errorCode(err error) int {
	switch {
	case errors.Is(err, errBadPayload), errors.Is(err, app.ErrInvalidRank):
		return codeInvalidArgument
	case errors.Is(err, lobby.ErrNoGameInRoom):
		return codeNotFound
	case errors.Is(err, lobby.ErrAlreadyJoined), errors.Is(err, lobby.ErrGameInProgress):
		return codeAlreadyExists
	case errors.Is(err, lobby.ErrNotAllowed):
		return codePermissionDenied
	case errors.Is(err, lobby.ErrLobbyClosed),
		errors.Is(err, lobby.ErrGameStarted),
		errors.Is(err, lobby.ErrLobbyFull),
		errors.Is(err, lobby.ErrTooFewPlayers),
		errors.Is(err, domain.ErrDeckEmpty),
		errors.Is(err, domain.ErrNotEnoughPlayers),
		errors.Is(err, app.ErrNotPlaying),
		errors.Is(err, app.ErrUnknownPlayer),
		errors.Is(err, app.ErrNotYourTurn),
		errors.Is(err, app.ErrRankTooLow),
		errors.Is(err, app.ErrMustCastFirst):
		return codeFailedPrecondition
	default:
		return codeInternal
	}
}
