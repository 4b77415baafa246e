package nakama

import (
	"context"

	"spellstone/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaAccountAdapter implements ports.AccountPort using Nakama's account API.
type NakamaAccountAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk runtime.NakamaModule) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateProfile updates the account username and display name in Nakama.
// userID identifies the account to update; username/displayName are applied as provided.
// Returns an error if the Nakama update fails.
func (a *NakamaAccountAdapter) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	return a.nk.AccountUpdateId(ctx, userID, username, nil, displayName, "", "", "", "")
}

// DisplayNames looks the users up in one call, falling back to the username
// when no display name is set.
func (a *NakamaAccountAdapter) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	users, err := a.nk.UsersGetId(ctx, userIDs, nil)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		name := u.GetDisplayName()
		if name == "" {
			name = u.GetUsername()
		}
		names[u.GetId()] = name
	}
	return names, nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
