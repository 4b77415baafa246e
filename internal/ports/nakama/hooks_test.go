package nakama

import (
	"context"
	"testing"

	"github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/api"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestExtractUserIDFromToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "uid claim", token: signedToken(t, jwt.MapClaims{"uid": "user-1", "usn": "wizard"}), want: "user-1"},
		{name: "missing uid", token: signedToken(t, jwt.MapClaims{"usn": "wizard"}), wantErr: true},
		{name: "non-string uid", token: signedToken(t, jwt.MapClaims{"uid": 7}), wantErr: true},
		{name: "garbage", token: "not-a-token", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractUserIDFromToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("extractUserIDFromToken = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

// fakeAccounts records profile updates made through the Nakama module.
type fakeAccounts struct {
	fakeNakama
	updatedID   string
	displayName string
}

func (f *fakeAccounts) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.updatedID = userID
	f.displayName = displayName
	return nil
}

func TestAfterAuthenticateDeviceOnboardsNewAccounts(t *testing.T) {
	nk := &fakeAccounts{}
	out := &api.Session{Created: true, Token: signedToken(t, jwt.MapClaims{"uid": "user-9"})}
	if err := AfterAuthenticateDevice(context.Background(), noopLogger{}, nil, nk, out, &api.AuthenticateDeviceRequest{}); err != nil {
		t.Fatalf("AfterAuthenticateDevice: %v", err)
	}
	if nk.updatedID != "user-9" || nk.displayName == "" {
		t.Fatalf("profile update = %q/%q", nk.updatedID, nk.displayName)
	}

	nk = &fakeAccounts{}
	out.Created = false
	if err := AfterAuthenticateDevice(context.Background(), noopLogger{}, nil, nk, out, &api.AuthenticateDeviceRequest{}); err != nil {
		t.Fatalf("AfterAuthenticateDevice: %v", err)
	}
	if nk.updatedID != "" {
		t.Fatalf("existing accounts must not be renamed")
	}
}
