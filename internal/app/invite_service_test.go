package app

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestInviteServiceGenerateToken(t *testing.T) {
	secret := "test-secret"
	svc := NewInviteService(secret, "spellstone", time.Hour)

	tokenString, err := svc.GenerateToken("user123", "room-9")
	if err != nil {
		t.Fatalf("generate invite token error: %v", err)
	}

	claims := parseInviteClaims(t, tokenString, secret)
	if got := stringClaim(t, claims, "room"); got != "room-9" {
		t.Fatalf("room = %s, want room-9", got)
	}
	if got := stringClaim(t, claims, "sub"); got != "user123" {
		t.Fatalf("sub = %s, want user123", got)
	}
	if got := stringClaim(t, claims, "iss"); got != "spellstone" {
		t.Fatalf("iss = %s, want spellstone", got)
	}
	if stringClaim(t, claims, "jti") == "" {
		t.Fatal("jti should be set")
	}
}

func TestInviteServiceVerifyRoundTrip(t *testing.T) {
	svc := NewInviteService("secret", "spellstone", 0)
	tokenString, err := svc.GenerateToken("inviter", "room-1")
	if err != nil {
		t.Fatalf("generate invite token error: %v", err)
	}

	invite, err := svc.Verify(tokenString)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if invite.RoomID != "room-1" || invite.InviterID != "inviter" {
		t.Fatalf("invite = %+v", invite)
	}
	if time.Until(invite.ExpiresAt) < DefaultInviteTTL-time.Minute {
		t.Fatalf("expiry = %v, want about %v from now", invite.ExpiresAt, DefaultInviteTTL)
	}
}

func TestInviteServiceVerifyRejects(t *testing.T) {
	svc := NewInviteService("secret", "spellstone", time.Hour)
	other := NewInviteService("other-secret", "spellstone", time.Hour)
	foreign := NewInviteService("secret", "someone-else", time.Hour)

	forged, _ := other.GenerateToken("inviter", "room-1")
	wrongIssuer, _ := foreign.GenerateToken("inviter", "room-1")
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  "spellstone",
		"sub":  "inviter",
		"room": "room-1",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: forged},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "expired", token: expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Verify(tt.token); !errors.Is(err, ErrInvalidInvite) {
				t.Fatalf("Verify() error = %v, want ErrInvalidInvite", err)
			}
		})
	}
}

func TestInviteServiceGenerateTokenRequiresConfig(t *testing.T) {
	svc := NewInviteService("", "spellstone", time.Hour)
	if _, err := svc.GenerateToken("user", "room"); err == nil {
		t.Fatal("expected error for missing invite secret")
	}
	if _, err := NewInviteService("s", "i", 0).GenerateToken("", "room"); err == nil {
		t.Fatal("expected error for empty inviter")
	}
}

func parseInviteClaims(t *testing.T, tokenString, secret string) jwt.MapClaims {
	t.Helper()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("parse token error: %v", err)
	}
	if !token.Valid {
		t.Fatal("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not map claims")
	}
	return claims
}

func stringClaim(t *testing.T, claims jwt.MapClaims, name string) string {
	t.Helper()
	value, ok := claims[name]
	if !ok {
		t.Fatalf("missing %s claim", name)
	}
	str, ok := value.(string)
	if !ok {
		t.Fatalf("%s claim is not a string", name)
	}
	return str
}
