package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// InviteService signs and verifies room invite tokens (HS256 JWTs).
type InviteService struct {
	secret string
	issuer string
	ttl    time.Duration
}

// Invite is the verified content of an invite token.
type Invite struct {
	RoomID    string
	InviterID string
	ExpiresAt time.Time
}

// DefaultInviteTTL bounds how long an invite link stays usable.
const DefaultInviteTTL = 24 * time.Hour

var ErrInvalidInvite = errors.New("invite token is invalid")

// NewInviteService returns a service signing with secret. A zero ttl means DefaultInviteTTL.
func NewInviteService(secret, issuer string, ttl time.Duration) *InviteService {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &InviteService{secret: secret, issuer: issuer, ttl: ttl}
}

// GenerateToken returns a token inviting its bearer into roomID on behalf of inviterID.
func (s *InviteService) GenerateToken(inviterID, roomID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("invite service is nil")
	}
	if inviterID == "" || roomID == "" {
		return "", fmt.Errorf("inviter and room are required")
	}
	if s.secret == "" {
		return "", fmt.Errorf("invite secret is not configured")
	}

	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  inviterID,
		"room": roomID,
		"exp":  time.Now().Add(s.ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks the signature, expiry and issuer of tokenString.
func (s *InviteService) Verify(tokenString string) (Invite, error) {
	if s == nil || s.secret == "" {
		return Invite{}, fmt.Errorf("invite secret is not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid {
		return Invite{}, fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyIssuer(s.issuer, true) {
		return Invite{}, ErrInvalidInvite
	}
	room, _ := claims["room"].(string)
	sub, _ := claims["sub"].(string)
	exp, _ := claims["exp"].(float64)
	if room == "" || sub == "" {
		return Invite{}, ErrInvalidInvite
	}
	return Invite{RoomID: room, InviterID: sub, ExpiresAt: time.Unix(int64(exp), 0)}, nil
}
