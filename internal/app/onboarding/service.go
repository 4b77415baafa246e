package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"spellstone/internal/ports"
)

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	rng      *rand.Rand
}

// NewService constructs an onboarding service with required ports.
// accounts must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		rng:      rng,
	}
}

// OnboardNewUser gives a newly created account a friendly wizard name.
// userID identifies the new account to initialize.
// Returns the display name that was applied.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (string, error) {
	if s.accounts == nil {
		return "", fmt.Errorf("onboarding service not configured")
	}

	displayName := s.generateFriendlyName()
	username := strings.ToLower(displayName)
	if err := s.accounts.UpdateProfile(ctx, userID, username, displayName); err != nil {
		return "", fmt.Errorf("failed to set profile for %s: %w", userID, err)
	}
	return displayName, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Arcane", "Mystic", "Brave", "Clever", "Swift", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Wizard", "Witch", "Sorcerer", "Druid", "Warlock", "Oracle", "Sage", "Shaman", "Mage", "Seer"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
