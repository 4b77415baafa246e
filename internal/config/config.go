package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// GameConfig holds the house rules and table limits of every room.
type GameConfig struct {
	MinPlayers         int      `json:"min_players"`
	MaxPlayers         int      `json:"max_players"`
	OpenLobby          bool     `json:"open_lobby"`
	AdminList          []string `json:"admin_list"`
	AllowJoinMidGame   bool     `json:"allow_join_mid_game"`
	FailedCastEndsTurn bool     `json:"failed_cast_ends_turn"`
	ReturnCardsOnLeave bool     `json:"return_cards_on_leave"`
	BotsEnabled        bool     `json:"bots_enabled"`
	BotMinDelaySec     int      `json:"bot_min_delay_sec"`
	BotMaxDelaySec     int      `json:"bot_max_delay_sec"`
	// BotAutoFillDelaySec configures how many seconds a solo human waits in the lobby before bots fill the table.
	BotAutoFillDelaySec int `json:"bot_auto_fill_delay_sec"`
}

// EnvPrefix prefixes every runtime env key that overrides GameConfig.
const EnvPrefix = "spellstone_"

var (
	ErrInvalidConfig = errors.New("invalid game config")

	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// Defaults returns the configuration used when no file is present.
func Defaults() GameConfig {
	return GameConfig{
		MinPlayers:          2,
		MaxPlayers:          5,
		OpenLobby:           true,
		AdminList:           []string{},
		FailedCastEndsTurn:  true,
		BotMinDelaySec:      1,
		BotMaxDelaySec:      3,
		BotAutoFillDelaySec: 10,
	}
}

// Validate rejects table limits the engine cannot honour.
func (c GameConfig) Validate() error {
	switch {
	case c.MinPlayers < 2:
		return fmt.Errorf("%w: min_players %d below 2", ErrInvalidConfig, c.MinPlayers)
	case c.MaxPlayers > 8:
		return fmt.Errorf("%w: max_players %d above 8", ErrInvalidConfig, c.MaxPlayers)
	case c.MinPlayers > c.MaxPlayers:
		return fmt.Errorf("%w: min_players %d above max_players %d", ErrInvalidConfig, c.MinPlayers, c.MaxPlayers)
	case c.BotMinDelaySec < 0 || c.BotMaxDelaySec < c.BotMinDelaySec:
		return fmt.Errorf("%w: bot delay range [%d,%d]", ErrInvalidConfig, c.BotMinDelaySec, c.BotMaxDelaySec)
	}
	return nil
}

// IsAdmin reports whether userID may kill games in any room.
func (c GameConfig) IsAdmin(userID string) bool {
	for _, id := range c.AdminList {
		if id == userID {
			return true
		}
	}
	return false
}

// Parse decodes data on top of Defaults, so omitted fields keep their default.
func Parse(data []byte) (GameConfig, error) {
	c := Defaults()
	if err := json.Unmarshal(data, &c); err != nil {
		return GameConfig{}, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return GameConfig{}, err
	}
	return c, nil
}

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		c, err := Parse(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or Defaults when none was loaded.
func GetGameConfig() GameConfig {
	if cfg == nil {
		return Defaults()
	}
	return *cfg
}

// WithEnv returns c with spellstone_* runtime env values applied. Malformed
// values are skipped and reported in the returned error.
func (c GameConfig) WithEnv(env map[string]string) (GameConfig, error) {
	var errs []error
	intVar := func(key string, dst *int) {
		if val, ok := env[EnvPrefix+key]; ok {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolVar := func(key string, dst *bool) {
		if val, ok := env[EnvPrefix+key]; ok {
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	intVar("min_players", &c.MinPlayers)
	intVar("max_players", &c.MaxPlayers)
	boolVar("open_lobby", &c.OpenLobby)
	boolVar("allow_join_mid_game", &c.AllowJoinMidGame)
	boolVar("failed_cast_ends_turn", &c.FailedCastEndsTurn)
	boolVar("return_cards_on_leave", &c.ReturnCardsOnLeave)
	boolVar("bots_enabled", &c.BotsEnabled)
	intVar("bot_min_delay_sec", &c.BotMinDelaySec)
	intVar("bot_max_delay_sec", &c.BotMaxDelaySec)
	intVar("bot_auto_fill_delay_sec", &c.BotAutoFillDelaySec)
	if val, ok := env[EnvPrefix+"admin_list"]; ok {
		c.AdminList = nil
		for _, id := range strings.Split(val, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.AdminList = append(c.AdminList, id)
			}
		}
	}
	return c, errors.Join(errs...)
}
