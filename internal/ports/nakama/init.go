package nakama

import (
	"context"
	"database/sql"
	"time"

	"spellstone/internal/bot"
	"spellstone/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs, the room match handler and hooks for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(gameConfigPath); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.GetGameConfig().WithEnv(env)
	if err != nil {
		logger.Warn("InitModule: Ignored malformed env overrides: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("InitModule: %v", err)
		return err
	}

	if err := bot.LoadIdentities(botIdentityPath); err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
	}
	if cfg.BotsEnabled {
		if err := bot.ProvisionBots(ctx, nk, logger); err != nil {
			logger.Warn("InitModule: Bot provisioning failed: %v", err)
		}
	}

	secret := env[EnvInviteSecret]
	if secret == "" {
		logger.Warn("InitModule: %s not set, room invites are disabled.", EnvInviteSecret)
	}
	module := NewModule(cfg, secret, time.Now().UnixNano())

	if err := module.RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameRoom, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(module, NewNakamaAccountAdapter(nk)), nil
	}); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	if err := initializer.RegisterShutdown(func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) {
		logger.Info("Shutdown: Dropping all spellstone sessions.")
		module.Shutdown()
	}); err != nil {
		return err
	}

	logger.Info("Spellstone Go module loaded (players %d-%d, bots %t).", cfg.MinPlayers, cfg.MaxPlayers, cfg.BotsEnabled)
	return nil
}
