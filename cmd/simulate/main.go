// Command simulate plays bot-only spell stone games through the lobby and
// reports how often each seat and strategy wins.
package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"spellstone/internal/bot"
	"spellstone/internal/config"
)

func main() {
	// A missing .env is fine; the process env still applies.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("SIM_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	opts := Options{
		Games:   envInt(log, "SIM_GAMES", 100),
		Players: envInt(log, "SIM_PLAYERS", 4),
		Seed:    int64(envInt(log, "SIM_SEED", 1)),
	}

	cfg := config.Defaults()
	if path := os.Getenv("SIM_CONFIG"); path != "" {
		if err := config.LoadGameConfig(path); err != nil {
			log.WithError(err).WithField("path", path).Fatal("load game config")
		}
		cfg = config.GetGameConfig()
	}
	if path := os.Getenv("SIM_BOTS"); path != "" {
		if err := bot.LoadIdentities(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("load bot identities")
		}
	}

	stats, err := Run(cfg, opts, log)
	if err != nil {
		log.WithError(err).Fatal("simulation failed")
	}
	stats.Report(log)
}

func envInt(log logrus.FieldLogger, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("ignoring malformed value")
		return def
	}
	return v
}
