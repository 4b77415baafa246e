package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"spellstone/internal/app"
	"spellstone/internal/app/lobby"
	"spellstone/internal/bot"
	"spellstone/internal/config"
	"spellstone/internal/domain"
)

// maxSteps caps the actions of one game so a stuck strategy cannot spin forever.
const maxSteps = 20000

var ErrStuck = errors.New("game did not finish")

// Options controls a simulation run.
type Options struct {
	Games   int
	Players int
	Seed    int64
}

// GameResult summarises one finished game.
type GameResult struct {
	Room    string
	Rounds  int
	Steps   int
	Winners []string
}

// Stats aggregates results over a run.
type Stats struct {
	Games       int
	TotalRounds int
	SeatWins    map[int]int
	LevelWins   map[string]int
	Results     []GameResult
}

// Run plays opts.Games bot-only games with cfg's house rules.
func Run(cfg config.GameConfig, opts Options, log logrus.FieldLogger) (*Stats, error) {
	if opts.Games <= 0 {
		return nil, fmt.Errorf("games must be positive, got %d", opts.Games)
	}
	if opts.Players < 2 || opts.Players > 8 {
		return nil, fmt.Errorf("players must be between 2 and 8, got %d", opts.Players)
	}

	svc := app.NewService(app.NewRandRoller(rand.New(rand.NewSource(opts.Seed))), app.Rules{
		FailedCastEndsTurn: cfg.FailedCastEndsTurn,
		ReturnCardsOnLeave: cfg.ReturnCardsOnLeave,
	})
	mgr := lobby.NewManager(svc, lobby.Limits{
		MinPlayers: 2,
		MaxPlayers: opts.Players,
		OpenLobby:  true,
	}, rand.New(rand.NewSource(opts.Seed+1)))

	ids := make([]string, opts.Players)
	levels := make(map[string]string, opts.Players)
	for i := range ids {
		ids[i] = fmt.Sprintf("%ssim-%d", bot.BotIDPrefix, i)
		levels[ids[i]] = "cautious"
		if i%2 == 1 {
			levels[ids[i]] = "bold"
		}
	}

	stats := &Stats{SeatWins: map[int]int{}, LevelWins: map[string]int{}}
	for g := 0; g < opts.Games; g++ {
		room := fmt.Sprintf("sim-%d", g)
		res, err := playGame(mgr, room, ids)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", room, err)
		}
		log.WithFields(logrus.Fields{
			"room":    res.Room,
			"rounds":  res.Rounds,
			"steps":   res.Steps,
			"winners": res.Winners,
		}).Debug("game finished")

		stats.Games++
		stats.TotalRounds += res.Rounds
		for _, w := range res.Winners {
			for seat, id := range ids {
				if id == w {
					stats.SeatWins[seat]++
				}
			}
			stats.LevelWins[levels[w]]++
		}
		stats.Results = append(stats.Results, res)
	}
	return stats, nil
}

func playGame(mgr *lobby.Manager, room string, ids []string) (GameResult, error) {
	res := GameResult{Room: room}
	session, err := mgr.NewGame(room, ids[0])
	if err != nil {
		return res, err
	}
	agents := make(map[string]*bot.Agent, len(ids))
	for i, id := range ids {
		if _, err := mgr.JoinGame(id, room); err != nil {
			return res, fmt.Errorf("join %s: %w", id, err)
		}
		level := bot.BotLevelCautious
		if i%2 == 1 {
			level = bot.BotLevelBold
		}
		brain, err := bot.NewBrain(id, level)
		if err != nil {
			return res, err
		}
		agents[id] = &bot.Agent{ID: id, Name: id, Strategy: brain}
	}

	events, err := mgr.StartGame(room, ids[0])
	if err != nil {
		return res, fmt.Errorf("start: %w", err)
	}
	for ; res.Steps < maxSteps; res.Steps++ {
		for _, ev := range events {
			for _, a := range agents {
				a.OnGameEvent(ev)
			}
			if p, ok := ev.Payload.(app.GameEndedPayload); ok {
				res.Winners = p.Winners
				session.Inspect(func(game *domain.Game) { res.Rounds = game.Round })
				return res, nil
			}
		}
		events, err = step(mgr, session, room, agents)
		if err != nil {
			return res, err
		}
	}
	return res, ErrStuck
}

// step lets the seat holding the turn act once. An illegal bot move falls
// back to passing, or to its first castable stone when passing is not allowed.
func step(mgr *lobby.Manager, session *lobby.Session, room string, agents map[string]*bot.Agent) ([]app.Event, error) {
	var (
		current string
		move    bot.Move
		view    app.PlayerView
		moveErr error
	)
	session.Inspect(func(game *domain.Game) {
		if cur := game.Current(); cur != nil {
			current = cur.UserID
			move, moveErr = agents[current].Play(game)
			view, _ = app.ViewFor(game, current)
		}
	})
	if current == "" {
		return nil, ErrStuck
	}
	if moveErr == nil {
		if events, err := apply(mgr, room, current, move); err == nil {
			return events, nil
		}
	}
	if view.CanPass {
		return mgr.Pass(current, room)
	}
	if len(view.Castable) == 0 {
		return nil, fmt.Errorf("%s has no legal move", current)
	}
	return mgr.Cast(current, room, view.Castable[0])
}

func apply(mgr *lobby.Manager, room, userID string, move bot.Move) ([]app.Event, error) {
	if move.Pass {
		return mgr.Pass(userID, room)
	}
	return mgr.Cast(userID, room, move.Rank)
}

// Report logs the aggregate results.
func (s *Stats) Report(log logrus.FieldLogger) {
	if s.Games == 0 {
		log.Warn("no games played")
		return
	}
	log.WithFields(logrus.Fields{
		"games":      s.Games,
		"avg_rounds": float64(s.TotalRounds) / float64(s.Games),
	}).Info("simulation complete")

	seats := make([]int, 0, len(s.SeatWins))
	for seat := range s.SeatWins {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	for _, seat := range seats {
		log.WithFields(logrus.Fields{"seat": seat, "wins": s.SeatWins[seat]}).Info("seat wins")
	}
	for level, wins := range s.LevelWins {
		log.WithFields(logrus.Fields{"strategy": level, "wins": wins}).Info("strategy wins")
	}
}
