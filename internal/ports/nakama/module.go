package nakama

import (
	"math/rand"
	"sync"

	"spellstone/internal/app"
	"spellstone/internal/app/lobby"
	"spellstone/internal/config"
)

// Module is the process-wide runtime state shared by every room match and RPC.
type Module struct {
	cfg     config.GameConfig
	manager *lobby.Manager
	invites *app.InviteService

	mu      sync.Mutex
	matches map[string]string // room id -> match id
}

// NewModule builds the registry and services from cfg. An empty inviteSecret
// disables the invite RPCs.
func NewModule(cfg config.GameConfig, inviteSecret string, seed int64) *Module {
	rules := app.Rules{
		FailedCastEndsTurn: cfg.FailedCastEndsTurn,
		ReturnCardsOnLeave: cfg.ReturnCardsOnLeave,
	}
	limits := lobby.Limits{
		MinPlayers:       cfg.MinPlayers,
		MaxPlayers:       cfg.MaxPlayers,
		OpenLobby:        cfg.OpenLobby,
		AllowJoinMidGame: cfg.AllowJoinMidGame,
		Admins:           cfg.AdminList,
	}
	svc := app.NewService(app.NewRandRoller(rand.New(rand.NewSource(seed))), rules)
	m := &Module{
		cfg:     cfg,
		manager: lobby.NewManager(svc, limits, rand.New(rand.NewSource(seed+1))),
		matches: make(map[string]string),
	}
	if inviteSecret != "" {
		m.invites = app.NewInviteService(inviteSecret, InviteIssuer, app.DefaultInviteTTL)
	}
	return m
}

// Manager exposes the session registry.
func (m *Module) Manager() *lobby.Manager {
	return m.manager
}

// Config returns the configuration the module was built with.
func (m *Module) Config() config.GameConfig {
	return m.cfg
}

func (m *Module) matchFor(roomID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.matches[roomID]
	return id, ok
}

// forgetMatch unregisters matchID; a newer match for the same room is kept.
func (m *Module) forgetMatch(roomID, matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matches[roomID] == matchID {
		delete(m.matches, roomID)
	}
}

// Shutdown drops every session.
func (m *Module) Shutdown() {
	m.manager.Reset()
	m.mu.Lock()
	m.matches = make(map[string]string)
	m.mu.Unlock()
}
