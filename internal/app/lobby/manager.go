package lobby

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"spellstone/internal/app"
	"spellstone/internal/domain"
)

var (
	ErrLobbyClosed    = errors.New("lobby is closed")
	ErrNoGameInRoom   = errors.New("no game in this room")
	ErrAlreadyJoined  = errors.New("player already joined")
	ErrGameStarted    = errors.New("game already started")
	ErrLobbyFull      = errors.New("lobby is full")
	ErrGameInProgress = errors.New("game already running in this room")
	ErrTooFewPlayers  = errors.New("not enough players to start")
	ErrNotAllowed     = errors.New("not allowed")
)

// historyDepth bounds how many finished sessions a room remembers.
const historyDepth = 8

// Limits are the table bounds and lobby defaults applied to new games.
type Limits struct {
	MinPlayers       int
	MaxPlayers       int
	OpenLobby        bool
	AllowJoinMidGame bool
	// Admins may start and kill any game. With no admins the starter may kill its own game.
	Admins []string
}

// Manager is the process-wide session registry: room -> session stack and
// user -> sessions it is seated in.
type Manager struct {
	svc    *app.Service
	limits Limits

	mu      sync.RWMutex
	rng     *rand.Rand
	rooms   map[string][]*Session
	players map[string]map[string]*Session // user -> room -> session
	current map[string]*Session            // user -> most recently joined session
}

// NewManager constructs a registry. rng seeds per-game shuffles; nil means time-seeded.
func NewManager(svc *app.Service, limits Limits, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{svc: svc, limits: limits, rng: rng}
	m.Reset()
	return m
}

// Service returns the rules service shared by every room.
func (m *Manager) Service() *app.Service {
	return m.svc
}

// Limits returns the table limits in force.
func (m *Manager) Limits() Limits {
	return m.limits
}

// Reset drops every session. Used at process teardown.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stack := range m.rooms {
		for _, s := range stack {
			s.close()
		}
	}
	m.rooms = make(map[string][]*Session)
	m.players = make(map[string]map[string]*Session)
	m.current = make(map[string]*Session)
}

// NewGame opens a lobby in roomID. The starter is not seated automatically.
func (m *Manager) NewGame(roomID, starterID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.activeLocked(roomID); s != nil {
		return nil, ErrGameInProgress
	}
	s := &Session{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		starter:   starterID,
		CreatedAt: time.Now(),
		Game:      domain.NewGame(rand.New(rand.NewSource(m.rng.Int63()))),
		open:      m.limits.OpenLobby,
	}
	stack := append(m.rooms[roomID], s)
	if len(stack) > historyDepth {
		stack = stack[len(stack)-historyDepth:]
	}
	m.rooms[roomID] = stack
	return s, nil
}

// CurrentGame returns the active session of roomID.
func (m *Manager) CurrentGame(roomID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.activeLocked(roomID)
	return s, s != nil
}

// History returns the sessions roomID went through, oldest first.
func (m *Manager) History(roomID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Session(nil), m.rooms[roomID]...)
}

// PlayerSession returns the session userID joined most recently.
func (m *Manager) PlayerSession(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.current[userID]
	return s, ok
}

// PlayerForUserInRoom returns userID's seat in the active game of roomID.
func (m *Manager) PlayerForUserInRoom(userID, roomID string) (*domain.Player, bool) {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return nil, false
	}
	var pl *domain.Player
	_ = s.Do(func(game *domain.Game) error {
		pl, ok = game.Player(userID)
		return nil
	})
	return pl, ok && pl != nil
}

// SetOpen opens or closes the lobby of roomID to new joiners.
func (m *Manager) SetOpen(roomID string, open bool) error {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return ErrNoGameInRoom
	}
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
	return nil
}

// CanKill reports whether actorID may end s by force.
func (m *Manager) CanKill(s *Session, actorID string) bool {
	if len(m.limits.Admins) == 0 {
		return actorID == s.StarterID()
	}
	return m.isAdmin(actorID)
}

// EndGame kills the active game of roomID on behalf of actorID.
func (m *Manager) EndGame(roomID, actorID string) error {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return ErrNoGameInRoom
	}
	if !m.CanKill(s, actorID) {
		return ErrNotAllowed
	}
	m.drop(s)
	return nil
}

// Finish drops the active game of roomID after it ended on its own.
func (m *Manager) Finish(roomID string) error {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return ErrNoGameInRoom
	}
	m.drop(s)
	return nil
}

// JoinGame seats userID in the active game of roomID.
func (m *Manager) JoinGame(userID, roomID string) (*domain.Player, error) {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return nil, ErrNoGameInRoom
	}

	var pl *domain.Player
	err := s.Do(func(game *domain.Game) error {
		if !s.open {
			return ErrLobbyClosed
		}
		if _, seated := game.Player(userID); seated {
			return ErrAlreadyJoined
		}
		if game.Started() && !m.limits.AllowJoinMidGame {
			return ErrGameStarted
		}
		if m.limits.MaxPlayers > 0 && game.PlayerCount() >= m.limits.MaxPlayers {
			return ErrLobbyFull
		}
		var err error
		pl, _, err = m.svc.SeatPlayer(game, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.players[userID]
	if !ok {
		rooms = make(map[string]*Session)
		m.players[userID] = rooms
	}
	rooms[roomID] = s
	m.current[userID] = s
	return pl, nil
}

// LeaveGame unseats userID from the active game of roomID. Mid-game, a leave
// that would drop the table below MinPlayers returns domain.ErrNotEnoughPlayers
// and keeps the player seated; the caller ends the game. When the starter
// leaves, the lobby passes to the turn holder. A lobby left empty is dropped.
func (m *Manager) LeaveGame(userID, roomID string) error {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return ErrNoGameInRoom
	}

	empty := false
	err := s.Do(func(game *domain.Game) error {
		if _, seated := game.Player(userID); !seated {
			return ErrNoGameInRoom
		}
		if game.Phase == domain.PhasePlaying && game.PlayerCount()-1 < m.limits.MinPlayers {
			return domain.ErrNotEnoughPlayers
		}
		if _, err := m.svc.RemovePlayer(game, userID); err != nil {
			return err
		}
		s.handOverLocked()
		empty = game.PlayerCount() == 0
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.forgetLocked(userID, roomID)
	m.mu.Unlock()
	if empty {
		m.drop(s)
	}
	return nil
}

// StartGame deals the first round of the lobby in roomID.
func (m *Manager) StartGame(roomID, actorID string) ([]app.Event, error) {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return nil, ErrNoGameInRoom
	}
	var events []app.Event
	err := s.Do(func(game *domain.Game) error {
		if game.Started() {
			return ErrGameStarted
		}
		if actorID != s.starter && !m.isAdmin(actorID) {
			return ErrNotAllowed
		}
		if game.PlayerCount() < max(m.limits.MinPlayers, 1) {
			return ErrTooFewPlayers
		}
		var err error
		events, err = m.svc.StartGame(game)
		return err
	})
	return events, err
}

// Cast runs a cast for userID in roomID and drops the game once it is won.
func (m *Manager) Cast(userID, roomID string, rank domain.Rank) ([]app.Event, error) {
	return m.play(roomID, func(game *domain.Game) ([]app.Event, error) {
		return m.svc.CastCard(game, userID, rank)
	})
}

// Pass ends userID's turn in roomID and drops the game once it is won.
func (m *Manager) Pass(userID, roomID string) ([]app.Event, error) {
	return m.play(roomID, func(game *domain.Game) ([]app.Event, error) {
		return m.svc.PassTurn(game, userID)
	})
}

func (m *Manager) play(roomID string, action func(game *domain.Game) ([]app.Event, error)) ([]app.Event, error) {
	s, ok := m.CurrentGame(roomID)
	if !ok {
		return nil, ErrNoGameInRoom
	}
	var events []app.Event
	ended := false
	err := s.Do(func(game *domain.Game) error {
		var err error
		events, err = action(game)
		ended = game.Ended()
		return err
	})
	if err != nil {
		return nil, err
	}
	if ended {
		m.drop(s)
	}
	return events, nil
}

func (m *Manager) drop(s *Session) {
	members := s.Members()
	s.close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, userID := range members {
		m.forgetLocked(userID, s.RoomID)
	}
}

func (m *Manager) forgetLocked(userID, roomID string) {
	rooms := m.players[userID]
	s := rooms[roomID]
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(m.players, userID)
	}
	if m.current[userID] != s {
		return
	}
	delete(m.current, userID)
	// fall back to any other table the user still sits at
	for _, other := range rooms {
		m.current[userID] = other
		break
	}
}

func (m *Manager) activeLocked(roomID string) *Session {
	stack := m.rooms[roomID]
	if len(stack) == 0 {
		return nil
	}
	s := stack[len(stack)-1]
	if s.Closed() {
		return nil
	}
	return s
}

func (m *Manager) isAdmin(userID string) bool {
	for _, id := range m.limits.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
