package lobby

import (
	"sync"
	"time"

	"spellstone/internal/domain"
)

// Session is one game instance in a room. Game must only be touched inside Do.
type Session struct {
	ID        string
	RoomID    string
	CreatedAt time.Time
	Game      *domain.Game

	mu      sync.Mutex
	starter string
	open    bool
	closed  bool
}

// Do runs fn with exclusive access to the game. fn must not call back into
// the Manager. A session dropped from its room rejects work with ErrNoGameInRoom.
func (s *Session) Do(fn func(game *domain.Game) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoGameInRoom
	}
	return fn(s.Game)
}

// Inspect runs fn under the session lock, also after the session closed, so
// a finished game can still be rendered. fn must not mutate the game.
func (s *Session) Inspect(fn func(game *domain.Game)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.Game)
}

// StarterID is the user who runs the lobby. It moves to the next seated
// player when the starter leaves.
func (s *Session) StarterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starter
}

// Open reports whether the lobby accepts joiners.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Closed reports whether the session was dropped from its room.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Members lists the seated user IDs in turn order.
func (s *Session) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := s.Game.Players()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	return ids
}

// handOverLocked gives the lobby to the turn holder when the starter is no
// longer seated. Callers hold s.mu.
func (s *Session) handOverLocked() {
	if _, seated := s.Game.Player(s.starter); seated {
		return
	}
	if cur := s.Game.Current(); cur != nil {
		s.starter = cur.UserID
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Game.Ended() {
		s.Game.End()
	}
	s.closed = true
}
