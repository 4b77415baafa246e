package lobby

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spellstone/internal/app"
	"spellstone/internal/domain"
)

type fixedRoller int

func (r fixedRoller) Roll() int { return int(r) }

func newTestManager(limits Limits) *Manager {
	svc := app.NewService(fixedRoller(1), app.DefaultRules())
	return NewManager(svc, limits, rand.New(rand.NewSource(7)))
}

func defaultLimits() Limits {
	return Limits{MinPlayers: 2, MaxPlayers: 4, OpenLobby: true}
}

func TestNewGameRejectsSecondActiveGame(t *testing.T) {
	m := newTestManager(defaultLimits())

	s, err := m.NewGame("room", "host")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.PhaseLobby, s.Game.Phase)

	_, err = m.NewGame("room", "someone")
	assert.ErrorIs(t, err, ErrGameInProgress)

	other, err := m.NewGame("other-room", "host")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)

	cur, ok := m.CurrentGame("room")
	require.True(t, ok)
	assert.Same(t, s, cur)
}

func TestJoinGame(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		prep   func(t *testing.T, m *Manager)
		user   string
		room   string
		want   error
	}{
		{name: "no game", room: "nowhere", user: "a", want: ErrNoGameInRoom},
		{
			name: "already joined", user: "a", want: ErrAlreadyJoined,
			prep: func(t *testing.T, m *Manager) {
				_, err := m.JoinGame("a", "room")
				require.NoError(t, err)
			},
		},
		{
			name: "closed lobby", user: "a", want: ErrLobbyClosed,
			prep: func(t *testing.T, m *Manager) { require.NoError(t, m.SetOpen("room", false)) },
		},
		{
			name: "full", user: "e", want: ErrLobbyFull,
			prep: func(t *testing.T, m *Manager) {
				for _, id := range []string{"a", "b", "c", "d"} {
					_, err := m.JoinGame(id, "room")
					require.NoError(t, err)
				}
			},
		},
		{
			name: "started", user: "c", want: ErrGameStarted,
			prep: func(t *testing.T, m *Manager) {
				for _, id := range []string{"a", "b"} {
					_, err := m.JoinGame(id, "room")
					require.NoError(t, err)
				}
				_, err := m.StartGame("room", "host")
				require.NoError(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := tt.limits
			if limits.MaxPlayers == 0 {
				limits = defaultLimits()
			}
			m := newTestManager(limits)
			_, err := m.NewGame("room", "host")
			require.NoError(t, err)
			if tt.prep != nil {
				tt.prep(t, m)
			}
			room := tt.room
			if room == "" {
				room = "room"
			}

			_, err = m.JoinGame(tt.user, room)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJoinMidGameDealsHand(t *testing.T) {
	limits := defaultLimits()
	limits.AllowJoinMidGame = true
	m := newTestManager(limits)
	_, err := m.NewGame("room", "a")
	require.NoError(t, err)
	for _, id := range []string{"a", "b"} {
		_, err := m.JoinGame(id, "room")
		require.NoError(t, err)
	}
	_, err = m.StartGame("room", "a")
	require.NoError(t, err)

	pl, err := m.JoinGame("c", "room")
	require.NoError(t, err)
	assert.Len(t, pl.Hand, domain.HandSize)

	s, ok := m.PlayerSession("c")
	require.True(t, ok)
	assert.Equal(t, "room", s.RoomID)

	s.Do(func(game *domain.Game) error {
		game.Deck().Burn(game.Deck().Len())
		return nil
	})
	_, err = m.JoinGame("d", "room")
	assert.ErrorIs(t, err, domain.ErrDeckEmpty)
}

func TestStartGame(t *testing.T) {
	m := newTestManager(Limits{MinPlayers: 2, MaxPlayers: 5, OpenLobby: true, Admins: []string{"root"}})
	_, err := m.StartGame("room", "host")
	assert.ErrorIs(t, err, ErrNoGameInRoom)

	_, err = m.NewGame("room", "host")
	require.NoError(t, err)
	_, err = m.JoinGame("host", "room")
	require.NoError(t, err)

	_, err = m.StartGame("room", "host")
	assert.ErrorIs(t, err, ErrTooFewPlayers)

	_, err = m.JoinGame("guest", "room")
	require.NoError(t, err)
	_, err = m.StartGame("room", "guest")
	assert.ErrorIs(t, err, ErrNotAllowed)

	events, err := m.StartGame("room", "root")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, app.EventGameStarted, events[0].Kind)

	_, err = m.StartGame("room", "host")
	assert.ErrorIs(t, err, ErrGameStarted)
}

func TestLeaveGame(t *testing.T) {
	m := newTestManager(defaultLimits())
	_, err := m.NewGame("room", "a")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.JoinGame(id, "room")
		require.NoError(t, err)
	}

	assert.ErrorIs(t, m.LeaveGame("zed", "room"), ErrNoGameInRoom)
	assert.ErrorIs(t, m.LeaveGame("a", "elsewhere"), ErrNoGameInRoom)

	_, err = m.StartGame("room", "a")
	require.NoError(t, err)

	require.NoError(t, m.LeaveGame("a", "room"))
	_, ok := m.PlayerSession("a")
	assert.False(t, ok)
	_, ok = m.PlayerForUserInRoom("a", "room")
	assert.False(t, ok)

	// Two left: one more leave would drop below the minimum.
	assert.ErrorIs(t, m.LeaveGame("b", "room"), domain.ErrNotEnoughPlayers)
	_, ok = m.PlayerForUserInRoom("b", "room")
	assert.True(t, ok, "the player stays seated when the leave is refused")

	require.NoError(t, m.Finish("room"))
	_, ok = m.CurrentGame("room")
	assert.False(t, ok)
	_, ok = m.PlayerSession("b")
	assert.False(t, ok)
}

func TestLeavingEmptyLobbyDropsIt(t *testing.T) {
	m := newTestManager(defaultLimits())
	_, err := m.NewGame("room", "a")
	require.NoError(t, err)
	_, err = m.JoinGame("a", "room")
	require.NoError(t, err)

	require.NoError(t, m.LeaveGame("a", "room"))
	_, ok := m.CurrentGame("room")
	assert.False(t, ok)
	assert.Len(t, m.History("room"), 1)

	_, err = m.NewGame("room", "b")
	assert.NoError(t, err, "a new game can follow a dropped one")
	assert.Len(t, m.History("room"), 2)
}

func TestStarterLeavingHandsOverLobby(t *testing.T) {
	m := newTestManager(defaultLimits())
	s, err := m.NewGame("room", "a")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := m.JoinGame(id, "room")
		require.NoError(t, err)
	}

	require.NoError(t, m.LeaveGame("a", "room"))
	assert.Equal(t, "b", s.StarterID(), "the turn holder takes over the lobby")
	require.NoError(t, m.LeaveGame("d", "room"))
	assert.Equal(t, "b", s.StarterID(), "other leavers do not move the lobby")
	assert.True(t, m.CanKill(s, "b"))
	assert.False(t, m.CanKill(s, "a"))

	_, err = m.StartGame("room", "a")
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = m.StartGame("room", "c")
	assert.ErrorIs(t, err, ErrNotAllowed)
	events, err := m.StartGame("room", "b")
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestEndGamePermissions(t *testing.T) {
	tests := []struct {
		name   string
		admins []string
		actor  string
		want   error
	}{
		{name: "starter without admins", actor: "host"},
		{name: "stranger without admins", actor: "guest", want: ErrNotAllowed},
		{name: "admin", admins: []string{"root"}, actor: "root"},
		{name: "starter with admins", admins: []string{"root"}, actor: "host", want: ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := defaultLimits()
			limits.Admins = tt.admins
			m := newTestManager(limits)
			s, err := m.NewGame("room", "host")
			require.NoError(t, err)
			_, err = m.JoinGame("guest", "room")
			require.NoError(t, err)

			err = m.EndGame("room", tt.actor)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				_, ok := m.CurrentGame("room")
				assert.True(t, ok)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Closed())
			assert.True(t, s.Game.Ended())
			assert.ErrorIs(t, m.EndGame("room", tt.actor), ErrNoGameInRoom)
			assert.ErrorIs(t, s.Do(func(*domain.Game) error { return nil }), ErrNoGameInRoom)
		})
	}
}

func TestPlayerInSeveralRooms(t *testing.T) {
	m := newTestManager(defaultLimits())
	for _, room := range []string{"r1", "r2"} {
		_, err := m.NewGame(room, "u")
		require.NoError(t, err)
		_, err = m.JoinGame("u", room)
		require.NoError(t, err)
	}
	s, ok := m.PlayerSession("u")
	require.True(t, ok)
	assert.Equal(t, "r2", s.RoomID)

	require.NoError(t, m.LeaveGame("u", "r2"))
	s, ok = m.PlayerSession("u")
	require.True(t, ok)
	assert.Equal(t, "r1", s.RoomID)
}

func TestWinningCastDropsGame(t *testing.T) {
	m := newTestManager(defaultLimits())
	_, err := m.NewGame("room", "a")
	require.NoError(t, err)
	for _, id := range []string{"a", "b"} {
		_, err := m.JoinGame(id, "room")
		require.NoError(t, err)
	}
	_, err = m.StartGame("room", "a")
	require.NoError(t, err)

	s, _ := m.CurrentGame("room")
	s.Do(func(game *domain.Game) error {
		a, _ := game.Player("a")
		a.Score = 7
		a.Hand = []domain.Card{{Rank: 8}}
		return nil
	})

	_, err = m.Pass("a", "room")
	assert.ErrorIs(t, err, app.ErrMustCastFirst)

	events, err := m.Cast("a", "room", 8)
	require.NoError(t, err)
	assert.Equal(t, app.EventGameEnded, events[len(events)-1].Kind)
	_, ok := m.CurrentGame("room")
	assert.False(t, ok)
	_, ok = m.PlayerSession("b")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Do(func(*domain.Game) error { return nil }), ErrNoGameInRoom)
	s.Inspect(func(game *domain.Game) {
		a, _ := game.Player("a")
		assert.Equal(t, domain.MaxScore, a.Score)
		assert.True(t, game.Ended())
	})
}

func TestConcurrentCommandsAreSerialised(t *testing.T) {
	m := newTestManager(Limits{MinPlayers: 2, MaxPlayers: 8, OpenLobby: true})
	_, err := m.NewGame("room", "host")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.JoinGame(string(rune('a'+i)), "room")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	joined, full := 0, 0
	for err := range errs {
		switch err {
		case nil:
			joined++
		case ErrLobbyFull:
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	assert.Equal(t, 8, joined)
	assert.Equal(t, 8, full)
}

func TestResetClearsEverything(t *testing.T) {
	m := newTestManager(defaultLimits())
	s, err := m.NewGame("room", "a")
	require.NoError(t, err)
	_, err = m.JoinGame("a", "room")
	require.NoError(t, err)

	m.Reset()
	assert.True(t, s.Closed())
	_, ok := m.CurrentGame("room")
	assert.False(t, ok)
	_, ok = m.PlayerSession("a")
	assert.False(t, ok)
}
