package domain

import (
	"math/rand"
	"testing"
)

func newTestGame(t *testing.T, seed int64, ids ...string) *Game {
	t.Helper()
	g := NewGame(rand.New(rand.NewSource(seed)))
	for _, id := range ids {
		g.Join(id)
	}
	return g
}

func totalCards(g *Game) int {
	n := g.Deck().Len() + len(g.SecretPool)
	for _, p := range g.Players() {
		n += len(p.Hand) + len(p.SecretCards)
	}
	for r := MinRank; r <= MaxRank; r++ {
		n += g.UsedCards[r]
	}
	return n
}

func TestFullDeckComposition(t *testing.T) {
	deck := FullDeck()
	if len(deck) != DeckSize {
		t.Fatalf("deck size = %d, want %d", len(deck), DeckSize)
	}
	counts := map[Rank]int{}
	for _, c := range deck {
		counts[c.Rank]++
	}
	for r := MinRank; r <= MaxRank; r++ {
		if counts[r] != int(r) {
			t.Fatalf("rank %d has %d copies, want %d", r, counts[r], r)
		}
	}
}

func TestDeckDraw(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(3)))
	if _, err := d.Draw(); err != ErrDeckEmpty {
		t.Fatalf("Draw() on empty deck error = %v, want ErrDeckEmpty", err)
	}
	d.Init([]Card{{Rank: 1}, {Rank: 2}})
	for i := 0; i < 2; i++ {
		if _, err := d.Draw(); err != nil {
			t.Fatalf("Draw() #%d error: %v", i, err)
		}
	}
	if _, err := d.Draw(); err != ErrDeckEmpty {
		t.Fatalf("Draw() after exhausting error = %v, want ErrDeckEmpty", err)
	}
}

func TestStartDealsAndBurns(t *testing.T) {
	tests := []struct {
		name    string
		players int
		burned  int
	}{
		{name: "2 players", players: 2, burned: 12},
		{name: "3 players", players: 3, burned: 6},
		{name: "4 players", players: 4, burned: 0},
		{name: "5 players", players: 5, burned: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{"a", "b", "c", "d", "e"}[:tt.players]
			g := newTestGame(t, 11, ids...)
			g.Start()

			if g.Phase != PhasePlaying || !g.Started() || g.Ended() {
				t.Fatalf("phase = %s, want playing", g.Phase)
			}
			used := 0
			for r := MinRank; r <= MaxRank; r++ {
				used += g.UsedCards[r]
			}
			if used != tt.burned {
				t.Fatalf("used = %d, want %d burned", used, tt.burned)
			}
			if len(g.SecretPool) != SecretPoolSize {
				t.Fatalf("secret pool = %d, want %d", len(g.SecretPool), SecretPoolSize)
			}
			for _, p := range g.Players() {
				if len(p.Hand) != HandSize || p.HP != MaxHP || p.LastPlayed != nil || len(p.SecretCards) != 0 {
					t.Fatalf("player %s not reset: hand=%d hp=%d", p.UserID, len(p.Hand), p.HP)
				}
			}
			wantDeck := DeckSize - tt.burned - SecretPoolSize - HandSize*tt.players
			if g.Deck().Len() != wantDeck {
				t.Fatalf("deck = %d, want %d", g.Deck().Len(), wantDeck)
			}
			if got := totalCards(g); got != DeckSize {
				t.Fatalf("card conservation broken: %d, want %d", got, DeckSize)
			}
		})
	}
}

func TestStartPanicsWithoutPlayers(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Start() with no players should panic")
		}
	}()
	NewGame(nil).Start()
}

func TestStartNewRoundKeepsScores(t *testing.T) {
	g := newTestGame(t, 5, "a", "b")
	g.Start()
	a, _ := g.Player("a")
	a.Score = 4
	a.HP = 1
	a.SecretCards = []Card{{Rank: 2}}

	g.Start()
	if g.Round != 2 {
		t.Fatalf("round = %d, want 2", g.Round)
	}
	if a.Score != 4 || a.HP != MaxHP || len(a.SecretCards) != 0 {
		t.Fatalf("new round should keep score and reset the rest: %+v", a)
	}
}

func TestCastUpdatesHandAndUsed(t *testing.T) {
	g := newTestGame(t, 9, "a", "b")
	g.Start()
	a := g.Current()
	b := g.Right(a)
	a.Hand = []Card{{Rank: 3}, {Rank: 5}, {Rank: 3}}
	bHand := append([]Card(nil), b.Hand...)
	before := g.UsedCards[3]

	idx := g.Cast(a, 3)
	if idx != 0 && idx != 2 {
		t.Fatalf("cast index = %d, want a rank-3 position", idx)
	}
	if len(a.Hand) != 2 || g.UsedCards[3] != before+1 {
		t.Fatalf("hand = %d used = %d", len(a.Hand), g.UsedCards[3])
	}
	if a.LastPlayed == nil || a.LastPlayed.Rank != 3 {
		t.Fatalf("last played = %v, want rank 3", a.LastPlayed)
	}
	if !g.TurnState().HasCast() {
		t.Fatalf("turn state should record the cast")
	}
	if len(b.Hand) != len(bHand) {
		t.Fatalf("other player's hand changed")
	}

	if g.Cast(a, 8) != -1 {
		t.Fatalf("casting an absent rank should report -1")
	}
	if len(a.Hand) != 2 {
		t.Fatalf("failed lookup must not change the hand")
	}
}

func TestTurnRefillsAndAdvances(t *testing.T) {
	g := newTestGame(t, 2, "a", "b", "c", "d")
	g.Start()
	a := g.Current()
	g.Cast(a, a.Hand[0].Rank)
	deckBefore := g.Deck().Len()

	if err := g.Turn(); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(a.Hand) != HandSize || a.LastPlayed != nil {
		t.Fatalf("turn should refill and clear last played")
	}
	if g.Deck().Len() != deckBefore-1 {
		t.Fatalf("deck = %d, want %d", g.Deck().Len(), deckBefore-1)
	}
	if g.Current() != g.Right(a) || g.TurnState().HasCast() {
		t.Fatalf("turn should pass to the right with fresh turn state")
	}
}

func TestTurnToleratesEmptyDeck(t *testing.T) {
	g := newTestGame(t, 2, "a", "b")
	g.Start()
	g.Deck().Burn(g.Deck().Len())
	a := g.Current()
	a.Hand = a.Hand[:2]

	if err := g.Turn(); err != nil {
		t.Fatalf("Turn() with empty deck error = %v, want nil", err)
	}
	if len(a.Hand) != 2 {
		t.Fatalf("hand = %d, want 2", len(a.Hand))
	}
}

func TestHasEnded(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *Game)
		want  bool
	}{
		{name: "fresh round", setup: func(g *Game) {}, want: false},
		{name: "current hand empty", setup: func(g *Game) { g.Current().Hand = nil }, want: true},
		{name: "deck empty", setup: func(g *Game) { g.Deck().Burn(g.Deck().Len()) }, want: true},
		{name: "someone dead", setup: func(g *Game) { g.Right(g.Current()).HP = 0 }, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, 4, "a", "b", "c")
			g.Start()
			tt.setup(g)
			if got := g.HasEnded(); got != tt.want {
				t.Fatalf("HasEnded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoring(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cur, b, c *Player)
		wantCur int
		wantB   int
		wantC   int
	}{
		{
			name:    "hand emptied and alive",
			setup:   func(cur, b, c *Player) { cur.Hand = nil },
			wantCur: 3, wantB: 1, wantC: 1,
		},
		{
			name: "empty deck with cards in hand",
			setup: func(cur, b, c *Player) {
				c.HP = 0
			},
			wantCur: 3, wantB: 1, wantC: 0,
		},
		{
			name:    "current player died",
			setup:   func(cur, b, c *Player) { cur.HP = 0 },
			wantCur: 0, wantB: 1, wantC: 1,
		},
		{
			name: "secret stones bonus for the living only",
			setup: func(cur, b, c *Player) {
				cur.HP = 0
				cur.SecretCards = []Card{{Rank: 1}}
				b.SecretCards = []Card{{Rank: 2}, {Rank: 3}}
			},
			wantCur: 0, wantB: 3, wantC: 1,
		},
		{
			name: "score is capped",
			setup: func(cur, b, c *Player) {
				cur.Score = 7
				cur.Hand = nil
				cur.SecretCards = []Card{{Rank: 1}, {Rank: 2}}
			},
			wantCur: 8, wantB: 1, wantC: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, 6, "a", "b", "c")
			g.Start()
			cur := g.Current()
			b := g.Right(cur)
			c := g.Right(b)
			g.Deck().Burn(g.Deck().Len())
			tt.setup(cur, b, c)

			g.Scoring()
			if cur.Score != tt.wantCur || b.Score != tt.wantB || c.Score != tt.wantC {
				t.Fatalf("scores = %d/%d/%d, want %d/%d/%d", cur.Score, b.Score, c.Score, tt.wantCur, tt.wantB, tt.wantC)
			}
		})
	}
}

func TestScoringPanicsMidRound(t *testing.T) {
	g := newTestGame(t, 6, "a", "b", "c", "d")
	g.Start()
	defer func() {
		if recover() == nil {
			t.Fatalf("Scoring() before the round ended should panic")
		}
	}()
	g.Scoring()
}

func TestHasWinner(t *testing.T) {
	g := newTestGame(t, 1, "a", "b")
	g.Start()
	a, _ := g.Player("a")
	a.Score = 7
	if g.HasWinner() {
		t.Fatalf("7 points is not a win")
	}
	a.AddScore(5)
	if a.Score != MaxScore || !g.HasWinner() {
		t.Fatalf("score = %d, want capped win at %d", a.Score, MaxScore)
	}
	if leaders := g.Leaders(); len(leaders) != 1 || leaders[0] != a {
		t.Fatalf("leaders = %v, want [a]", userIDs(leaders))
	}
}

func TestPhaseNeverRegresses(t *testing.T) {
	g := newTestGame(t, 1, "a", "b")
	g.Start()
	g.End()
	defer func() {
		if recover() == nil {
			t.Fatalf("Start() after End() should panic")
		}
	}()
	g.Start()
}

func TestTakeSecret(t *testing.T) {
	g := newTestGame(t, 8, "a", "b")
	g.Start()
	a := g.Current()
	want := g.SecretPool[0]
	for i := 0; i < SecretPoolSize; i++ {
		if _, ok := g.TakeSecret(a); !ok {
			t.Fatalf("pool exhausted early at %d", i)
		}
	}
	if a.SecretCards[0] != want {
		t.Fatalf("secret pool should be first in first served")
	}
	if _, ok := g.TakeSecret(a); ok {
		t.Fatalf("empty pool should report false")
	}
	if got := totalCards(g); got != DeckSize {
		t.Fatalf("card conservation broken: %d", got)
	}
}
