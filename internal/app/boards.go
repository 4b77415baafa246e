package app

import (
	"fmt"
	"strings"

	"spellstone/internal/domain"
)

// NameFunc resolves a user ID to a display name.
type NameFunc func(userID string) string

func header(title string) string {
	return "－－－《" + title + "》－－－\n"
}

// RoundBoard lists hit points in turn order.
func RoundBoard(game *domain.Game, name NameFunc) string {
	var b strings.Builder
	b.WriteString(header("Hit Points"))
	for _, p := range game.Players() {
		fmt.Fprintf(&b, "%s (%d ❤️)\n", name(p.UserID), p.HP)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ScoreBoard lists scores in turn order.
func ScoreBoard(game *domain.Game, name NameFunc) string {
	var b strings.Builder
	b.WriteString(header("Scores"))
	for _, p := range game.Players() {
		fmt.Fprintf(&b, "%s (%d pts)\n", name(p.UserID), p.Score)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FinalBoard ranks the table once the game is over.
func FinalBoard(game *domain.Game, name NameFunc) string {
	players := game.Players()
	if len(players) == 0 {
		return strings.TrimRight(header("Final Results"), "\n")
	}
	highest, lowest := players[0].Score, players[0].Score
	for _, p := range players[1:] {
		highest = max(highest, p.Score)
		lowest = min(lowest, p.Score)
	}

	var b strings.Builder
	b.WriteString(header("Final Results"))
	for _, p := range players {
		mark := "👍"
		switch p.Score {
		case highest:
			mark = "🏆"
		case lowest:
			mark = "👎"
		}
		fmt.Fprintf(&b, "%s %s (%d pts)\n", mark, name(p.UserID), p.Score)
	}
	return strings.TrimRight(b.String(), "\n")
}

// UsedCardsBoard shows how many copies of every stone left the deck this round.
func UsedCardsBoard(game *domain.Game) string {
	var b strings.Builder
	b.WriteString(header("Field"))
	fmt.Fprintf(&b, "%d stones left in the deck\n", game.Deck().Len())
	for r := domain.MinRank; r <= domain.MaxRank; r++ {
		used := min(game.UsedCards[r], int(r))
		fmt.Fprintf(&b, "%s\n%s%s\n", domain.Card{Rank: r}, strings.Repeat("◼", used), strings.Repeat("◻", int(r)-used))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RoomInfo lists the game starter first, then the other seated members.
func RoomInfo(starterID string, memberIDs []string, name NameFunc) string {
	var b strings.Builder
	b.WriteString(header("Room"))
	fmt.Fprintf(&b, "Host: %s\n", name(starterID))
	for _, id := range memberIDs {
		if id == starterID {
			continue
		}
		fmt.Fprintf(&b, "%s\n", name(id))
	}
	return strings.TrimRight(b.String(), "\n")
}

// TurnPrompt announces the turn holder.
func TurnPrompt(game *domain.Game, name NameFunc) string {
	cur := game.Current()
	if cur == nil {
		return ""
	}
	return header("Your Move") + name(cur.UserID) + ", choose your spell!"
}
