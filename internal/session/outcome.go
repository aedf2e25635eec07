package session

import (
	"strings"

	"github.com/park285/cheese-board-client/internal/board"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// InProgress reports whether status describes a game that is still being played.
func InProgress(status string) bool {
	switch strings.ToLower(status) {
	case "started", "created":
		return true
	default:
		return false
	}
}

// Terminal reports whether status ends the game. An empty status is not terminal.
func Terminal(status string) bool {
	s := strings.TrimSpace(status)
	return s != "" && !InProgress(s)
}

// Outcome phrases a terminal result from the point of view of orientation.
func Outcome(status, winner string, orientation board.Color) boarddto.Outcome {
	status = strings.ToLower(strings.TrimSpace(status))
	w, hasWinner := board.ParseColor(winner)
	won := hasWinner && w == orientation

	pick := func(win, loss string) boarddto.Outcome {
		if !hasWinner {
			return boarddto.Outcome{Kind: boarddto.OutcomeDraw, Text: "Draw"}
		}
		if won {
			return boarddto.Outcome{Kind: boarddto.OutcomeWin, Text: win}
		}
		return boarddto.Outcome{Kind: boarddto.OutcomeLoss, Text: loss}
	}

	switch status {
	case "draw", "stalemate":
		return boarddto.Outcome{Kind: boarddto.OutcomeDraw, Text: "Draw"}
	case "mate":
		return pick("You won by checkmate!", "You lost by checkmate")
	case "resign":
		return pick("Opponent resigned - You win!", "You resigned")
	case "timeout":
		return pick("Opponent ran out of time - You win!", "You ran out of time")
	case "outoftime":
		return pick("You win on time!", "You lost on time")
	}

	out := boarddto.Outcome{Kind: boarddto.OutcomeOther, Text: "Game over: " + status}
	switch {
	case hasWinner && won:
		out.Kind = boarddto.OutcomeWin
	case hasWinner:
		out.Kind = boarddto.OutcomeLoss
	}
	return out
}
