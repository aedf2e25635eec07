package board

import (
	"fmt"

	"github.com/park285/cheese-board-client/internal/notation"
)

// ApplyError records a move that could not be applied to the position it was
// replayed on. The move is skipped and replay continues.
type ApplyError struct {
	Index  int
	Move   string
	Reason string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply move #%d %s: %s", e.Index+1, e.Move, e.Reason)
}

// Build replays history from the standard starting position.
func Build(history []notation.Move) (Board, []error) {
	return BuildFrom(Initial(), history)
}

// BuildFrom replays history on top of initial. It is a pure function of its
// arguments and always returns a board, skipping moves it cannot apply.
func BuildFrom(initial Board, history []notation.Move) (Board, []error) {
	b := initial
	var errs []error
	for i, m := range history {
		if err := apply(&b, m); err != nil {
			errs = append(errs, &ApplyError{Index: i, Move: m.String(), Reason: err.Error()})
		}
	}
	return b, errs
}

func apply(b *Board, m notation.Move) error {
	if !m.From.Valid() || !m.To.Valid() {
		return fmt.Errorf("square out of range")
	}
	if m.From == m.To {
		return fmt.Errorf("origin equals destination")
	}
	piece := b.At(m.From)
	if piece.IsZero() {
		return fmt.Errorf("no piece on %s", m.From)
	}

	df := m.To.File - m.From.File
	if piece.Type == King && (df == 2 || df == -2) {
		b.Set(m.To, piece)
		b.Set(m.From, Piece{})
		rookFrom := notation.Square{File: 7, Rank: m.To.Rank}
		rookTo := notation.Square{File: m.To.File - 1, Rank: m.To.Rank}
		if df < 0 {
			rookFrom.File = 0
			rookTo.File = m.To.File + 1
		}
		if rook := b.At(rookFrom); !rook.IsZero() {
			b.Set(rookTo, rook)
			b.Set(rookFrom, Piece{})
		}
		return nil
	}

	if piece.Type == Pawn && df != 0 && b.At(m.To).IsZero() {
		b.Set(notation.Square{File: m.To.File, Rank: m.From.Rank}, Piece{})
	}

	b.Set(m.To, piece)
	b.Set(m.From, Piece{})

	if t := promotionType(m.Promotion); t != NoType {
		b.Set(m.To, Piece{Type: t, Color: piece.Color})
	}
	return nil
}

// SideToMove derives the side to move from the number of plies played after a
// position where start was to move.
func SideToMove(start Color, plies int) Color {
	if plies%2 == 0 {
		return start
	}
	return start.Opposite()
}
