// Package movegen produces advisory move destinations for UI highlighting.
//
// The output is pseudo-legal at best: pins, checks and castling rights are not
// considered and a few shortcuts (en passant, castling) are deliberately loose.
// The server decides legality; callers must never block a move because it is
// missing from the candidate list.
package movegen

import (
	"github.com/park285/cheese-board-client/internal/board"
	"github.com/park285/cheese-board-client/internal/notation"
)

type offset struct{ df, dr int }

var (
	knightOffsets = []offset{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = []offset{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	diagonals     = []offset{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	orthogonals   = []offset{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

// Candidates returns destination squares for the piece on from, or nil when the
// square is empty or holds a piece that side may not move.
func Candidates(b board.Board, from notation.Square, side board.Color) []notation.Square {
	piece := b.At(from)
	if piece.IsZero() || piece.Color != side {
		return nil
	}
	switch piece.Type {
	case board.Pawn:
		return pawnTargets(&b, from, piece.Color)
	case board.Knight:
		return stepTargets(&b, from, piece.Color, knightOffsets)
	case board.King:
		out := stepTargets(&b, from, piece.Color, kingOffsets)
		home := 0
		if piece.Color == board.Black {
			home = 7
		}
		if from.File == 4 && from.Rank == home {
			out = append(out,
				notation.Square{File: 6, Rank: home},
				notation.Square{File: 2, Rank: home})
		}
		return out
	case board.Bishop:
		return slideTargets(&b, from, piece.Color, diagonals)
	case board.Rook:
		return slideTargets(&b, from, piece.Color, orthogonals)
	case board.Queen:
		out := slideTargets(&b, from, piece.Color, diagonals)
		return append(out, slideTargets(&b, from, piece.Color, orthogonals)...)
	default:
		return nil
	}
}

func pawnTargets(b *board.Board, from notation.Square, c board.Color) []notation.Square {
	dir, start := 1, 1
	if c == board.Black {
		dir, start = -1, 6
	}
	var out []notation.Square

	one := notation.Square{File: from.File, Rank: from.Rank + dir}
	if one.Valid() && b.At(one).IsZero() {
		out = append(out, one)
		two := notation.Square{File: from.File, Rank: from.Rank + 2*dir}
		if from.Rank == start && two.Valid() && b.At(two).IsZero() {
			out = append(out, two)
		}
	}

	for _, df := range []int{-1, 1} {
		diag := notation.Square{File: from.File + df, Rank: from.Rank + dir}
		if !diag.Valid() {
			continue
		}
		target := b.At(diag)
		if !target.IsZero() && target.Color != c {
			out = append(out, diag)
		}
		// en passant guess: any empty diagonal from the 4th or 5th rank
		if target.IsZero() && (from.Rank == 3 || from.Rank == 4) {
			out = append(out, diag)
		}
	}
	return out
}

func stepTargets(b *board.Board, from notation.Square, c board.Color, offsets []offset) []notation.Square {
	var out []notation.Square
	for _, o := range offsets {
		to := notation.Square{File: from.File + o.df, Rank: from.Rank + o.dr}
		if !to.Valid() {
			continue
		}
		if t := b.At(to); t.IsZero() || t.Color != c {
			out = append(out, to)
		}
	}
	return out
}

func slideTargets(b *board.Board, from notation.Square, c board.Color, dirs []offset) []notation.Square {
	var out []notation.Square
	for _, o := range dirs {
		for i := 1; i < 8; i++ {
			to := notation.Square{File: from.File + o.df*i, Rank: from.Rank + o.dr*i}
			if !to.Valid() {
				break
			}
			t := b.At(to)
			if t.IsZero() {
				out = append(out, to)
				continue
			}
			if t.Color != c {
				out = append(out, to)
			}
			break
		}
	}
	return out
}

// Contains reports whether sq is in list.
func Contains(list []notation.Square, sq notation.Square) bool {
	for _, s := range list {
		if s == sq {
			return true
		}
	}
	return false
}

// NeedsPromotion reports whether moving the piece on from to to is a pawn
// reaching the last rank, in which case the UI must ask for a promotion piece.
func NeedsPromotion(b board.Board, from, to notation.Square) bool {
	p := b.At(from)
	if p.Type != board.Pawn {
		return false
	}
	return to.Rank == 7 || to.Rank == 0
}
