package board

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-board-client/internal/notation"
)

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string { return string(c) }

// ParseColor accepts "white"/"black" and the short forms "w"/"b".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

// PieceType is the kind of a piece. Zero is "no piece".
type PieceType uint8

const (
	NoType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// Piece occupies one cell. The zero value is an empty cell.
type Piece struct {
	Type  PieceType
	Color Color
}

func (p Piece) IsZero() bool { return p.Type == NoType }

// Rune returns the FEN letter: upper case for white, lower case for black.
func (p Piece) Rune() rune {
	var r rune
	switch p.Type {
	case Pawn:
		r = 'p'
	case Knight:
		r = 'n'
	case Bishop:
		r = 'b'
	case Rook:
		r = 'r'
	case Queen:
		r = 'q'
	case King:
		r = 'k'
	default:
		return 0
	}
	if p.Color == White {
		r -= 'a' - 'A'
	}
	return r
}

// PieceFromRune is the inverse of Piece.Rune.
func PieceFromRune(r rune) (Piece, bool) {
	color := Black
	if r >= 'A' && r <= 'Z' {
		color = White
		r += 'a' - 'A'
	}
	var t PieceType
	switch r {
	case 'p':
		t = Pawn
	case 'n':
		t = Knight
	case 'b':
		t = Bishop
	case 'r':
		t = Rook
	case 'q':
		t = Queen
	case 'k':
		t = King
	default:
		return Piece{}, false
	}
	return Piece{Type: t, Color: color}, true
}

func promotionType(p notation.Promotion) PieceType {
	switch p {
	case notation.PromoQueen:
		return Queen
	case notation.PromoRook:
		return Rook
	case notation.PromoBishop:
		return Bishop
	case notation.PromoKnight:
		return Knight
	default:
		return NoType
	}
}

// Board is an 8x8 grid in storage order: row 0 is rank 8, column 0 is file a.
type Board [8][8]Piece

// Row maps a wire rank (0 = rank 1) to the storage row.
func Row(rank int) int { return 7 - rank }

func (b *Board) At(sq notation.Square) Piece {
	if !sq.Valid() {
		return Piece{}
	}
	return b[Row(sq.Rank)][sq.File]
}

func (b *Board) Set(sq notation.Square, p Piece) {
	if !sq.Valid() {
		return
	}
	b[Row(sq.Rank)][sq.File] = p
}

// Kings counts the kings of the given color.
func (b *Board) Kings(c Color) int {
	n := 0
	for _, row := range b {
		for _, p := range row {
			if p.Type == King && p.Color == c {
				n++
			}
		}
	}
	return n
}

// Letters returns the grid as FEN letters ("" for empty), the layout the UI consumes.
func (b *Board) Letters() [8][8]string {
	var out [8][8]string
	for r, row := range b {
		for f, p := range row {
			if !p.IsZero() {
				out[r][f] = string(p.Rune())
			}
		}
	}
	return out
}

// FromLetters is the inverse of Letters. Unknown letters leave the cell empty.
func FromLetters(grid [8][8]string) Board {
	var b Board
	for r, row := range grid {
		for f, s := range row {
			if len(s) != 1 {
				continue
			}
			if p, ok := PieceFromRune(rune(s[0])); ok {
				b[r][f] = p
			}
		}
	}
	return b
}

// String renders a plain text diagram, rank 8 first.
func (b *Board) String() string {
	var sb strings.Builder
	for r, row := range b {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for f, p := range row {
			if f > 0 {
				sb.WriteByte(' ')
			}
			if p.IsZero() {
				sb.WriteByte('.')
			} else {
				sb.WriteRune(p.Rune())
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Initial returns the standard starting position.
func Initial() Board {
	var b Board
	for f := 0; f < 8; f++ {
		b[0][f] = Piece{Type: backRank[f], Color: Black}
		b[1][f] = Piece{Type: Pawn, Color: Black}
		b[6][f] = Piece{Type: Pawn, Color: White}
		b[7][f] = Piece{Type: backRank[f], Color: White}
	}
	return b
}
