package board

import (
	"errors"
	"testing"

	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/stretchr/testify/require"
)

func mustHistory(t *testing.T, moves string) []notation.Move {
	t.Helper()
	h, errs := notation.ParseHistory(moves)
	require.Empty(t, errs)
	return h
}

func sq(t *testing.T, s string) notation.Square {
	t.Helper()
	out, err := notation.ParseSquare(s)
	require.NoError(t, err)
	return out
}

func TestBuildEmptyHistoryIsInitial(t *testing.T) {
	b, errs := Build(nil)
	require.Empty(t, errs)
	require.Equal(t, Initial(), b)
	require.Equal(t, 1, b.Kings(White))
	require.Equal(t, 1, b.Kings(Black))
	require.Equal(t, Piece{King, White}, b.At(sq(t, "e1")))
	require.Equal(t, Piece{Queen, Black}, b.At(sq(t, "d8")))
}

func TestBuildOpeningMoves(t *testing.T) {
	b, errs := Build(mustHistory(t, "e2e4 e7e5 g1f3"))
	require.Empty(t, errs)
	require.Equal(t, Piece{Pawn, White}, b.At(sq(t, "e4")))
	require.Equal(t, Piece{Pawn, Black}, b.At(sq(t, "e5")))
	require.Equal(t, Piece{Knight, White}, b.At(sq(t, "f3")))
	for _, s := range []string{"e2", "e7", "g1"} {
		require.True(t, b.At(sq(t, s)).IsZero(), s)
	}
}

func TestBuildKingsideCastle(t *testing.T) {
	b, errs := Build(mustHistory(t, "e2e4 e7e5 g1f3 b8c6 f1c4 g8f6 e1g1"))
	require.Empty(t, errs)
	require.Equal(t, Piece{King, White}, b.At(sq(t, "g1")))
	require.Equal(t, Piece{Rook, White}, b.At(sq(t, "f1")))
	require.True(t, b.At(sq(t, "e1")).IsZero())
	require.True(t, b.At(sq(t, "h1")).IsZero())
}

func TestBuildQueensideCastle(t *testing.T) {
	b, errs := Build(mustHistory(t, "d2d4 d7d5 b1c3 b8c6 c1f4 c8f5 d1d2 d8d7 e1c1 e8c8"))
	require.Empty(t, errs)
	require.Equal(t, Piece{King, White}, b.At(sq(t, "c1")))
	require.Equal(t, Piece{Rook, White}, b.At(sq(t, "d1")))
	require.True(t, b.At(sq(t, "a1")).IsZero())
	require.Equal(t, Piece{King, Black}, b.At(sq(t, "c8")))
	require.Equal(t, Piece{Rook, Black}, b.At(sq(t, "d8")))
	require.True(t, b.At(sq(t, "a8")).IsZero())
	require.True(t, b.At(sq(t, "e8")).IsZero())
}

func TestBuildPromotion(t *testing.T) {
	var base Board
	base.Set(sq(t, "e1"), Piece{King, White})
	base.Set(sq(t, "e8"), Piece{King, Black})
	base.Set(sq(t, "a7"), Piece{Pawn, White})
	base.Set(sq(t, "h2"), Piece{Pawn, Black})

	b, errs := BuildFrom(base, mustHistory(t, "a7a8q h2h1n"))
	require.Empty(t, errs)
	require.Equal(t, Piece{Queen, White}, b.At(sq(t, "a8")))
	require.True(t, b.At(sq(t, "a7")).IsZero())
	require.Equal(t, Piece{Knight, Black}, b.At(sq(t, "h1")))
}

func TestBuildEnPassant(t *testing.T) {
	b, errs := Build(mustHistory(t, "e2e4 a7a6 e4e5 d7d5 e5d6"))
	require.Empty(t, errs)
	require.Equal(t, Piece{Pawn, White}, b.At(sq(t, "d6")))
	require.True(t, b.At(sq(t, "d5")).IsZero(), "captured pawn must be removed")
	require.True(t, b.At(sq(t, "e5")).IsZero())
}

func TestBuildSkipsMoveFromEmptySquare(t *testing.T) {
	b, errs := Build(mustHistory(t, "e2e4 e4e5 e3e4 e7e5"))
	require.Len(t, errs, 1)
	var ae *ApplyError
	require.True(t, errors.As(errs[0], &ae))
	require.Equal(t, 2, ae.Index)
	require.Equal(t, "e3e4", ae.Move)
	require.Equal(t, Piece{Pawn, Black}, b.At(sq(t, "e5")))
	require.Equal(t, 1, b.Kings(White))
}

func TestBuildIsPure(t *testing.T) {
	h := mustHistory(t, "e2e4 e7e5 g1f3 b8c6")
	a, _ := Build(h)
	b, _ := Build(h)
	require.Equal(t, a, b)

	prefix, _ := Build(h[:2])
	suffix, _ := BuildFrom(prefix, h[2:])
	require.Equal(t, a, suffix)
}

func TestSideToMove(t *testing.T) {
	require.Equal(t, White, SideToMove(White, 0))
	require.Equal(t, Black, SideToMove(White, 3))
	require.Equal(t, White, SideToMove(Black, 1))
}

func TestPlacementAndFEN(t *testing.T) {
	b := Initial()
	require.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR", b.Placement())

	after, _ := Build(mustHistory(t, "e2e4"))
	require.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b - - 0 1", after.FEN(Black, 1))
}

func TestFromFEN(t *testing.T) {
	b, turn, err := FromFEN(StartPos)
	require.NoError(t, err)
	require.Equal(t, White, turn)
	require.Equal(t, Initial(), b)

	b, turn, err = FromFEN("4k3/P7/8/8/8/8/8/4K3 b - - 0 1")
	require.NoError(t, err)
	require.Equal(t, Black, turn)
	require.Equal(t, Piece{Pawn, White}, b.At(sq(t, "a7")))
	require.Equal(t, Piece{King, Black}, b.At(sq(t, "e8")))
	require.Equal(t, 1, b.Kings(White))

	_, _, err = FromFEN("not a fen")
	require.Error(t, err)
}

func TestSAN(t *testing.T) {
	require.Equal(t, []string{"e4", "e5", "Nf3"}, SAN("", []string{"e2e4", "e7e5", "g1f3"}))
	require.Equal(t, []string{"e4"}, SAN(StartPos, []string{"e2e4", "e2e4"}))
}

func TestPieceRunes(t *testing.T) {
	for _, r := range "pnbrqkPNBRQK" {
		p, ok := PieceFromRune(r)
		require.True(t, ok)
		require.Equal(t, r, p.Rune())
	}
	_, ok := PieceFromRune('x')
	require.False(t, ok)
}

func TestFromLettersRoundTrip(t *testing.T) {
	b, errs := Build(mustHistory(t, "e2e4 c7c5 g1f3"))
	require.Empty(t, errs)
	require.Equal(t, b, FromLetters(b.Letters()))
}
