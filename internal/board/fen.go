package board

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board-client/internal/notation"
)

// StartPos is the server's marker for the standard starting position.
const StartPos = "startpos"

// FromFEN decodes the placement and side to move of a FEN string.
// An empty string or "startpos" yields the standard position with white to move.
func FromFEN(fen string) (Board, Color, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == StartPos {
		return Initial(), White, nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Initial(), White, fmt.Errorf("parse fen: %w", err)
	}
	game := nchess.NewGame(opt)
	pos := game.Position()

	var b Board
	for sq, p := range pos.Board().SquareMap() {
		piece, ok := fromLibPiece(p)
		if !ok {
			continue
		}
		b.Set(notation.Square{File: int(sq.File()), Rank: int(sq.Rank())}, piece)
	}
	turn := White
	if pos.Turn() == nchess.Black {
		turn = Black
	}
	return b, turn, nil
}

// Placement returns the piece placement field of the FEN for b.
func (b *Board) Placement() string {
	m := make(map[nchess.Square]nchess.Piece, 32)
	for r, row := range b {
		for f, p := range row {
			lp := toLibPiece(p)
			if lp == nchess.NoPiece {
				continue
			}
			m[nchess.NewSquare(nchess.File(f), nchess.Rank(7-r))] = lp
		}
	}
	return nchess.NewBoard(m).String()
}

// FEN renders a display FEN. Castling and en passant fields are not tracked by the
// client and are written as "-".
func (b *Board) FEN(turn Color, plies int) string {
	side := "w"
	if turn == Black {
		side = "b"
	}
	return fmt.Sprintf("%s %s - - 0 %d", b.Placement(), side, plies/2+1)
}

// SAN renders the move list in algebraic notation. The conversion replays moves
// through a full rules engine and stops at the first move it rejects, so the
// result may be shorter than uci.
func SAN(initialFEN string, uci []string) []string {
	var opts []func(*nchess.Game)
	if fen := strings.TrimSpace(initialFEN); fen != "" && fen != StartPos {
		opt, err := nchess.FEN(fen)
		if err != nil {
			return nil
		}
		opts = append(opts, opt)
	}
	game := nchess.NewGame(opts...)
	out := make([]string, 0, len(uci))
	for _, mv := range uci {
		pos := game.Position()
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			break
		}
		moves := game.Moves()
		if len(moves) == 0 {
			break
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(pos, moves[len(moves)-1]))
	}
	return out
}

func fromLibPiece(p nchess.Piece) (Piece, bool) {
	if p == nchess.NoPiece {
		return Piece{}, false
	}
	color := White
	if p.Color() == nchess.Black {
		color = Black
	}
	var t PieceType
	switch p.Type() {
	case nchess.Pawn:
		t = Pawn
	case nchess.Knight:
		t = Knight
	case nchess.Bishop:
		t = Bishop
	case nchess.Rook:
		t = Rook
	case nchess.Queen:
		t = Queen
	case nchess.King:
		t = King
	default:
		return Piece{}, false
	}
	return Piece{Type: t, Color: color}, true
}

var libPieces = map[Piece]nchess.Piece{
	{Pawn, White}: nchess.WhitePawn, {Knight, White}: nchess.WhiteKnight,
	{Bishop, White}: nchess.WhiteBishop, {Rook, White}: nchess.WhiteRook,
	{Queen, White}: nchess.WhiteQueen, {King, White}: nchess.WhiteKing,
	{Pawn, Black}: nchess.BlackPawn, {Knight, Black}: nchess.BlackKnight,
	{Bishop, Black}: nchess.BlackBishop, {Rook, Black}: nchess.BlackRook,
	{Queen, Black}: nchess.BlackQueen, {King, Black}: nchess.BlackKing,
}

func toLibPiece(p Piece) nchess.Piece {
	if lp, ok := libPieces[p]; ok {
		return lp
	}
	return nchess.NoPiece
}
