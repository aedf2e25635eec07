package notation

import (
	"fmt"
	"strings"
)

// Square is a board coordinate in wire order: File 0..7 = a..h, Rank 0..7 = 1..8.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) String() string {
	if !s.Valid() {
		return "??"
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// ParseSquare decodes a two character square such as "e4".
func ParseSquare(text string) (Square, error) {
	if len(text) != 2 {
		return Square{}, &DecodeError{Token: text, Reason: "square must be 2 characters"}
	}
	f, ok := fileIndex(text[0])
	if !ok {
		return Square{}, &DecodeError{Token: text, Reason: "bad file"}
	}
	r, ok := rankIndex(text[1])
	if !ok {
		return Square{}, &DecodeError{Token: text, Reason: "bad rank"}
	}
	return Square{File: f, Rank: r}, nil
}

// Promotion is the optional 5th character of a move token. Zero means none.
type Promotion byte

const (
	NoPromotion Promotion = 0
	PromoQueen  Promotion = 'q'
	PromoRook   Promotion = 'r'
	PromoBishop Promotion = 'b'
	PromoKnight Promotion = 'n'
)

// Move is one ply as carried on the wire.
type Move struct {
	From      Square
	To        Square
	Promotion Promotion
}

func (m Move) String() string { return Encode(m) }

// DecodeError reports a malformed move or square token.
type DecodeError struct {
	Token  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", e.Token, e.Reason)
}

// Decode parses a 4 or 5 character move token such as "e2e4" or "a7a8q".
func Decode(text string) (Move, error) {
	if n := len(text); n != 4 && n != 5 {
		return Move{}, &DecodeError{Token: text, Reason: "length must be 4 or 5"}
	}
	from, err := ParseSquare(text[0:2])
	if err != nil {
		return Move{}, &DecodeError{Token: text, Reason: "bad origin square"}
	}
	to, err := ParseSquare(text[2:4])
	if err != nil {
		return Move{}, &DecodeError{Token: text, Reason: "bad destination square"}
	}
	m := Move{From: from, To: to}
	if len(text) == 5 {
		switch p := Promotion(lower(text[4])); p {
		case PromoQueen, PromoRook, PromoBishop, PromoKnight:
			m.Promotion = p
		default:
			return Move{}, &DecodeError{Token: text, Reason: "bad promotion piece"}
		}
	}
	return m, nil
}

// Encode is the inverse of Decode.
func Encode(m Move) string {
	var b strings.Builder
	b.Grow(5)
	b.WriteString(m.From.String())
	b.WriteString(m.To.String())
	if m.Promotion != NoPromotion {
		b.WriteByte(byte(m.Promotion))
	}
	return b.String()
}

// ParseHistory decodes a space separated move list. Malformed tokens are skipped
// and reported; the remaining moves keep their relative order.
func ParseHistory(moves string) ([]Move, []error) {
	fields := strings.Fields(moves)
	out := make([]Move, 0, len(fields))
	var errs []error
	for _, tok := range fields {
		m, err := Decode(tok)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

func fileIndex(c byte) (int, bool) {
	if c < 'a' || c > 'h' {
		return 0, false
	}
	return int(c - 'a'), true
}

func rankIndex(c byte) (int, bool) {
	if c < '1' || c > '8' {
		return 0, false
	}
	return int(c - '1'), true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
