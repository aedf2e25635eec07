package boarddto

import "time"

// OutcomeKind classifies a finished game from the viewer's perspective.
type OutcomeKind string

const (
	OutcomeWin   OutcomeKind = "win"
	OutcomeLoss  OutcomeKind = "loss"
	OutcomeDraw  OutcomeKind = "draw"
	OutcomeOther OutcomeKind = "other"
)

type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	Text string      `json:"text"`
}

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating,omitempty"`
}

type ClockView struct {
	RemainingMs int64  `json:"remaining_ms"`
	Display     string `json:"display"`
	LowTime     bool   `json:"low_time"`
	Running     bool   `json:"running"`
}

// GameView is the derived, display-ready state handed to UI collaborators.
// Board rows are in storage order: row 0 is rank 8.
type GameView struct {
	GameID      string       `json:"game_id"`
	Phase       string       `json:"phase"`
	Orientation string       `json:"orientation"`
	White       Player       `json:"white"`
	Black       Player       `json:"black"`
	InitialFEN  string       `json:"initial_fen,omitempty"`
	Moves       []string     `json:"moves"`
	MovesSAN    []string     `json:"moves_san,omitempty"`
	LastMove    string       `json:"last_move,omitempty"`
	FEN         string       `json:"fen"`
	Board       [8][8]string `json:"board"`
	Turn        string       `json:"turn"`
	MyTurn      bool         `json:"my_turn"`
	Status      string       `json:"status"`
	StatusText  string       `json:"status_text"`
	Winner      string       `json:"winner,omitempty"`
	Outcome     *Outcome     `json:"outcome,omitempty"`
	WhiteClock  ClockView    `json:"white_clock"`
	BlackClock  ClockView    `json:"black_clock"`
	DrawOffer   string       `json:"draw_offer,omitempty"`
	Notice      string       `json:"notice,omitempty"`
	DecodeErrs  int          `json:"decode_errors,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Ended reports whether the view carries a terminal result.
func (v *GameView) Ended() bool { return v != nil && v.Outcome != nil }
