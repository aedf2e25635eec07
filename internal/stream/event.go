package stream

import (
	"encoding/json"
	"strings"
)

// Kind tags an Event.
type Kind int

const (
	KindOther Kind = iota
	KindFull
	KindState
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindState:
		return "state"
	case KindChat:
		return "chat"
	default:
		return "other"
	}
}

// Player identifies one side of a game.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating,omitempty"`
	Title  string `json:"title,omitempty"`
	AI     int    `json:"aiLevel,omitempty"`
}

// DisplayName falls back to the id, then to a computer label.
func (p Player) DisplayName() string {
	if s := strings.TrimSpace(p.Name); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.ID); s != "" {
		return s
	}
	if p.AI > 0 {
		return "Computer"
	}
	return "?"
}

// State carries the mutable part of a game: move list, status and clocks.
type State struct {
	Moves          string
	Status         string
	Winner         string
	WhiteTimeMs    int64
	BlackTimeMs    int64
	HasClock       bool
	WhiteDrawOffer bool
	BlackDrawOffer bool
}

// Full is the snapshot sent first on every stream connection.
type Full struct {
	ID         string
	White      Player
	Black      Player
	InitialFEN string
	State      State
}

// Chat is a chat line; the session ignores it.
type Chat struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Room     string `json:"room"`
}

// Event is one decoded NDJSON record. Exactly one payload matching Kind is set;
// KindOther only carries Type and Raw.
type Event struct {
	Kind  Kind
	Type  string
	Full  *Full
	State *State
	Chat  *Chat
	Raw   json.RawMessage
}

type wireState struct {
	Type        string   `json:"type"`
	Moves       string   `json:"moves"`
	Status      string   `json:"status"`
	Winner      string   `json:"winner"`
	WTime       *float64 `json:"wtime"`
	BTime       *float64 `json:"btime"`
	WhiteTimeMs *float64 `json:"whiteTimeMs"`
	BlackTimeMs *float64 `json:"blackTimeMs"`
	WDraw       bool     `json:"wdraw"`
	BDraw       bool     `json:"bdraw"`
}

func (w wireState) state() State {
	s := State{
		Moves:          strings.TrimSpace(w.Moves),
		Status:         strings.ToLower(strings.TrimSpace(w.Status)),
		Winner:         strings.ToLower(strings.TrimSpace(w.Winner)),
		WhiteDrawOffer: w.WDraw,
		BlackDrawOffer: w.BDraw,
	}
	white, black := firstOf(w.WhiteTimeMs, w.WTime), firstOf(w.BlackTimeMs, w.BTime)
	if white != nil || black != nil {
		s.HasClock = true
		if white != nil {
			s.WhiteTimeMs = int64(*white)
		}
		if black != nil {
			s.BlackTimeMs = int64(*black)
		}
	}
	return s
}

type wireFull struct {
	Type            string    `json:"type"`
	ID              string    `json:"id"`
	White           Player    `json:"white"`
	Black           Player    `json:"black"`
	InitialFEN      string    `json:"initialFen"`
	InitialPosition string    `json:"initialPosition"`
	State           wireState `json:"state"`
}

func firstOf(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func kindOf(tag string) Kind {
	switch tag {
	case "full", "gameFull":
		return KindFull
	case "state", "gameState":
		return KindState
	case "chat", "chatLine":
		return KindChat
	default:
		return KindOther
	}
}

// Decode parses a single record. Unknown tags decode to KindOther without error.
func Decode(line []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{}, err
	}
	ev := Event{Kind: kindOf(env.Type), Type: env.Type}
	switch ev.Kind {
	case KindFull:
		var w wireFull
		if err := json.Unmarshal(line, &w); err != nil {
			return Event{}, err
		}
		fen := w.InitialFEN
		if fen == "" {
			fen = w.InitialPosition
		}
		ev.Full = &Full{ID: w.ID, White: w.White, Black: w.Black, InitialFEN: fen, State: w.State.state()}
	case KindState:
		var w wireState
		if err := json.Unmarshal(line, &w); err != nil {
			return Event{}, err
		}
		st := w.state()
		ev.State = &st
	case KindChat:
		var c Chat
		if err := json.Unmarshal(line, &c); err != nil {
			return Event{}, err
		}
		ev.Chat = &c
	default:
		ev.Raw = append(json.RawMessage(nil), line...)
	}
	return ev, nil
}

// StartedGameID returns the id of the game a seek or account event announces:
// either a bare {"id": ...} record or a gameStart {"game": {"id": ...}}.
func (e Event) StartedGameID() string {
	if e.Kind != KindOther || len(e.Raw) == 0 {
		return ""
	}
	var w struct {
		ID   string `json:"id"`
		Game struct {
			ID     string `json:"id"`
			GameID string `json:"gameId"`
		} `json:"game"`
	}
	if json.Unmarshal(e.Raw, &w) != nil {
		return ""
	}
	switch {
	case w.ID != "":
		return w.ID
	case w.Game.GameID != "":
		return w.Game.GameID
	default:
		return w.Game.ID
	}
}
