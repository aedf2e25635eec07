package session

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/internal/board"
	"github.com/park285/cheese-board-client/internal/clock"
	"github.com/park285/cheese-board-client/internal/movegen"
	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/internal/stream"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// Phase is the connection/game lifecycle of a Session.
type Phase string

const (
	PhaseConnecting Phase = "connecting"
	PhaseSyncing    Phase = "syncing"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"

	// lobby phases exist only on runner views, never on a Session
	PhaseLobby   Phase = "lobby"
	PhaseSeeking Phase = "seeking"
)

var (
	ErrNoGame      = errors.New("no game joined")
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrStopped     = errors.New("runner stopped")

	ErrSeekUnavailable = errors.New("seeking is not configured")
	ErrGameInProgress  = errors.New("a game is in progress")
	ErrAlreadySeeking  = errors.New("already seeking")
	ErrNotSeeking      = errors.New("not seeking")
)

type Options struct {
	// UserID decides orientation: the client plays white iff it equals the white player's id.
	UserID  string
	LowTime time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
}

// Session is the derived state of one game. It has a single owner and is not
// safe for concurrent use; Runner serialises access.
type Session struct {
	gameID string
	me     string
	logger *zap.Logger

	phase       Phase
	synced      bool
	orientation board.Color
	white       stream.Player
	black       stream.Player

	initialFEN string
	start      board.Board
	startTurn  board.Color

	movesRaw  string
	stale     bool
	tokens    []string
	history   []notation.Move
	san       []string
	board     board.Board
	applyErrs []error

	status    string
	winner    string
	hasClock  bool
	drawWhite bool
	drawBlack bool
	clock     *clock.Model
	lowTime   time.Duration

	notice      string
	noticeUntil time.Time
}

func New(gameID string, o Options) *Session {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Session{
		gameID:      gameID,
		me:          strings.ToLower(strings.TrimSpace(o.UserID)),
		logger:      o.Logger,
		phase:       PhaseConnecting,
		orientation: board.White,
		start:       board.Initial(),
		startTurn:   board.White,
		board:       board.Initial(),
		clock:       clock.New(o.Now),
		lowTime:     o.LowTime,
	}
}

func (s *Session) GameID() string           { return s.gameID }
func (s *Session) Phase() Phase             { return s.phase }
func (s *Session) Orientation() board.Color { return s.orientation }
func (s *Session) Status() string           { return s.status }
func (s *Session) Board() board.Board       { return s.board }
func (s *Session) History() []notation.Move { return append([]notation.Move(nil), s.history...) }
func (s *Session) ApplyErrors() []error     { return append([]error(nil), s.applyErrs...) }
func (s *Session) Clock() clock.Snapshot    { return s.clock.Snapshot() }
func (s *Session) Turn() board.Color        { return board.SideToMove(s.startTurn, len(s.tokens)) }
func (s *Session) Ended() bool              { return s.phase == PhaseEnded }

// MyTurn reports whether the local player may move now.
func (s *Session) MyTurn() bool {
	return s.phase == PhaseActive && s.Turn() == s.orientation
}

// Ticking reports whether the side-to-move clock should be advancing.
func (s *Session) Ticking() bool {
	return s.phase == PhaseActive && s.hasClock && s.status == "started"
}

// Apply folds one stream event into the session and reports whether the
// derived view changed. Events other than full and state snapshots are ignored.
func (s *Session) Apply(ev stream.Event) bool {
	switch ev.Kind {
	case stream.KindFull:
		if ev.Full == nil {
			return false
		}
		s.applyFull(*ev.Full)
		return true
	case stream.KindState:
		if ev.State == nil {
			return false
		}
		return s.applyState(*ev.State)
	default:
		return false
	}
}

func (s *Session) applyFull(f stream.Full) {
	if f.ID != "" && s.gameID == "" {
		s.gameID = f.ID
	}
	s.white, s.black = f.White, f.Black
	s.orientation = board.Black
	if s.me == "" || strings.EqualFold(f.White.ID, s.me) {
		s.orientation = board.White
	}

	if f.InitialFEN != s.initialFEN || !s.synced {
		s.initialFEN = f.InitialFEN
		start, turn, err := board.FromFEN(f.InitialFEN)
		if err != nil {
			s.logger.Warn("session_initial_fen_invalid", zap.String("game_id", s.gameID), zap.Error(err))
		}
		s.start, s.startTurn = start, turn
		s.stale = true
	}
	s.synced = true
	s.applyState(f.State)
	s.logger.Info("session_full",
		zap.String("game_id", s.gameID),
		zap.String("orientation", s.orientation.String()),
		zap.String("white", f.White.DisplayName()),
		zap.String("black", f.Black.DisplayName()),
		zap.Int("plies", len(s.tokens)),
	)
}

func (s *Session) applyState(st stream.State) bool {
	changed := false

	movesChanged := s.stale || st.Moves != s.movesRaw
	if movesChanged {
		s.rebuild(st.Moves)
		changed = true
	}

	if st.HasClock {
		toMove := s.Turn()
		if movesChanged || !s.hasClock || !s.clock.Same(st.WhiteTimeMs, st.BlackTimeMs, toMove) {
			s.clock.OnAuthoritative(st.WhiteTimeMs, st.BlackTimeMs, toMove)
			changed = true
		}
		s.hasClock = true
	}

	status := strings.ToLower(strings.TrimSpace(st.Status))
	winner := strings.ToLower(strings.TrimSpace(st.Winner))
	if status != s.status || winner != s.winner {
		s.status, s.winner = status, winner
		changed = true
	}
	if st.WhiteDrawOffer != s.drawWhite || st.BlackDrawOffer != s.drawBlack {
		s.drawWhite, s.drawBlack = st.WhiteDrawOffer, st.BlackDrawOffer
		changed = true
	}

	if next := s.derivePhase(); next != s.phase {
		s.logger.Info("session_phase",
			zap.String("game_id", s.gameID),
			zap.String("from", string(s.phase)),
			zap.String("to", string(next)),
			zap.String("status", s.status),
		)
		s.phase = next
		changed = true
	}
	return changed
}

// rebuild replays the full history from the start position.
func (s *Session) rebuild(moves string) {
	history, decodeErrs := notation.ParseHistory(moves)
	b, applyErrs := board.BuildFrom(s.start, history)

	s.movesRaw = moves
	s.stale = false
	s.tokens = strings.Fields(moves)
	s.history = history
	s.board = b
	s.applyErrs = append(decodeErrs, applyErrs...)
	s.san = board.SAN(s.initialFEN, s.tokens)

	for _, err := range s.applyErrs {
		s.logger.Debug("session_move_skipped", zap.String("game_id", s.gameID), zap.Error(err))
	}
}

func (s *Session) derivePhase() Phase {
	switch {
	case Terminal(s.status):
		return PhaseEnded
	case !s.synced:
		return PhaseConnecting
	case InProgress(s.status):
		return PhaseActive
	default:
		return PhaseSyncing
	}
}

// Disconnected marks the stream as lost and reports whether a reconnect is
// warranted. The last derived board and clocks remain visible.
func (s *Session) Disconnected() bool {
	if s.phase == PhaseEnded {
		return false
	}
	s.synced = false
	s.phase = PhaseConnecting
	return true
}

// SetNotice shows text on the view until the given time.
func (s *Session) SetNotice(text string, until time.Time) {
	s.notice, s.noticeUntil = text, until
}

// Candidates lists advisory destinations for the piece on sq. It is empty
// unless the local player is to move in a started game.
func (s *Session) Candidates(sq notation.Square) []notation.Square {
	if !s.MyTurn() || !sq.Valid() {
		return nil
	}
	return movegen.Candidates(s.board, sq, s.orientation)
}

// Promotions filters targets down to those that need a promotion piece when
// moved to from from, judged on the current board.
func (s *Session) Promotions(from notation.Square, targets []notation.Square) []notation.Square {
	var out []notation.Square
	for _, t := range targets {
		if movegen.NeedsPromotion(s.board, from, t) {
			out = append(out, t)
		}
	}
	return out
}

// View derives the display state at now.
func (s *Session) View(now time.Time) boarddto.GameView {
	turn := s.Turn()
	v := boarddto.GameView{
		GameID:      s.gameID,
		Phase:       string(s.phase),
		Orientation: s.orientation.String(),
		White:       toPlayer(s.white),
		Black:       toPlayer(s.black),
		InitialFEN:  s.initialFEN,
		Moves:       append([]string{}, s.tokens...),
		MovesSAN:    append([]string(nil), s.san...),
		FEN:         s.board.FEN(turn, len(s.tokens)),
		Board:       s.board.Letters(),
		Turn:        turn.String(),
		MyTurn:      s.MyTurn(),
		Status:      s.status,
		StatusText:  s.statusText(),
		Winner:      s.winner,
		DecodeErrs:  len(s.applyErrs),
		UpdatedAt:   now,
	}
	if n := len(s.tokens); n > 0 {
		v.LastMove = s.tokens[n-1]
	}
	if s.phase == PhaseEnded {
		out := Outcome(s.status, s.winner, s.orientation)
		v.Outcome = &out
	}
	switch {
	case s.drawWhite && s.drawBlack:
		v.DrawOffer = "both"
	case s.drawWhite:
		v.DrawOffer = board.White.String()
	case s.drawBlack:
		v.DrawOffer = board.Black.String()
	}
	if s.notice != "" && now.Before(s.noticeUntil) {
		v.Notice = s.notice
	}
	v.WhiteClock = s.clockView(board.White, turn, now)
	v.BlackClock = s.clockView(board.Black, turn, now)
	return v
}

func (s *Session) clockView(side, turn board.Color, now time.Time) boarddto.ClockView {
	if !s.hasClock || !s.clock.Known() {
		return boarddto.ClockView{Display: clock.Unknown}
	}
	running := s.Ticking() && side == turn
	at := now
	if !running {
		at = s.clock.Snapshot().ObservedAt
	}
	left := s.clock.DisplayedRemaining(side, at)
	return boarddto.ClockView{
		RemainingMs: left.Milliseconds(),
		Display:     clock.Format(left),
		LowTime:     clock.LowTime(left, s.lowTime),
		Running:     running,
	}
}

func (s *Session) statusText() string {
	switch s.phase {
	case PhaseConnecting:
		return "Connecting..."
	case PhaseSyncing:
		return "Waiting for game..."
	case PhaseEnded:
		return "Game Over"
	}
	if s.MyTurn() {
		return "Your turn"
	}
	return "Opponent's turn"
}

func toPlayer(p stream.Player) boarddto.Player {
	return boarddto.Player{ID: p.ID, Name: p.DisplayName(), Rating: p.Rating}
}
