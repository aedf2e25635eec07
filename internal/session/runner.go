package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/internal/lichess"
	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/internal/stream"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// Source opens the NDJSON event stream of a game.
type Source interface {
	Open(ctx context.Context, gameID string) (io.ReadCloser, error)
}

// Actions sends fire-and-forget requests to the game server.
type Actions interface {
	SubmitMove(ctx context.Context, gameID string, m notation.Move) error
	Resign(ctx context.Context, gameID string) error
	OfferDraw(ctx context.Context, gameID string) error
}

// Publisher receives every changed view.
type Publisher interface {
	Publish(ctx context.Context, v boarddto.GameView) error
}

// Seeker posts a lobby seek and blocks until a game starts or ctx ends.
type Seeker interface {
	Seek(ctx context.Context, req lichess.SeekRequest) (string, error)
}

// Archiver stores a finished game. It is called at most once per game.
type Archiver interface {
	Archive(ctx context.Context, v boarddto.GameView) error
}

// Config tunes a Runner. ReconnectMax bounds consecutive failed reconnects;
// zero means unlimited. TimeControls are the seek presets by name.
type Config struct {
	UserID        string
	Tick          time.Duration
	SubmitTimeout time.Duration
	ReconnectBase time.Duration
	ReconnectMax  int
	LowTime       time.Duration
	NoticeTTL     time.Duration
	TimeControls  map[string]lichess.SeekRequest
	Now           func() time.Time
	Logger        *zap.Logger
}

func (c *Config) defaults() {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 8 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = 500 * time.Millisecond
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type RunnerOption func(*Runner)

func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.publishers = append(r.publishers, p)
		}
	}
}

func WithArchiver(a Archiver) RunnerOption {
	return func(r *Runner) { r.archiver = a }
}

func WithSeeker(s Seeker) RunnerOption {
	return func(r *Runner) { r.seeker = s }
}

type msg interface{ isRunnerMsg() }

type joinMsg struct{ gameID string }
type leaveMsg struct{}
type eventMsg struct {
	conn string
	ev   stream.Event
}
type disconnectMsg struct {
	conn string
	err  error
}
type reconnectMsg struct{ gen int }
type intentMsg struct {
	in    boarddto.Intent
	reply chan error
}
type resultMsg struct {
	gameID string
	action string
	err    error
}
type refreshMsg struct{}
type viewMsg struct{ reply chan viewReply }
type candidatesMsg struct {
	sq    notation.Square
	reply chan candidatesReply
}
type seekResultMsg struct {
	id     string
	gameID string
	err    error
}

type viewReply struct {
	view boarddto.GameView
	ok   bool
}

type candidatesReply struct {
	targets   []notation.Square
	promotion []notation.Square
}

func (joinMsg) isRunnerMsg()       {}
func (leaveMsg) isRunnerMsg()      {}
func (eventMsg) isRunnerMsg()      {}
func (disconnectMsg) isRunnerMsg() {}
func (reconnectMsg) isRunnerMsg()  {}
func (intentMsg) isRunnerMsg()     {}
func (resultMsg) isRunnerMsg()     {}
func (refreshMsg) isRunnerMsg()    {}
func (viewMsg) isRunnerMsg()       {}
func (candidatesMsg) isRunnerMsg() {}
func (seekResultMsg) isRunnerMsg() {}

// Runner owns the current Session and serialises every mutation through its
// inbox. Stream reads, outbound requests and publishing run on other goroutines
// and report back as messages.
type Runner struct {
	cfg        Config
	source     Source
	actions    Actions
	publishers []Publisher
	archiver   Archiver
	seeker     Seeker
	log        *zap.Logger

	inbox  chan msg
	pubCh  chan boarddto.GameView
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	// owned by the loop goroutine
	sess         *Session
	gen          int
	conn         string
	streamCancel context.CancelFunc
	attempts     int
	archived     bool
	ticker       *time.Ticker

	seekID      string
	seekCancel  context.CancelFunc
	lobbyNotice string
	lobbyUntil  time.Time
}

func NewRunner(parent context.Context, source Source, actions Actions, cfg Config, opts ...RunnerOption) *Runner {
	cfg.defaults()
	ctx, cancel := context.WithCancel(parent)
	r := &Runner{
		cfg:     cfg,
		source:  source,
		actions: actions,
		log:     cfg.Logger,
		inbox:   make(chan msg, 64),
		pubCh:   make(chan boarddto.GameView, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.wg.Add(1)
	go r.publishLoop()
	go r.loop()
	return r
}

// Join discards any current game and starts following gameID.
func (r *Runner) Join(gameID string) { r.send(r.ctx, joinMsg{gameID: gameID}) }

// Leave discards the current game and closes its stream.
func (r *Runner) Leave() { r.send(r.ctx, leaveMsg{}) }

// Stop cancels everything and waits for the loop to exit.
func (r *Runner) Stop() {
	r.cancel()
	<-r.done
}

func (r *Runner) Done() <-chan struct{} { return r.done }

// Submit validates an intent against the current session and sends it in the
// background. A nil error means the request was dispatched, not accepted.
func (r *Runner) Submit(ctx context.Context, in boarddto.Intent) error {
	reply := make(chan error, 1)
	if !r.send(ctx, intentMsg{in: in, reply: reply}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// View returns the current view; ok is false when no game is joined.
func (r *Runner) View(ctx context.Context) (boarddto.GameView, bool) {
	reply := make(chan viewReply, 1)
	if !r.send(ctx, viewMsg{reply: reply}) {
		return boarddto.GameView{}, false
	}
	select {
	case rep := <-reply:
		return rep.view, rep.ok
	case <-ctx.Done():
	case <-r.done:
	}
	return boarddto.GameView{}, false
}

// Candidates returns advisory destinations for the piece on sq and the subset
// of them that needs a promotion piece, both judged on the same board.
func (r *Runner) Candidates(ctx context.Context, sq notation.Square) (targets, promotion []notation.Square) {
	reply := make(chan candidatesReply, 1)
	if !r.send(ctx, candidatesMsg{sq: sq, reply: reply}) {
		return nil, nil
	}
	select {
	case out := <-reply:
		return out.targets, out.promotion
	case <-ctx.Done():
	case <-r.done:
	}
	return nil, nil
}

func (r *Runner) send(ctx context.Context, m msg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		var tickC <-chan time.Time
		if r.ticker != nil {
			tickC = r.ticker.C
		}
		select {
		case <-r.ctx.Done():
			r.teardown()
			return
		case <-tickC:
			r.publish()
		case m := <-r.inbox:
			r.handle(m)
		}
		r.syncTicker()
	}
}

func (r *Runner) handle(m msg) {
	switch m := m.(type) {
	case joinMsg:
		r.stopSeek()
		r.discard()
		r.sess = New(m.gameID, Options{
			UserID:  r.cfg.UserID,
			LowTime: r.cfg.LowTime,
			Now:     r.cfg.Now,
			Logger:  r.log,
		})
		r.log.Info("session_join", zap.String("game_id", m.gameID))
		r.connect()
		r.publish()

	case leaveMsg:
		r.stopSeek()
		if r.sess != nil {
			r.log.Info("session_leave", zap.String("game_id", r.sess.GameID()))
		}
		r.discard()

	case eventMsg:
		if r.sess == nil || m.conn != r.conn {
			return
		}
		r.attempts = 0
		if !r.sess.Apply(m.ev) {
			return
		}
		r.publish()
		if r.sess.Ended() {
			r.stopStream()
			r.archive()
		}

	case disconnectMsg:
		if m.conn != r.conn {
			return
		}
		r.onDisconnect(m.err)

	case reconnectMsg:
		if r.sess == nil || m.gen != r.gen || r.conn != "" || r.sess.Ended() {
			return
		}
		r.connect()

	case intentMsg:
		m.reply <- r.dispatch(m.in)

	case resultMsg:
		if r.sess == nil || m.gameID != r.sess.GameID() {
			return
		}
		r.onResult(m.action, m.err)

	case refreshMsg:
		r.publish()

	case viewMsg:
		v, ok := r.view()
		m.reply <- viewReply{view: v, ok: ok}

	case candidatesMsg:
		if r.sess == nil {
			m.reply <- candidatesReply{}
			return
		}
		targets := r.sess.Candidates(m.sq)
		m.reply <- candidatesReply{targets: targets, promotion: r.sess.Promotions(m.sq, targets)}

	case seekResultMsg:
		if m.id != r.seekID {
			return
		}
		r.onSeekResult(m.gameID, m.err)
	}
}

// connect opens a new stream for the current game, cancelling any previous one.
func (r *Runner) connect() {
	r.stopStream()
	ctx, cancel := context.WithCancel(r.ctx)
	conn := uuid.NewString()
	r.conn, r.streamCancel = conn, cancel
	gameID := r.sess.GameID()
	r.log.Info("stream_open", zap.String("game_id", gameID), zap.String("conn", conn), zap.Int("attempt", r.attempts))
	go r.readStream(ctx, conn, gameID)
}

func (r *Runner) readStream(ctx context.Context, conn, gameID string) {
	body, err := r.source.Open(ctx, gameID)
	if err != nil {
		r.send(ctx, disconnectMsg{conn: conn, err: err})
		return
	}
	defer body.Close()
	// unblock a pending Read when the connection is superseded
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	reader := stream.NewReader(r.log)
	err = reader.Consume(ctx, body, func(ev stream.Event) {
		r.send(ctx, eventMsg{conn: conn, ev: ev})
	})
	r.send(ctx, disconnectMsg{conn: conn, err: err})
}

func (r *Runner) stopStream() {
	if r.streamCancel != nil {
		r.streamCancel()
	}
	r.streamCancel = nil
	r.conn = ""
}

func (r *Runner) onDisconnect(err error) {
	r.stopStream()
	if r.sess == nil {
		return
	}
	gameID := r.sess.GameID()
	if !r.sess.Disconnected() {
		return
	}

	var se *lichess.SubmissionError
	if errors.As(err, &se) && permanent(se.Status) {
		r.log.Warn("stream_rejected", zap.String("game_id", gameID), zap.Int("status", se.Status))
		r.notice(se.Message())
		return
	}

	r.attempts++
	if r.cfg.ReconnectMax > 0 && r.attempts > r.cfg.ReconnectMax {
		r.log.Warn("stream_give_up", zap.String("game_id", gameID), zap.Int("attempts", r.attempts-1), zap.Error(err))
		r.notice("Connection lost")
		return
	}

	delay := lichess.Backoff(r.attempts, r.cfg.ReconnectBase)
	r.log.Info("stream_disconnected",
		zap.String("game_id", gameID),
		zap.Error(err),
		zap.Int("attempt", r.attempts),
		zap.Duration("retry_in", delay),
	)
	r.publish()

	gen := r.gen
	r.after(delay, reconnectMsg{gen: gen})
}

func permanent(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

func (r *Runner) dispatch(in boarddto.Intent) error {
	switch in.Type {
	case boarddto.IntentSeek:
		return r.startSeek(in.Control)
	case boarddto.IntentCancelSeek:
		if r.seekID == "" {
			return ErrNotSeeking
		}
		r.log.Info("seek_cancel", zap.String("seek", r.seekID))
		r.stopSeek()
		r.publish()
		return nil
	}
	if r.sess == nil {
		return ErrNoGame
	}
	if r.sess.Ended() {
		return ErrGameOver
	}
	gameID := r.sess.GameID()

	var (
		action string
		call   func(ctx context.Context) error
	)
	switch in.Type {
	case boarddto.IntentMove:
		mv, err := notation.Decode(in.Move)
		if err != nil {
			return err
		}
		if !r.sess.MyTurn() {
			return ErrNotYourTurn
		}
		action = "move"
		call = func(ctx context.Context) error { return r.actions.SubmitMove(ctx, gameID, mv) }
	case boarddto.IntentResign:
		action = "resign"
		call = func(ctx context.Context) error { return r.actions.Resign(ctx, gameID) }
	case boarddto.IntentDraw:
		action = "draw"
		call = func(ctx context.Context) error { return r.actions.OfferDraw(ctx, gameID) }
	default:
		return boarddto.ActionError{Action: string(in.Type), Message: "unknown action"}
	}

	r.log.Info("action_submit", zap.String("game_id", gameID), zap.String("action", action), zap.String("move", in.Move))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.SubmitTimeout)
		defer cancel()
		err := call(ctx)
		r.send(r.ctx, resultMsg{gameID: gameID, action: action, err: err})
	}()
	return nil
}

func (r *Runner) onResult(action string, err error) {
	if err == nil {
		r.log.Debug("action_ok", zap.String("game_id", r.sess.GameID()), zap.String("action", action))
		return
	}
	r.log.Warn("action_error", zap.String("game_id", r.sess.GameID()), zap.String("action", action), zap.Error(err))
	text := action + " failed"
	var se *lichess.SubmissionError
	if errors.As(err, &se) {
		text = se.Message()
	} else if errors.Is(err, context.DeadlineExceeded) {
		text = action + " timed out"
	}
	r.notice(text)
}

// notice shows text for NoticeTTL and republishes once it expires.
func (r *Runner) notice(text string) {
	until := r.cfg.Now().Add(r.cfg.NoticeTTL)
	if r.sess != nil {
		r.sess.SetNotice(text, until)
	} else {
		r.lobbyNotice, r.lobbyUntil = text, until
	}
	r.publish()
	r.after(r.cfg.NoticeTTL, refreshMsg{})
}

func (r *Runner) after(d time.Duration, m msg) {
	t := time.NewTimer(d)
	go func() {
		defer t.Stop()
		select {
		case <-t.C:
			r.send(r.ctx, m)
		case <-r.ctx.Done():
		}
	}()
}

func (r *Runner) syncTicker() {
	want := r.sess != nil && r.sess.Ticking()
	switch {
	case want && r.ticker == nil:
		r.ticker = time.NewTicker(r.cfg.Tick)
	case !want && r.ticker != nil:
		r.ticker.Stop()
		r.ticker = nil
	}
}

// startSeek posts the named preset in the background. Only one seek runs at a
// time and never while a game is live.
func (r *Runner) startSeek(control string) error {
	if r.seeker == nil {
		return ErrSeekUnavailable
	}
	if r.sess != nil && !r.sess.Ended() {
		return ErrGameInProgress
	}
	if r.seekID != "" {
		return ErrAlreadySeeking
	}
	req, ok := r.cfg.TimeControls[control]
	if !ok {
		return boarddto.ActionError{Action: "seek", Message: "unknown time control " + control}
	}

	ctx, cancel := context.WithCancel(r.ctx)
	id := uuid.NewString()
	r.seekID, r.seekCancel = id, cancel
	r.lobbyNotice = ""
	r.log.Info("seek_start", zap.String("seek", id), zap.String("control", control))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		gameID, err := r.seeker.Seek(ctx, req)
		r.send(r.ctx, seekResultMsg{id: id, gameID: gameID, err: err})
	}()
	r.publish()
	return nil
}

func (r *Runner) stopSeek() {
	if r.seekCancel != nil {
		r.seekCancel()
	}
	r.seekID, r.seekCancel = "", nil
}

func (r *Runner) onSeekResult(gameID string, err error) {
	r.stopSeek()
	if err == nil && gameID != "" {
		r.log.Info("seek_matched", zap.String("game_id", gameID))
		r.handle(joinMsg{gameID: gameID})
		return
	}
	r.log.Warn("seek_error", zap.Error(err))
	text := "Failed to find game. Please try again."
	var se *lichess.SubmissionError
	if errors.As(err, &se) && se.Status != 0 {
		text = se.Message()
	}
	r.notice(text)
}

// view is what UIs see: the lobby while seeking or before any game, the
// session otherwise. ok is false when there is nothing to show, which needs no
// game, no notice and no way to seek.
func (r *Runner) view() (boarddto.GameView, bool) {
	now := r.cfg.Now()
	if r.seekID == "" && r.sess != nil {
		return r.sess.View(now), true
	}
	notice := ""
	if now.Before(r.lobbyUntil) {
		notice = r.lobbyNotice
	}
	if r.seekID == "" && notice == "" && r.seeker == nil {
		return boarddto.GameView{}, false
	}
	v := boarddto.GameView{Phase: string(PhaseLobby), StatusText: "Choose a time control", Notice: notice, UpdatedAt: now}
	if r.seekID != "" {
		v.Phase = string(PhaseSeeking)
		v.StatusText = "Seeking opponent..."
	}
	return v, true
}

func (r *Runner) publish() {
	if len(r.publishers) == 0 {
		return
	}
	v, ok := r.view()
	if !ok {
		return
	}
	select {
	case r.pubCh <- v:
	default:
		// keep only the latest view
		select {
		case <-r.pubCh:
		default:
		}
		r.pubCh <- v
	}
}

func (r *Runner) publishLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case v := <-r.pubCh:
			for _, p := range r.publishers {
				ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
				if err := p.Publish(ctx, v); err != nil {
					r.log.Warn("view_publish_error", zap.String("game_id", v.GameID), zap.Error(err))
				}
				cancel()
			}
		}
	}
}

func (r *Runner) archive() {
	if r.archived || r.archiver == nil {
		return
	}
	r.archived = true
	v := r.sess.View(r.cfg.Now())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 10*time.Second)
		defer cancel()
		if err := r.archiver.Archive(ctx, v); err != nil {
			r.log.Warn("archive_error", zap.String("game_id", v.GameID), zap.Error(err))
			return
		}
		r.log.Info("archive_saved", zap.String("game_id", v.GameID), zap.String("status", v.Status))
	}()
}

// discard drops the current session; stale stream and result messages are
// ignored afterwards because their ids no longer match.
func (r *Runner) discard() {
	r.stopStream()
	r.gen++
	r.sess = nil
	r.attempts = 0
	r.archived = false
}

func (r *Runner) teardown() {
	r.stopSeek()
	r.discard()
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.wg.Wait()
}
