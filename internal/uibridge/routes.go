package uibridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/internal/snapshot"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// Controller is the game-side API the bridge drives.
type Controller interface {
	View(ctx context.Context) (boarddto.GameView, bool)
	Submit(ctx context.Context, in boarddto.Intent) error
	Candidates(ctx context.Context, sq notation.Square) (targets, promotion []notation.Square)
}

type Options struct {
	ShowCoordinates bool
	OriginPatterns  []string
	Settings        boarddto.ClientSettings
	Logger          *zap.Logger
}

type server struct {
	ctrl Controller
	hub  *Hub
	opts Options
	log  *zap.Logger
}

// NewRouter exposes the current game to UI collaborators over HTTP and a websocket.
func NewRouter(ctrl Controller, hub *Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &server{ctrl: ctrl, hub: hub, opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/view", s.view)
	r.Get("/settings", s.settings)
	r.Get("/snapshot.png", s.snapshot)
	r.Get("/candidates", s.candidates)
	r.Post("/intent", s.intent)
	r.Get("/ws", s.ws)
	return r
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "clients": s.hub.Clients()})
}

func (s *server) current(ctx context.Context) (boarddto.GameView, bool) {
	if v, ok := s.ctrl.View(ctx); ok {
		return v, true
	}
	// fall back to the last published view, e.g. one restored from cache
	return s.hub.Last()
}

func (s *server) view(w http.ResponseWriter, r *http.Request) {
	v, ok := s.current(r.Context())
	if !ok {
		http.Error(w, "no game", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// settings carries the presets behind the seek buttons and the UI toggles.
func (s *server) settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Settings)
}

func (s *server) candidates(w http.ResponseWriter, r *http.Request) {
	sq, err := notation.ParseSquare(r.URL.Query().Get("square"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.candidateSet(r.Context(), sq))
}

func (s *server) candidateSet(ctx context.Context, sq notation.Square) boarddto.CandidateSet {
	out := boarddto.CandidateSet{Square: sq.String(), Targets: []string{}}
	targets, promotion := s.ctrl.Candidates(ctx, sq)
	for _, t := range targets {
		out.Targets = append(out.Targets, t.String())
	}
	for _, t := range promotion {
		out.Promotion = append(out.Promotion, t.String())
	}
	return out
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := s.current(r.Context())
	if !ok {
		http.Error(w, "no game", http.StatusNotFound)
		return
	}
	opts := snapshot.Options{ShowCoordinates: s.opts.ShowCoordinates}
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "bad size", http.StatusBadRequest)
			return
		}
		opts.Size = n
	}
	if raw := r.URL.Query().Get("square"); raw != "" {
		if sq, err := notation.ParseSquare(raw); err == nil {
			opts.Marks, _ = s.ctrl.Candidates(r.Context(), sq)
		}
	}
	png, err := snapshot.RenderPNG(v, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// intent is the plain-HTTP equivalent of a websocket intent message.
func (s *server) intent(w http.ResponseWriter, r *http.Request) {
	var in boarddto.Intent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.ctrl.Submit(r.Context(), in); err != nil {
		writeJSON(w, http.StatusConflict, actionError(in, err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		s.log.Warn("ui_ws_accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	id, views := s.hub.Join()
	defer s.hub.Leave(id)
	s.log.Info("ui_ws_join", zap.String("client", id))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errs := make(chan boarddto.ActionError, 4)
	go func() {
		defer cancel()
		for {
			var env boarddto.Envelope
			select {
			case <-ctx.Done():
				return
			case v, ok := <-views:
				if !ok {
					return
				}
				env = boarddto.Envelope{Type: "view", View: &v}
			case ae := <-errs:
				env = boarddto.Envelope{Type: "error", Error: &ae}
			}
			wctx, wcancel := context.WithTimeout(ctx, 3*time.Second)
			err := wsjson.Write(wctx, conn, env)
			wcancel()
			if err != nil {
				return
			}
		}
	}()

	for {
		var in boarddto.Intent
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					s.log.Debug("ui_ws_read", zap.String("client", id), zap.Error(err))
				}
			}
			return
		}
		if err := s.ctrl.Submit(ctx, in); err != nil {
			select {
			case errs <- actionError(in, err):
			default:
			}
		}
	}
}

func actionError(in boarddto.Intent, err error) boarddto.ActionError {
	var ae boarddto.ActionError
	if errors.As(err, &ae) {
		return ae
	}
	ae = boarddto.ActionError{Action: string(in.Type), Message: err.Error()}
	var de *notation.DecodeError
	if errors.As(err, &de) {
		ae.Message = "invalid move " + strings.TrimSpace(in.Move)
	}
	return ae
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
