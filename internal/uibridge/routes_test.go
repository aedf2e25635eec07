package uibridge

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-board-client/internal/board"
	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

type fakeController struct {
	mu      sync.Mutex
	view    *boarddto.GameView
	targets map[string][]notation.Square
	promos  map[string][]notation.Square
	intents []boarddto.Intent
	reject  error
}

func (f *fakeController) View(context.Context) (boarddto.GameView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view == nil {
		return boarddto.GameView{}, false
	}
	return *f.view, true
}

func (f *fakeController) Submit(_ context.Context, in boarddto.Intent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, in)
	return f.reject
}

func (f *fakeController) Candidates(_ context.Context, sq notation.Square) (targets, promotion []notation.Square) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets[sq.String()], f.promos[sq.String()]
}

func (f *fakeController) submitted() []boarddto.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]boarddto.Intent(nil), f.intents...)
}

func sq(t *testing.T, s string) notation.Square {
	t.Helper()
	out, err := notation.ParseSquare(s)
	require.NoError(t, err)
	return out
}

func startView() *boarddto.GameView {
	b := board.Initial()
	return &boarddto.GameView{GameID: "g1", Orientation: "white", Board: b.Letters(), Phase: "active"}
}

func newTestServer(t *testing.T, ctrl Controller) (*httptest.Server, *Hub) {
	t.Helper()
	return newTestServerWithHub(t, ctrl, NewHub(nil))
}

func newTestServerWithHub(t *testing.T, ctrl Controller, hub *Hub) (*httptest.Server, *Hub) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(ctrl, hub, Options{
		Settings: boarddto.ClientSettings{
			TimeControls: []boarddto.TimeControl{{Name: "3+2 Blitz", Minutes: 3, Increment: 2}},
			ConfirmMoves: true,
		},
	}))
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestViewEndpoint(t *testing.T) {
	ctrl := &fakeController{}
	srv, hub := newTestServer(t, ctrl)

	res, err := http.Get(srv.URL + "/view")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	// a cached view stands in until the runner has a game
	require.NoError(t, hub.Publish(context.Background(), boarddto.GameView{GameID: "cached"}))
	res, err = http.Get(srv.URL + "/view")
	require.NoError(t, err)
	var got boarddto.GameView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	res.Body.Close()
	require.Equal(t, "cached", got.GameID)

	ctrl.mu.Lock()
	ctrl.view = startView()
	ctrl.mu.Unlock()
	res, err = http.Get(srv.URL + "/view")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	res.Body.Close()
	require.Equal(t, "g1", got.GameID)
	require.Equal(t, "R", got.Board[7][0])
}

func TestCandidatesEndpointFlagsPromotion(t *testing.T) {
	// the promotion set comes from the controller alone; the published board
	// is stale and must not be consulted
	ctrl := &fakeController{
		view:    startView(),
		targets: map[string][]notation.Square{"a7": {sq(t, "a8"), sq(t, "b8")}},
		promos:  map[string][]notation.Square{"a7": {sq(t, "a8"), sq(t, "b8")}},
	}
	srv, _ := newTestServer(t, ctrl)

	res, err := http.Get(srv.URL + "/candidates?square=a7")
	require.NoError(t, err)
	defer res.Body.Close()
	var set boarddto.CandidateSet
	require.NoError(t, json.NewDecoder(res.Body).Decode(&set))
	require.Equal(t, "a7", set.Square)
	require.Equal(t, []string{"a8", "b8"}, set.Targets)
	require.Equal(t, []string{"a8", "b8"}, set.Promotion)

	res3, err := http.Get(srv.URL + "/candidates?square=e2")
	require.NoError(t, err)
	defer res3.Body.Close()
	var empty boarddto.CandidateSet
	require.NoError(t, json.NewDecoder(res3.Body).Decode(&empty))
	require.Empty(t, empty.Targets)
	require.Empty(t, empty.Promotion)

	res2, err := http.Get(srv.URL + "/candidates?square=z9")
	require.NoError(t, err)
	res2.Body.Close()
	require.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestSnapshotEndpoint(t *testing.T) {
	ctrl := &fakeController{view: startView()}
	srv, _ := newTestServer(t, ctrl)

	res, err := http.Get(srv.URL + "/snapshot.png?size=128")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "image/png", res.Header.Get("Content-Type"))
	img, err := png.Decode(res.Body)
	require.NoError(t, err)
	require.Equal(t, 128, img.Bounds().Dx())

	bad, err := http.Get(srv.URL + "/snapshot.png?size=9999")
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestIntentEndpoint(t *testing.T) {
	ctrl := &fakeController{view: startView()}
	srv, _ := newTestServer(t, ctrl)

	res, err := http.Post(srv.URL+"/intent", "application/json", strings.NewReader(`{"type":"move","move":"e2e4"}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.Equal(t, []boarddto.Intent{{Type: boarddto.IntentMove, Move: "e2e4"}}, ctrl.submitted())

	ctrl.mu.Lock()
	ctrl.reject = errors.New("not your turn")
	ctrl.mu.Unlock()
	res, err = http.Post(srv.URL+"/intent", "application/json", strings.NewReader(`{"type":"resign"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
	var ae boarddto.ActionError
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ae))
	require.Equal(t, "resign", ae.Action)
	require.Equal(t, "not your turn", ae.Message)
}

func TestWebsocketStreamsViewsAndErrors(t *testing.T) {
	ctrl := &fakeController{view: startView()}
	srv, hub := newTestServer(t, ctrl)
	require.NoError(t, hub.Publish(context.Background(), *startView()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var env boarddto.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	require.Equal(t, "view", env.Type)
	require.Equal(t, "g1", env.View.GameID)

	next := *startView()
	next.LastMove = "e2e4"
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, next))
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	require.Equal(t, "e2e4", env.View.LastMove)

	ctrl.mu.Lock()
	ctrl.reject = &notation.DecodeError{Token: "zz", Reason: "bad"}
	ctrl.mu.Unlock()
	require.NoError(t, wsjson.Write(ctx, conn, boarddto.Intent{Type: boarddto.IntentMove, Move: "zz"}))
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	require.Equal(t, "error", env.Type)
	require.Equal(t, "invalid move zz", env.Error.Message)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	id, ch := hub.Join()
	for i := 0; i < 9; i++ {
		require.NoError(t, hub.Publish(context.Background(), boarddto.GameView{GameID: "g"}))
	}
	require.Equal(t, 0, hub.Clients())
	n := 0
	for range ch {
		n++
	}
	require.Equal(t, 8, n)
	hub.Leave(id)
}

func TestSettingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeController{})

	res, err := http.Get(srv.URL + "/settings")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got boarddto.ClientSettings
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.True(t, got.ConfirmMoves)
	require.Equal(t, []boarddto.TimeControl{{Name: "3+2 Blitz", Minutes: 3, Increment: 2}}, got.TimeControls)
}

func TestFollowerMirrorsPumpedViews(t *testing.T) {
	hub := NewHub(nil)
	srv, _ := newTestServerWithHub(t, Follower{Hub: hub}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	views := make(chan boarddto.GameView, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Pump(ctx, views, hub)
	}()

	next := *startView()
	next.LastMove = "e2e4"
	views <- next
	require.Eventually(t, func() bool {
		v, ok := hub.Last()
		return ok && v.LastMove == "e2e4"
	}, time.Second, 10*time.Millisecond)

	res, err := http.Get(srv.URL + "/view")
	require.NoError(t, err)
	var got boarddto.GameView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	res.Body.Close()
	require.Equal(t, "e2e4", got.LastMove)

	res, err = http.Post(srv.URL+"/intent", "application/json", strings.NewReader(`{"type":"resign"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
	var ae boarddto.ActionError
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ae))
	require.Equal(t, ErrReadOnly.Error(), ae.Message)

	close(views)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("pump did not stop after its source closed")
	}
}
