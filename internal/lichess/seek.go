package lichess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/internal/stream"
)

// ErrNoOpponent is returned when the seek stream ends without a game.
var ErrNoOpponent = errors.New("seek ended without a game")

// SeekRequest is one lobby seek, e.g. 3+2. Minutes may be fractional on the
// server but presets only use whole minutes.
type SeekRequest struct {
	Minutes   int
	Increment int
	Rated     bool
}

func (r SeekRequest) form() url.Values {
	return url.Values{
		"time":      {strconv.Itoa(r.Minutes)},
		"increment": {strconv.Itoa(r.Increment)},
		"rated":     {strconv.FormatBool(r.Rated)},
	}
}

// Seek posts a seek and blocks on its NDJSON response until a record names the
// started game. Cancelling ctx withdraws the seek.
func (s *Streamer) Seek(ctx context.Context, req SeekRequest) (string, error) {
	u := s.baseURL + "/api/board/seek"
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(req.form().Encode()))
	if err != nil {
		return "", fmt.Errorf("build seek request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hreq.Header.Set("Accept", "application/x-ndjson")
	if s.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(hreq)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return "", cerr
		}
		return "", &SubmissionError{Action: "seek", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &SubmissionError{Action: "seek", Status: resp.StatusCode, Body: string(body)}
	}

	// the first record carrying a game id wins; the rest of the body is discarded
	var gameID string
	found, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(found, func() { _ = resp.Body.Close() })
	defer stop()
	reader := stream.NewReader(s.logger)
	err = reader.Consume(found, resp.Body, func(ev stream.Event) {
		if gameID != "" {
			return
		}
		if id := ev.StartedGameID(); id != "" {
			gameID = id
			cancel()
		}
	})
	if gameID != "" {
		s.logger.Info("seek_matched", zap.String("game_id", gameID))
		return gameID, nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if errors.Is(err, stream.ErrDisconnected) {
		return "", ErrNoOpponent
	}
	return "", &SubmissionError{Action: "seek", Err: err}
}
