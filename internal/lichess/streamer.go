package lichess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Streamer opens the long-lived NDJSON game stream. It uses net/http because
// the body is unbounded and must be aborted by context cancellation.
type Streamer struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

func NewStreamer(baseURL, token string) *Streamer {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 15 * time.Second
	// no overall timeout: the body stays open for the whole game
	return &Streamer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Transport: transport},
		logger:  zap.NewNop(),
	}
}

// SetLogger replaces the no-op logger used for seek diagnostics.
func (s *Streamer) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Open starts streaming gameID. The caller owns the returned body and must
// close it; cancelling ctx aborts any pending read.
func (s *Streamer) Open(ctx context.Context, gameID string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/api/board/game/stream/%s", s.baseURL, url.PathEscape(gameID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &SubmissionError{Action: "stream", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SubmissionError{Action: "stream", Status: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
