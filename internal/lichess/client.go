package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-board-client/internal/notation"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// Client performs the short request/response calls of the board API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.headers = func() map[string]string {
			return map[string]string{"Authorization": "Bearer " + token}
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 8 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitMove posts one move token. Acceptance is confirmed only by the stream.
func (c *Client) SubmitMove(ctx context.Context, gameID string, m notation.Move) error {
	path := fmt.Sprintf("/api/board/game/%s/move/%s", url.PathEscape(gameID), notation.Encode(m))
	return c.doJSON(ctx, "move", fasthttp.MethodPost, path, nil, false)
}

func (c *Client) Resign(ctx context.Context, gameID string) error {
	path := fmt.Sprintf("/api/board/game/%s/resign", url.PathEscape(gameID))
	return c.doJSON(ctx, "resign", fasthttp.MethodPost, path, nil, false)
}

// OfferDraw offers a draw, or accepts the opponent's pending offer.
func (c *Client) OfferDraw(ctx context.Context, gameID string) error {
	path := fmt.Sprintf("/api/board/game/%s/draw/yes", url.PathEscape(gameID))
	return c.doJSON(ctx, "draw", fasthttp.MethodPost, path, nil, false)
}

func (c *Client) Account(ctx context.Context) (*Account, error) {
	var acc Account
	if err := c.doJSON(ctx, "account", fasthttp.MethodGet, "/api/account", &acc, true); err != nil {
		return nil, err
	}
	acc.ID = strings.ToLower(acc.ID)
	return &acc, nil
}

// Playing lists the account's ongoing games, most urgent first as the server orders them.
func (c *Client) Playing(ctx context.Context) ([]OngoingGame, error) {
	var resp playingResponse
	if err := c.doJSON(ctx, "playing", fasthttp.MethodGet, "/api/account/playing", &resp, true); err != nil {
		return nil, err
	}
	return resp.NowPlaying, nil
}

func (c *Client) doJSON(ctx context.Context, action, method, path string, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &SubmissionError{Action: action, Err: err}
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = &SubmissionError{Action: action, Err: err}
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt, 100*time.Millisecond)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = &SubmissionError{Action: action, Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt, 100*time.Millisecond)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("%s: decode response: %w", action, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles base per attempt, capped at 32x.
func backoffDuration(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}

// Backoff is the reconnect delay for the given attempt.
func Backoff(attempt int, base time.Duration) time.Duration {
	return backoffDuration(attempt, base)
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
