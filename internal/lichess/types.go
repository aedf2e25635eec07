package lichess

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Account is the subset of /api/account the client needs.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Opponent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating,omitempty"`
	AI       int    `json:"ai,omitempty"`
}

// OngoingGame is one entry of /api/account/playing.
type OngoingGame struct {
	GameID      string   `json:"gameId"`
	FullID      string   `json:"fullId"`
	Color       string   `json:"color"`
	FEN         string   `json:"fen"`
	IsMyTurn    bool     `json:"isMyTurn"`
	SecondsLeft int      `json:"secondsLeft"`
	LastMove    string   `json:"lastMove"`
	Speed       string   `json:"speed"`
	Opponent    Opponent `json:"opponent"`
}

type playingResponse struct {
	NowPlaying []OngoingGame `json:"nowPlaying"`
}

// SubmissionError reports a failed outbound request. Status is zero when the
// request never got a response.
type SubmissionError struct {
	Action string
	Status int
	Body   string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s: status=%d body=%s", e.Action, e.Status, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Retryable reports transport failures and 5xx responses.
func (e *SubmissionError) Retryable() bool {
	return e.Status == 0 || shouldRetryStatus(e.Status)
}

// Message is a short user-facing text, taken from the server's {"error": ...}
// body when present.
func (e *SubmissionError) Message() string {
	var body struct {
		Error string `json:"error"`
	}
	if e.Body != "" && json.Unmarshal([]byte(e.Body), &body) == nil && strings.TrimSpace(body.Error) != "" {
		return body.Error
	}
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s failed: network error", e.Action)
	case e.Status == 401 || e.Status == 403:
		return fmt.Sprintf("%s failed: not authorized", e.Action)
	case e.Status == 404:
		return fmt.Sprintf("%s failed: game not found", e.Action)
	default:
		return fmt.Sprintf("%s failed (%d)", e.Action, e.Status)
	}
}
