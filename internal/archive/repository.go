package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-board-client/pkg/boarddto"
)

const schema = `CREATE TABLE IF NOT EXISTS board_games (
    game_id      TEXT PRIMARY KEY,
    white        TEXT NOT NULL,
    black        TEXT NOT NULL,
    orientation  TEXT NOT NULL,
    status       TEXT NOT NULL,
    winner       TEXT NOT NULL DEFAULT '',
    result       TEXT NOT NULL,
    result_text  TEXT NOT NULL,
    initial_fen  TEXT NOT NULL DEFAULT '',
    moves_uci    JSONB NOT NULL,
    moves_san    JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL
)`

// Repository stores finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the board_games table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Archive saves a finished view; views without an outcome are ignored.
// 왜: 재연결 중 중간 상태가 기록되면 결과가 덮어써지는 문제를 방지.
func (r *Repository) Archive(ctx context.Context, v boarddto.GameView) error {
	if !v.Ended() {
		return nil
	}
	return r.SaveResult(ctx, v)
}

// SaveResult upserts the final state of a game.
func (r *Repository) SaveResult(ctx context.Context, v boarddto.GameView) error {
	if r == nil || r.db == nil {
		return nil
	}
	pgnResult := MapResultToPGN(v.Winner, v.Status)
	pgn := BuildPGN(v, pgnResult)

	movesUCIRaw, _ := json.Marshal(nonNil(v.Moves))
	movesSANRaw, _ := json.Marshal(nonNil(v.MovesSAN))
	resultText := ""
	if v.Outcome != nil {
		resultText = v.Outcome.Text
	}
	endedAt := v.UpdatedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	q := `INSERT INTO board_games (
        game_id, white, black, orientation, status, winner,
        result, result_text, initial_fen, moves_uci, moves_san, pgn, ended_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (game_id) DO UPDATE SET
        white=EXCLUDED.white,
        black=EXCLUDED.black,
        orientation=EXCLUDED.orientation,
        status=EXCLUDED.status,
        winner=EXCLUDED.winner,
        result=EXCLUDED.result,
        result_text=EXCLUDED.result_text,
        initial_fen=EXCLUDED.initial_fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at`

	_, err := r.db.ExecContext(ctx, q,
		v.GameID,
		playerName(v.White), playerName(v.Black),
		v.Orientation, v.Status, v.Winner,
		pgnResult, resultText, v.InitialFEN,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("save board game %s: %w", v.GameID, err)
	}
	return nil
}

// MapResultToPGN turns the server's winner/status pair into a PGN result token.
func MapResultToPGN(winner, status string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "draw", "stalemate", "timeout", "outoftime":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the game with SAN move text.
func BuildPGN(v boarddto.GameView, pgnResult string) string {
	var b strings.Builder
	date := v.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Board game\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(v.GameID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(playerName(v.White))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(playerName(v.Black))))
	blackFirst := false
	if fen := strings.TrimSpace(v.InitialFEN); fen != "" && fen != "startpos" {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(fen)))
		if f := strings.Fields(fen); len(f) > 1 && f[1] == "b" {
			blackFirst = true
		}
	}
	if s := strings.TrimSpace(v.Status); s != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(s)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	moves := v.MovesSAN
	turn := 1
	i := 0
	if blackFirst && len(moves) > 0 {
		b.WriteString(fmt.Sprintf("1... %s ", strings.TrimSpace(moves[0])))
		turn, i = 2, 1
	}
	for ; i < len(moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(moves[i])))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1]))
		}
		b.WriteString(" ")
		turn++
	}
	b.WriteString(pgnResult)
	return b.String()
}

func playerName(p boarddto.Player) string {
	if s := strings.TrimSpace(p.Name); s != "" {
		return s
	}
	return strings.TrimSpace(p.ID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
