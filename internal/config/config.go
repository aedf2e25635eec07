package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects what the process drives: ModePlay follows the game stream and
// sends moves, ModeFollow mirrors views another process stores in Redis.
type Mode string

const (
	ModePlay   Mode = "play"
	ModeFollow Mode = "follow"
)

type AppConfig struct {
	Mode Mode

	LichessHost  string
	LichessToken string
	UserID       string
	GameID       string

	ClockTick     time.Duration
	SubmitTimeout time.Duration
	ReconnectMax  int
	ReconnectBase time.Duration

	RedisURL    string
	DatabaseURL string

	UIListenAddr string
	SettingsFile string

	Settings Settings
}

// Load reads an optional .env file and then the process environment.
// play 모드는 LICHESS_TOKEN, follow 모드는 REDIS_URL이 필수.
func Load() (*AppConfig, error) {
	// .env is optional; real environment variables win over file values
	_ = godotenv.Load()

	cfg := &AppConfig{
		Mode:          ModePlay,
		LichessHost:   "https://lichess.org",
		ClockTick:     time.Second,
		SubmitTimeout: 8 * time.Second,
		ReconnectMax:  0,
		ReconnectBase: 500 * time.Millisecond,
		UIListenAddr:  ":4280",
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("BOARD_MODE"))); v != "" {
		switch Mode(v) {
		case ModePlay, ModeFollow:
			cfg.Mode = Mode(v)
		default:
			return nil, fmt.Errorf("BOARD_MODE must be play or follow, got %q", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("LICHESS_HOST")); v != "" {
		cfg.LichessHost = strings.TrimRight(v, "/")
	}
	cfg.LichessToken = strings.TrimSpace(os.Getenv("LICHESS_TOKEN"))
	cfg.UserID = strings.ToLower(strings.TrimSpace(os.Getenv("LICHESS_USER_ID")))
	cfg.GameID = strings.TrimSpace(os.Getenv("GAME_ID"))

	if v := strings.TrimSpace(os.Getenv("CLOCK_TICK_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClockTick = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("SUBMIT_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SubmitTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONNECT_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReconnectMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONNECT_BASE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectBase = time.Duration(n) * time.Millisecond
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("UI_LISTEN_ADDR")); v != "" {
		cfg.UIListenAddr = v
	}
	cfg.SettingsFile = strings.TrimSpace(os.Getenv("SETTINGS_FILE"))

	settings, err := LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	switch cfg.Mode {
	case ModeFollow:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required in follow mode")
		}
	default:
		if cfg.LichessToken == "" {
			return nil, errors.New("LICHESS_TOKEN is required")
		}
	}

	return cfg, nil
}
