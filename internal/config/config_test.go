package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("BOARD_MODE", "")
	t.Setenv("LICHESS_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without LICHESS_TOKEN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("BOARD_MODE", "")
	t.Setenv("LICHESS_TOKEN", "lip_test")
	t.Setenv("LICHESS_HOST", "http://localhost:9663/")
	t.Setenv("LICHESS_USER_ID", " Alice ")
	t.Setenv("CLOCK_TICK_MS", "250")
	t.Setenv("RECONNECT_MAX", "3")
	t.Setenv("SUBMIT_TIMEOUT_MS", "bogus")
	t.Setenv("SETTINGS_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LichessHost != "http://localhost:9663" {
		t.Fatalf("host not trimmed: %q", cfg.LichessHost)
	}
	if cfg.UserID != "alice" {
		t.Fatalf("user id not normalised: %q", cfg.UserID)
	}
	if cfg.ClockTick != 250*time.Millisecond {
		t.Fatalf("clock tick: %v", cfg.ClockTick)
	}
	if cfg.ReconnectMax != 3 {
		t.Fatalf("reconnect max: %d", cfg.ReconnectMax)
	}
	if cfg.SubmitTimeout != 8*time.Second {
		t.Fatalf("invalid override should keep default, got %v", cfg.SubmitTimeout)
	}
	if len(cfg.Settings.TimeControls) != 10 {
		t.Fatalf("default time controls missing")
	}
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	body := []byte("low_time_threshold_sec: 10\nconfirm_moves: true\ntime_controls:\n  - time: 3\n    increment: 2\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.LowTime() != 10*time.Second || !s.ConfirmMoves {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if len(s.TimeControls) != 1 || s.TimeControls[0].Name != "3+2" {
		t.Fatalf("time controls: %+v", s.TimeControls)
	}
	if s.NoticeTTL() != 5*time.Second {
		t.Fatalf("notice ttl default: %v", s.NoticeTTL())
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.LowTimeThreshold != 30 {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestParseSettingsRejectsNegative(t *testing.T) {
	if _, err := ParseSettings([]byte("low_time_threshold_sec: -1\n")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ParseSettings([]byte("time_controls: [{time: -1}]\n")); err == nil {
		t.Fatalf("expected validation error for negative time")
	}
}

func TestLoadFollowMode(t *testing.T) {
	t.Setenv("BOARD_MODE", "follow")
	t.Setenv("LICHESS_TOKEN", "")
	t.Setenv("SETTINGS_FILE", "")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("follow mode without REDIS_URL should fail")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeFollow {
		t.Fatalf("mode: %q", cfg.Mode)
	}

	t.Setenv("BOARD_MODE", "spectate")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestSettingsSeeksAndClient(t *testing.T) {
	s, err := ParseSettings([]byte("confirm_moves: true\nrated: false\ntime_controls:\n  - name: Blitz\n    time: 3\n    increment: 2\n"))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	seeks := s.Seeks()
	req, ok := seeks["Blitz"]
	if !ok || req.Minutes != 3 || req.Increment != 2 || req.Rated {
		t.Fatalf("seeks: %+v", seeks)
	}

	c := s.Client()
	if !c.ConfirmMoves || len(c.TimeControls) != 1 || c.TimeControls[0].Name != "Blitz" {
		t.Fatalf("client settings: %+v", c)
	}
	if !DefaultSettings().Seeks()["3+2 Blitz"].Rated {
		t.Fatalf("default seeks are rated")
	}
}
