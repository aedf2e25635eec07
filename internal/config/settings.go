package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/park285/cheese-board-client/internal/lichess"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// TimeControl is one seek preset, e.g. 3+2 blitz.
type TimeControl struct {
	Name      string `yaml:"name"`
	Minutes   int    `yaml:"time"`
	Increment int    `yaml:"increment"`
}

// Settings holds UI-facing preferences loaded from YAML.
type Settings struct {
	TimeControls     []TimeControl `yaml:"time_controls"`
	LowTimeThreshold int           `yaml:"low_time_threshold_sec"`
	ShowCoordinates  bool          `yaml:"show_coordinates"`
	ConfirmMoves     bool          `yaml:"confirm_moves"`
	NoticeTTLSec     int           `yaml:"notice_ttl_sec"`
	Rated            bool          `yaml:"rated"`
}

// LowTime is the threshold under which a clock is flagged as low.
func (s Settings) LowTime() time.Duration {
	return time.Duration(s.LowTimeThreshold) * time.Second
}

// NoticeTTL is how long a transient error notice stays on the view.
func (s Settings) NoticeTTL() time.Duration {
	return time.Duration(s.NoticeTTLSec) * time.Second
}

func DefaultSettings() Settings {
	return Settings{
		TimeControls: []TimeControl{
			{Name: "1+0 Bullet", Minutes: 1, Increment: 0},
			{Name: "2+1 Bullet", Minutes: 2, Increment: 1},
			{Name: "3+0 Blitz", Minutes: 3, Increment: 0},
			{Name: "3+2 Blitz", Minutes: 3, Increment: 2},
			{Name: "5+0 Blitz", Minutes: 5, Increment: 0},
			{Name: "5+3 Blitz", Minutes: 5, Increment: 3},
			{Name: "10+0 Rapid", Minutes: 10, Increment: 0},
			{Name: "10+5 Rapid", Minutes: 10, Increment: 5},
			{Name: "15+10 Rapid", Minutes: 15, Increment: 10},
			{Name: "30+0 Classical", Minutes: 30, Increment: 0},
		},
		LowTimeThreshold: 30,
		NoticeTTLSec:     5,
		Rated:            true,
	}
}

// Seeks maps every preset name to the seek it posts.
func (s Settings) Seeks() map[string]lichess.SeekRequest {
	out := make(map[string]lichess.SeekRequest, len(s.TimeControls))
	for _, tc := range s.TimeControls {
		out[tc.Name] = lichess.SeekRequest{Minutes: tc.Minutes, Increment: tc.Increment, Rated: s.Rated}
	}
	return out
}

// Client is the subset of settings served to UI collaborators.
func (s Settings) Client() boarddto.ClientSettings {
	out := boarddto.ClientSettings{
		TimeControls:     make([]boarddto.TimeControl, 0, len(s.TimeControls)),
		ConfirmMoves:     s.ConfirmMoves,
		ShowCoordinates:  s.ShowCoordinates,
		LowTimeThreshold: s.LowTimeThreshold,
	}
	for _, tc := range s.TimeControls {
		out.TimeControls = append(out.TimeControls, boarddto.TimeControl{Name: tc.Name, Minutes: tc.Minutes, Increment: tc.Increment})
	}
	return out
}

// LoadSettings reads path as YAML over the defaults. An empty path or a missing
// file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(raw)
}

// ParseSettings decodes YAML over the defaults and validates the result.
func ParseSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if s.LowTimeThreshold < 0 {
		return s, errors.New("low_time_threshold_sec must not be negative")
	}
	if s.NoticeTTLSec <= 0 {
		s.NoticeTTLSec = 5
	}
	for i, tc := range s.TimeControls {
		if tc.Minutes < 0 || tc.Increment < 0 {
			return s, fmt.Errorf("time_controls[%d]: negative values", i)
		}
		if strings.TrimSpace(tc.Name) == "" {
			s.TimeControls[i].Name = fmt.Sprintf("%d+%d", tc.Minutes, tc.Increment)
		}
	}
	return s, nil
}
