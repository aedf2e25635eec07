package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")

	o := OptionsFromEnv()
	if o.Level != zapcore.DebugLevel {
		t.Fatalf("level: %v", o.Level)
	}
	if o.Format != "json" || o.Console {
		t.Fatalf("unexpected options: %+v", o)
	}
	if o.File != filepath.Join("logs", "board-client.log") {
		t.Fatalf("default file: %q", o.File)
	}
}

func TestInitWritesFile(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	path := filepath.Join(t.TempDir(), "nested", "out.log")
	if err := Init(Options{Level: zapcore.InfoLevel, Format: "json", File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Info("stream_connected", zap.String("game_id", "abc"))
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"game_id":"abc"`) {
		t.Fatalf("log line missing field: %s", raw)
	}
}

func TestParseLevelFallback(t *testing.T) {
	if parseLevel("warning") != zapcore.WarnLevel {
		t.Fatalf("warning alias")
	}
	if parseLevel("nonsense") != zapcore.InfoLevel {
		t.Fatalf("default level")
	}
}
