package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-board-client/internal/lichess"
	"github.com/park285/cheese-board-client/internal/obslog"
	"github.com/park285/cheese-board-client/internal/session"
	"github.com/park285/cheese-board-client/internal/stream"
)

// streamcheck replays a recorded NDJSON game stream, or follows a live one,
// and prints the reconstructed board after every change.
func main() {
	file := flag.String("file", "", "recorded NDJSON stream to replay")
	gameID := flag.String("game", os.Getenv("GAME_ID"), "game to follow live")
	user := flag.String("user", os.Getenv("LICHESS_USER_ID"), "account id used for orientation")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var body io.ReadCloser
	switch {
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("open %s: %v", *file, err)
		}
		body = f
	case *gameID != "":
		host := os.Getenv("LICHESS_HOST")
		if host == "" {
			host = "https://lichess.org"
		}
		token := os.Getenv("LICHESS_TOKEN")
		if token == "" {
			log.Fatal("LICHESS_TOKEN is required for a live stream")
		}
		rc, err := lichess.NewStreamer(host, token).Open(ctx, *gameID)
		if err != nil {
			log.Fatalf("stream open error: %v", err)
		}
		body = rc
	default:
		log.Fatal("either -file or -game is required")
	}
	defer body.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stopClose()

	sess := session.New(*gameID, session.Options{UserID: *user, Logger: obslog.Named("session")})
	reader := stream.NewReader(obslog.Named("stream"))
	events := 0
	err := reader.Consume(ctx, body, func(ev stream.Event) {
		events++
		if ev.Kind == stream.KindChat && ev.Chat != nil {
			fmt.Printf("chat %s: %s\n", ev.Chat.Username, ev.Chat.Text)
			return
		}
		if !sess.Apply(ev) {
			return
		}
		v := sess.View(time.Now())
		fmt.Printf("-- %s  phase=%s  status=%s  moves=%d\n", v.StatusText, v.Phase, v.Status, len(v.MovesSAN))
		b := sess.Board()
		fmt.Print(b.String())
		if v.Outcome != nil {
			fmt.Printf("result: %s\n", v.Outcome.Text)
		}
	})
	if err != nil && !errors.Is(err, stream.ErrDisconnected) && !errors.Is(err, context.Canceled) {
		log.Printf("stream error: %v", err)
	}

	fmt.Printf("events=%d dropped=%d pending=%d\n", events, reader.Dropped(), reader.Pending())
	for _, e := range sess.ApplyErrors() {
		fmt.Printf("replay error: %v\n", e)
	}
}
