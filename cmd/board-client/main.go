package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/internal/archive"
	appcfg "github.com/park285/cheese-board-client/internal/config"
	"github.com/park285/cheese-board-client/internal/lichess"
	"github.com/park285/cheese-board-client/internal/obslog"
	"github.com/park285/cheese-board-client/internal/session"
	"github.com/park285/cheese-board-client/internal/uibridge"
	"github.com/park285/cheese-board-client/internal/viewstore"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.Named("board-client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := uibridge.NewHub(obslog.Named("ui"))
	uiOpts := uibridge.Options{
		ShowCoordinates: cfg.Settings.ShowCoordinates,
		Settings:        cfg.Settings.Client(),
		Logger:          obslog.Named("ui"),
	}

	var router http.Handler
	var runner *session.Runner
	var closers []io.Closer
	if cfg.Mode == appcfg.ModeFollow {
		store, err := viewstore.New(cfg.RedisURL, obslog.Named("viewstore"))
		if err != nil {
			logger.Fatal("viewstore_init", zap.Error(err))
		}
		defer store.Close()
		if err := follow(ctx, store, hub, cfg.GameID, logger); err != nil {
			logger.Fatal("follow", zap.Error(err))
		}
		router = uibridge.NewRouter(uibridge.Follower{Hub: hub}, hub, uiOpts)
	} else {
		runner, closers = play(ctx, cfg, hub, logger)
		router = uibridge.NewRouter(runner, hub, uiOpts)
	}

	srv := &http.Server{Addr: cfg.UIListenAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("ui_listen", zap.String("addr", cfg.UIListenAddr), zap.String("mode", string(cfg.Mode)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ui_serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if runner != nil {
		runner.Stop()
	}
	for _, c := range closers {
		_ = c.Close()
	}
}

// play drives a game on the account: it streams the ongoing game, or waits in
// the lobby for a seek when there is none. The closers outlive the runner.
func play(ctx context.Context, cfg *appcfg.AppConfig, hub *uibridge.Hub, logger *zap.Logger) (*session.Runner, []io.Closer) {
	client := lichess.NewClient(cfg.LichessHost,
		lichess.WithToken(cfg.LichessToken),
		lichess.WithTimeout(cfg.SubmitTimeout),
	)
	streamer := lichess.NewStreamer(cfg.LichessHost, cfg.LichessToken)
	streamer.SetLogger(obslog.Named("lichess"))

	userID, gameID, err := resolveGame(ctx, client, cfg, logger)
	if err != nil {
		logger.Fatal("resolve_game", zap.Error(err))
	}

	opts := []session.RunnerOption{session.WithPublisher(hub), session.WithSeeker(streamer)}
	var closers []io.Closer

	if cfg.RedisURL != "" {
		store, err := viewstore.New(cfg.RedisURL, obslog.Named("viewstore"))
		if err != nil {
			logger.Fatal("viewstore_init", zap.Error(err))
		}
		closers = append(closers, store)
		if gameID != "" {
			if cached, err := store.Load(ctx, gameID); err != nil {
				logger.Warn("viewstore_load", zap.Error(err))
			} else if cached != nil {
				_ = hub.Publish(ctx, *cached)
			}
		}
		opts = append(opts, session.WithPublisher(store))
	}

	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init", zap.Error(err))
		}
		closers = append(closers, repo)
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			logger.Fatal("archive_schema", zap.Error(err))
		}
		opts = append(opts, session.WithArchiver(repo))
	}

	runner := session.NewRunner(ctx, streamer, client, session.Config{
		UserID:        userID,
		Tick:          cfg.ClockTick,
		SubmitTimeout: cfg.SubmitTimeout,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
		LowTime:       cfg.Settings.LowTime(),
		NoticeTTL:     cfg.Settings.NoticeTTL(),
		TimeControls:  cfg.Settings.Seeks(),
		Logger:        obslog.Named("session"),
	}, opts...)
	if gameID != "" {
		runner.Join(gameID)
	} else {
		logger.Info("lobby", zap.String("user_id", userID))
	}
	return runner, closers
}

// follow mirrors views another process publishes to Redis. Without GAME_ID the
// first active game in the store is picked.
func follow(ctx context.Context, store *viewstore.Store, hub *uibridge.Hub, gameID string, logger *zap.Logger) error {
	if gameID == "" {
		ids, err := store.Active(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return errors.New("no active game in view store; set GAME_ID")
		}
		gameID = ids[0]
		if len(ids) > 1 {
			logger.Info("multiple_games", zap.Int("count", len(ids)), zap.String("picked", gameID))
		}
	}
	if cached, err := store.Load(ctx, gameID); err != nil {
		logger.Warn("viewstore_load", zap.Error(err))
	} else if cached != nil {
		_ = hub.Publish(ctx, *cached)
	}
	views, unsubscribe, err := store.Subscribe(ctx, gameID)
	if err != nil {
		return err
	}
	logger.Info("follow", zap.String("game_id", gameID))
	go func() {
		defer unsubscribe()
		uibridge.Pump(ctx, views, hub)
	}()
	return nil
}

// resolveGame fills in the account id and the game to follow when they are not
// configured: the first ongoing game of the account is used. An empty game id
// means there is none and the runner starts in the lobby.
func resolveGame(ctx context.Context, client *lichess.Client, cfg *appcfg.AppConfig, logger *zap.Logger) (string, string, error) {
	userID, gameID := cfg.UserID, cfg.GameID
	if userID == "" {
		acct, err := client.Account(ctx)
		if err != nil {
			return "", "", err
		}
		userID = acct.ID
		logger.Info("account", zap.String("user_id", userID))
	}
	if gameID == "" {
		games, err := client.Playing(ctx)
		if err != nil {
			return "", "", err
		}
		if len(games) == 0 {
			return userID, "", nil
		}
		gameID = games[0].GameID
		if len(games) > 1 {
			logger.Info("multiple_games", zap.Int("count", len(games)), zap.String("picked", gameID))
		}
	}
	return userID, gameID, nil
}
