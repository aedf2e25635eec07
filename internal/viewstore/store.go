package viewstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/pkg/boarddto"
)

const (
	viewTTL   = 24 * time.Hour
	activeKey = "board:index:active"
)

func viewKey(gameID string) string        { return "board:view:" + gameID }
func updatesChannel(gameID string) string { return "board:view:" + gameID + ":updates" }

// Store caches the latest view of each game in Redis and fans updates out over
// pub/sub, so a restarted client or a second display can pick up where the
// stream left off.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func New(redisURL string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for view store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, logger), nil
}

func NewWithClient(rdb *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, ttl: viewTTL, log: logger}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Publish stores v, maintains the active index and notifies subscribers.
func (s *Store) Publish(ctx context.Context, v boarddto.GameView) error {
	if strings.TrimSpace(v.GameID) == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, viewKey(v.GameID), raw, s.ttl)
		if v.Ended() {
			p.SRem(ctx, activeKey, v.GameID)
		} else {
			p.SAdd(ctx, activeKey, v.GameID)
			p.Expire(ctx, activeKey, s.ttl)
		}
		p.Publish(ctx, updatesChannel(v.GameID), raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store view: %w", err)
	}
	return nil
}

// Load returns the cached view of gameID, or nil when none is stored.
func (s *Store) Load(ctx context.Context, gameID string) (*boarddto.GameView, error) {
	raw, err := s.rdb.Get(ctx, viewKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v boarddto.GameView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode view: %w", err)
	}
	return &v, nil
}

// Active lists games whose last stored view was not terminal.
// 팔로워 모드에서 GAME_ID가 없을 때 대상 게임을 고르는 데 사용.
func (s *Store) Active(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Subscribe streams views published for gameID until the returned stop
// function is called or ctx ends. Undecodable payloads are skipped.
func (s *Store) Subscribe(ctx context.Context, gameID string) (<-chan boarddto.GameView, func(), error) {
	ps := s.rdb.Subscribe(ctx, updatesChannel(gameID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan boarddto.GameView, 16)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var v boarddto.GameView
				if err := json.Unmarshal([]byte(m.Payload), &v); err != nil {
					s.log.Debug("viewstore_bad_payload", zap.String("game_id", gameID), zap.Error(err))
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
