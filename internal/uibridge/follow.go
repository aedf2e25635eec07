package uibridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/internal/notation"
	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// ErrReadOnly is returned for intents sent to a follower.
var ErrReadOnly = errors.New("read-only board")

// Follower mirrors a game another process is playing. Views come from the
// Hub; intents are refused.
type Follower struct {
	Hub *Hub
}

func (f Follower) View(context.Context) (boarddto.GameView, bool) { return f.Hub.Last() }

func (f Follower) Submit(context.Context, boarddto.Intent) error { return ErrReadOnly }

func (f Follower) Candidates(context.Context, notation.Square) (targets, promotion []notation.Square) {
	return nil, nil
}

// Pump forwards views into the hub until views closes or ctx ends.
func Pump(ctx context.Context, views <-chan boarddto.GameView, hub *Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				hub.log.Info("ui_follow_closed")
				return
			}
			if err := hub.Publish(ctx, v); err != nil {
				hub.log.Warn("ui_follow_publish", zap.String("game_id", v.GameID), zap.Error(err))
			}
		}
	}
}
