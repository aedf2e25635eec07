package uibridge

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-board-client/pkg/boarddto"
)

// Hub fans published views out to connected UI sockets and remembers the last
// one for late joiners.
type Hub struct {
	mu      sync.RWMutex
	last    *boarddto.GameView
	clients map[string]chan boarddto.GameView
	log     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]chan boarddto.GameView), log: logger}
}

// Publish implements the session publisher. A client whose buffer is full is
// dropped; it reconnects and receives the latest view.
func (h *Hub) Publish(ctx context.Context, v boarddto.GameView) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	vv := v
	h.last = &vv
	for id, ch := range h.clients {
		select {
		case ch <- v:
		default:
			h.log.Warn("ui_client_slow", zap.String("client", id))
			close(ch)
			delete(h.clients, id)
		}
	}
	return nil
}

// Last returns the most recent view, if any.
func (h *Hub) Last() (boarddto.GameView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return boarddto.GameView{}, false
	}
	return *h.last, true
}

// Join registers a client and primes it with the last view.
func (h *Hub) Join() (string, <-chan boarddto.GameView) {
	id := uuid.NewString()
	ch := make(chan boarddto.GameView, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		ch <- *h.last
	}
	h.clients[id] = ch
	return id, ch
}

func (h *Hub) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
