package notifications

import (
	"context"
	"errors"
	"sync"

	"ctfarena/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max feed connections per signed-in user. Anonymous viewers share user id 0
	// and are bounded only by maxTotalConns.
	maxConnsPerUser = 8
	// Max total connections
	maxTotalConns = 10000
)

var (
	// ErrHubFull is returned when the server-wide connection limit is reached.
	ErrHubFull = errors.New("server connection limit reached")
	// ErrUserLimit is returned when a user already holds maxConnsPerUser feeds.
	ErrUserLimit = errors.New("user connection limit reached")
)

// FeedHub keeps the live feed websocket clients and fans events out to all of them.
type FeedHub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	log        *observability.WSLogger
}

// NewFeedHub creates an empty hub.
func NewFeedHub() *FeedHub {
	return &FeedHub{
		conns: make(map[uint]map[*Client]struct{}),
		log:   observability.NewWSLogger("feed"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *FeedHub) Name() string { return "feed hub" }

// Register adds a connection. userID is 0 for anonymous viewers.
func (h *FeedHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrHubFull
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if userID != 0 && len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes a client; unknown clients are ignored.
func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	observability.WebSocketConnectionsTotal.Dec()
	h.log.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

// Count returns the number of registered connections.
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll sends message to every connected client.
func (h *FeedHub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes the hub to the Notifier's event channel.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.BroadcastAll)
}

// Shutdown closes every connection with a going-away frame.
func (h *FeedHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	closed := 0
	for userID, userConns := range h.conns {
		for client := range userConns {
			closed++
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				h.log.LogDisconnect(ctx, userID, "close frame failed: "+err.Error())
			}
			_ = client.Conn.Close()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Sub(float64(closed))
	h.log.LogLifecycle(ctx, "shutdown", map[string]interface{}{"closed": closed})
	return nil
}
