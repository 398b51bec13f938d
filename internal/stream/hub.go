package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans live session traffic out to websocket subscribers: accepted
// points and alert open/close transitions. With redis configured the
// fan-out crosses process boundaries through pubsub; without it the hub
// serves local subscribers only.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.forwardRedis()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Broadcast delivers to local subscribers and publishes for other
// processes. Slow subscribers are skipped, never blocked on.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliverLocal(sessionID, payload)

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), liveChannel(sessionID), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) deliverLocal(sessionID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forwardRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "fieldtrack:*:live")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliverLocal(sessionIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func liveChannel(sessionID string) string {
	return "fieldtrack:" + sessionID + ":live"
}

func sessionIDFromChannel(ch string) string {
	// fieldtrack:{session}:live
	const prefix = "fieldtrack:"
	const suffix = ":live"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
