package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const eventsChannel = "timebank:events"

// Connection represents one WebSocket client.
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Envelope is the wire format pushed to clients and relayed between
// server instances over Redis Pub/Sub.
type Envelope struct {
	Type             string      `json:"type"`
	UserID           uuid.UUID   `json:"user_id"`
	Payload          interface{} `json:"payload,omitempty"`
	Timestamp        int64       `json:"timestamp"`
	SenderInstanceID string      `json:"sender_instance_id,omitempty"`
}

// Hub fans ledger events out to connected clients. With a Redis client it
// also relays events across instances; without one it runs local-only.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx        context.Context
	cancel     context.CancelFunc
	instanceID string
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.New().String(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, eventsChannel)
	}
	return h
}

// Run processes register/unregister requests. Call in a goroutine.
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
				}
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("client disconnected")
		}
	}
}

func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// Shutdown stops the hub and closes every open connection.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for conn := range conns {
			close(conn.Send)
			conn.Conn.Close()
		}
		delete(h.connections, userID)
	}
}

// Publish delivers a ledger event to the user's clients on this instance
// and relays it over Redis so other instances can do the same.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	env := &Envelope{
		Type:             event,
		UserID:           userID,
		Payload:          payload,
		Timestamp:        time.Now().UnixMilli(),
		SenderInstanceID: h.instanceID,
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}

	h.sendLocal(userID, data)

	if h.redis != nil {
		if err := h.redis.Publish(ctx, eventsChannel, data).Err(); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("failed to relay event over redis")
		}
	}
}

// runRedisSubscriber delivers events published by other instances.
func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}

			// Skip events this instance already delivered locally.
			if env.SenderInstanceID == h.instanceID {
				continue
			}

			h.sendLocal(env.UserID, []byte(msg.Payload))
		}
	}
}

// sendLocal pushes data to clients connected to THIS instance.
func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[userID] {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("client send buffer full, dropping event")
		}
	}
}
