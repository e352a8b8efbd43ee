package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"restaurant-chat-backend/internal/env"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler bridges Redis session channels into the local hub so every
// ws-server instance sees appends made through any api server.
type Handler struct {
	hub         *Hub
	redisClient *redis.Client
}

func NewHandler(h *Hub) *Handler {
	return &Handler{
		hub: h,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     env.Get(env.ChatRedisURL),
			Password: env.Get(env.ChatRedisPass),
			DB:       0,
		}),
	}
}

func NewHandlerWithRedis(h *Hub, client *redis.Client) *Handler {
	return &Handler{hub: h, redisClient: client}
}

func (h *Handler) subscribeToSessionChannel(sessionID string) {
	if !h.hub.HasRoom(sessionID) {
		log.Warn().Str("session_id", sessionID).Msg("session not found for subscription")
		return
	}

	subscriber := h.redisClient.Subscribe(context.Background(), sessionID)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		var event WSMessage
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("dropping malformed channel payload")
			continue
		}
		event.SessionID = sessionID
		if event.Timestamp == 0 {
			event.Timestamp = time.Now().Unix()
		}
		h.hub.Broadcast <- &event
	}
	log.Debug().Str("session_id", sessionID).Msg("unsubscribed from session channel")
}

// EnsureSession registers a hub room for the session and starts its Redis
// subscription exactly once.
func (h *Handler) EnsureSession(id string) {
	if !h.hub.EnsureRoom(id) {
		return
	}
	setSessions(h.hub.RoomCount())

	go h.subscribeToSessionChannel(id)
}

func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request, sessionID, clientID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.EnsureSession(sessionID)

	cl := &WSClient{
		Conn:      conn,
		Message:   make(chan *WSMessage, 10),
		ID:        clientID,
		SessionID: sessionID,
		done:      make(chan struct{}),
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions := make([]SessionRes, 0)

	for _, id := range h.hub.RoomIDs() {
		sessions = append(sessions, SessionRes{
			ID: id,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(sessions)
}
