package websocket

import "sync"

// Hub owns the session rooms. Room membership and broadcast are serialised
// through the hub goroutine's channels; the room map itself is guarded by a
// mutex because rooms are created from request goroutines.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]*Session),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *WSMessage),
	}
}

// EnsureRoom creates the room for the session if absent and reports whether
// this call created it.
func (h *Hub) EnsureRoom(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.sessions[id]; exists {
		return false
	}
	h.sessions[id] = &Session{
		Id:      id,
		Clients: make(map[string]*WSClient),
	}
	return true
}

func (h *Hub) HasRoom(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[id]
	return ok
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) room(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

// Run is the only goroutine that touches a room's client map.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			session := h.room(client.SessionID)
			if session == nil {
				continue
			}
			session.Clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			session := h.room(client.SessionID)
			if session == nil {
				continue
			}
			if _, ok := session.Clients[client.ID]; ok {
				delete(session.Clients, client.ID)
				close(client.Message)
				decConnections()
			}

		case message := <-h.Broadcast:
			session := h.room(message.SessionID)
			if session == nil {
				continue
			}
			delivered := 0
			for _, client := range session.Clients {
				select {
				case client.Message <- message:
					delivered++
				default:
					// A subscriber that cannot keep up is dropped; it
					// recovers through the list/poll path.
					close(client.Message)
					delete(session.Clients, client.ID)
					decConnections()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
