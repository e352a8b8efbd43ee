package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSClient struct {
	Conn      *websocket.Conn
	Message   chan *WSMessage
	ID        string
	SessionID string
	done      chan struct{}
	mu        sync.Mutex
	isClosed  bool
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Debug().Err(err).Str("client_id", cl.ID).Msg("ping failed")
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-cl.Message:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteJSON(msg)
			cl.mu.Unlock()

			if err != nil {
				log.Debug().Err(err).Str("client_id", cl.ID).Msg("write failed")
				return
			}
		}
	}
}

// readMessage drains the connection for close/ping control flow. Clients do
// not send chat content over the socket; appends go through HTTP so the
// store stays the single mutation path.
func (cl *WSClient) readMessage(hub *Hub) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered in readMessage")
		}

		if cl.done != nil {
			close(cl.done)
		}

		hub.Unregister <- cl
		log.Debug().Str("client_id", cl.ID).Str("session_id", cl.SessionID).Msg("client disconnected")
	}()

	cl.Conn.SetReadLimit(512 * 1024)

	for {
		if _, _, err := cl.Conn.ReadMessage(); err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					break
				}
			}
			log.Debug().Err(err).Str("client_id", cl.ID).Msg("read failed")
			break
		}
	}
}
