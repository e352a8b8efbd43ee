package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"restaurant-chat-backend/internal/dto"
	ws "restaurant-chat-backend/internal/websocket"
)

// Subscription is one session's push channel: subscribe on open, close on
// UI close. It owns its connection and typing state; there is no shared
// socket state outside this object.
type Subscription struct {
	conn   *websocket.Conn
	syncer *Syncer

	mu          sync.Mutex
	typing      bool
	typingTimer *time.Timer

	done   chan struct{}
	closed sync.Once
}

// Subscribe dials the push endpoint for the syncer's current session and
// starts the read loop. The caller must Close the subscription when the chat
// UI closes.
func Subscribe(ctx context.Context, wsBaseURL string, syncer *Syncer) (*Subscription, error) {
	sessionID := syncer.SessionID()
	if sessionID == "" {
		return nil, fmt.Errorf("no session resolved")
	}

	endpoint, err := url.Parse(wsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ws url: %w", err)
	}
	endpoint.Path = "/ws/chat/" + sessionID

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial push channel: %w", err)
	}

	sub := &Subscription{
		conn:   conn,
		syncer: syncer,
		done:   make(chan struct{}),
	}
	go sub.readLoop()
	return sub, nil
}

func (s *Subscription) readLoop() {
	defer s.Close()
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				// Dropped connection: the poll path still covers recovery.
				log.Warn().Err(err).Msg("push channel closed")
			}
			return
		}

		var event ws.WSMessage
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn().Err(err).Msg("unparseable push event")
			continue
		}
		s.handle(event)
	}
}

func (s *Subscription) handle(event ws.WSMessage) {
	switch event.Event {
	case ws.EventNewMessage:
		s.syncer.Apply(dto.MessageResponse{
			MessageID:  event.MessageID,
			SessionID:  event.SessionID,
			SenderType: event.SenderType,
			Content:    event.Content,
			CreatedAt:  event.CreatedAt,
		})
	case ws.EventTyping:
		s.markTyping(event.TTLSeconds)
	}
}

// markTyping raises the indicator and arms its self-expiry. A missing or
// nonsense TTL falls back to the protocol default; no explicit stop event is
// ever required.
func (s *Subscription) markTyping(ttlSeconds int) {
	if ttlSeconds <= 0 {
		ttlSeconds = ws.TypingTTLSeconds
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		s.typing = false
		s.mu.Unlock()
	})
}

// TypingActive reports whether someone on the other side is composing.
func (s *Subscription) TypingActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

func (s *Subscription) Close() {
	s.closed.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.typingTimer != nil {
			s.typingTimer.Stop()
		}
		s.typing = false
		s.mu.Unlock()
		s.conn.Close()
	})
}
