package websocket

import (
	"context"
	"encoding/json"
	"time"

	"restaurant-chat-backend/internal/env"
	"restaurant-chat-backend/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Publisher is the push half of the delivery dispatcher. It fans appends and
// typing signals out through Redis session channels; a failed publish is a
// DeliveryUnavailable condition that is logged and absorbed, because the
// poll path always remains for recovery.
type Publisher struct {
	redisClient *redis.Client
}

func NewPublisher() *Publisher {
	return &Publisher{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     env.Get(env.ChatRedisURL),
			Password: env.Get(env.ChatRedisPass),
			DB:       0,
		}),
	}
}

func NewPublisherWithRedis(client *redis.Client) *Publisher {
	return &Publisher{redisClient: client}
}

func (p *Publisher) MessageAppended(session model.ChatSessionItem, message model.ChatMessageItem) {
	event := WSMessage{
		Event:      EventNewMessage,
		SessionID:  session.SessionID,
		MessageID:  message.MessageID,
		SenderType: string(message.SenderType),
		Content:    message.Content,
		CreatedAt:  message.CreatedAt,
		Timestamp:  time.Now().Unix(),
	}
	p.publish(session.SessionID, event)
}

func (p *Publisher) Typing(sessionID string, senderType model.SenderType) {
	event := WSMessage{
		Event:      EventTyping,
		SessionID:  sessionID,
		SenderType: string(senderType),
		TTLSeconds: TypingTTLSeconds,
		Timestamp:  time.Now().Unix(),
	}
	p.publish(sessionID, event)
}

func (p *Publisher) publish(sessionID string, event WSMessage) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("marshal push event")
		return
	}

	if err := p.redisClient.Publish(context.Background(), sessionID, string(payload)).Err(); err != nil {
		incPublishFailures()
		log.Warn().Err(err).Str("session_id", sessionID).Str("event", event.Event).Msg("push delivery unavailable, poll path remains")
	}
}
