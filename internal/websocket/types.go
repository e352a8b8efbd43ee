package websocket

// Event types carried on a session channel. Message events reference
// persisted records; typing events are ephemeral and never stored.
const (
	EventNewMessage = "new-message"
	EventTyping     = "typing"
)

// TypingTTLSeconds tells subscribers how long to show the indicator before
// clearing it locally. There is no guaranteed "stopped typing" event, so the
// indicator must self-expire.
const TypingTTLSeconds = 3

type Session struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

type WSMessage struct {
	Event      string `json:"event"`
	SessionID  string `json:"sessionId"`
	MessageID  string `json:"messageId,omitempty"`
	SenderType string `json:"senderType,omitempty"`
	Content    string `json:"content,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type SessionRes struct {
	ID string `json:"id"`
}
