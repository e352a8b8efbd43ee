package model

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderStaff SenderType = "staff"
	SenderBot   SenderType = "bot"
)

func (s SenderType) Valid() bool {
	switch s {
	case SenderUser, SenderStaff, SenderBot:
		return true
	}
	return false
}

// ChatSessionItem binds one identity to an ordered message log. An empty
// EndTime means the session is open; a set EndTime is terminal.
type ChatSessionItem struct {
	PK           string       `dynamodbav:"pk"`
	SessionID    string       `dynamodbav:"sessionId"`
	IdentityKind IdentityKind `dynamodbav:"identityKind"`
	IdentityID   string       `dynamodbav:"identityId"`
	IdentityKey  string       `dynamodbav:"identityKey"`
	StartTime    string       `dynamodbav:"startTime"`
	EndTime      string       `dynamodbav:"endTime,omitempty"`
}

func (s ChatSessionItem) Identity() Identity {
	return Identity{Kind: s.IdentityKind, ID: s.IdentityID}
}

func (s ChatSessionItem) Closed() bool {
	return s.EndTime != ""
}

// ChatMessageItem is immutable once appended. MessageID is a ULID, so
// lexicographic order is insertion order and the id doubles as the
// pagination cursor. CreatedAt is display metadata, never an ordering key.
type ChatMessageItem struct {
	PK         string     `dynamodbav:"pk"`
	SessionID  string     `dynamodbav:"sessionId"`
	MessageID  string     `dynamodbav:"messageId"`
	SenderType SenderType `dynamodbav:"senderType"`
	Content    string     `dynamodbav:"content"`
	CreatedAt  string     `dynamodbav:"createdAt"`
}
