package dto

type SessionResponse struct {
	SessionID    string `json:"sessionId"`
	IdentityKind string `json:"identityKind"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime,omitempty"`
}

type MessageResponse struct {
	MessageID  string `json:"messageId"`
	SessionID  string `json:"sessionId"`
	SenderType string `json:"senderType"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
}

type ResolveSessionRequest struct {
	AnonymousToken string `json:"anonymousToken,omitempty"`
}

type ResolveSessionResponse struct {
	Session SessionResponse `json:"session"`
}

type PostMessageRequest struct {
	Content        string `json:"content"`
	AnonymousToken string `json:"anonymousToken,omitempty"`
}

type PostMessageResponse struct {
	Session SessionResponse `json:"session"`
	Message MessageResponse `json:"message"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type TypingRequest struct {
	SenderType     string `json:"senderType"`
	AnonymousToken string `json:"anonymousToken,omitempty"`
}
