package model

import "fmt"

const (
	ChatSessionsTable = "ChatSessions"
	ChatMessagesTable = "ChatMessages"
)

func SessionPK(identity Identity, sessionID string) string {
	return fmt.Sprintf("%s#%s#%s", identity.Kind, identity.ID, sessionID)
}

func MessagePK(sessionID, messageID string) string {
	return fmt.Sprintf("%s#%s", sessionID, messageID)
}
