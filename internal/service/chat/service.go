package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"restaurant-chat-backend/internal/database"
	"restaurant-chat-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Dispatcher fans a successful append out to push subscribers. A publish
// failure is the dispatcher's to absorb (log and rely on the poll path),
// never the append caller's.
type Dispatcher interface {
	MessageAppended(session model.ChatSessionItem, message model.ChatMessageItem)
	Typing(sessionID string, senderType model.SenderType)
}

// AssistantNotifier sees every stored user message and may asynchronously
// append a bot reply through the same store/dispatcher path.
type AssistantNotifier interface {
	MessageAppended(session model.ChatSessionItem, message model.ChatMessageItem)
}

type MessageResult struct {
	Session model.ChatSessionItem
	Message model.ChatMessageItem
}

type Service struct {
	store      *Store
	resolver   *Resolver
	dispatcher Dispatcher
	assistant  AssistantNotifier
}

func New(db *database.Database, dispatcher Dispatcher, assistant AssistantNotifier) *Service {
	repo := NewDynamoRepository(db)
	return NewWithRepository(repo, time.Now, dispatcher, assistant)
}

func NewWithRepository(repo Repository, now func() time.Time, dispatcher Dispatcher, assistant AssistantNotifier) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      NewStore(repo, now),
		resolver:   NewResolver(repo, now),
		dispatcher: dispatcher,
		assistant:  assistant,
	}
}

// ResolveSession returns the canonical session for the identity, creating one
// lazily. Sessions are born on first message-intent, not on page load, so the
// endpoint only calls this when the client is about to talk.
func (s *Service) ResolveSession(ctx context.Context, identity model.Identity) (model.ChatSessionItem, error) {
	return s.resolver.Resolve(ctx, identity)
}

// PostUserMessage resolves the canonical session for the identity, appends
// the message, fans it out, and hands it to the assistant trigger.
func (s *Service) PostUserMessage(ctx context.Context, identity model.Identity, content string) (MessageResult, error) {
	if strings.TrimSpace(content) == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message content is required", nil)
	}

	session, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return MessageResult{}, err
	}

	message, err := s.store.Append(ctx, session.SessionID, model.SenderUser, content)
	if err != nil {
		return MessageResult{}, err
	}

	if s.dispatcher != nil {
		s.dispatcher.MessageAppended(session, message)
	}
	if s.assistant != nil {
		s.assistant.MessageAppended(session, message)
	}

	return MessageResult{Session: session, Message: message}, nil
}

// PostStaffMessage appends to an explicit session id. Staff messages never
// reach the assistant trigger.
func (s *Service) PostStaffMessage(ctx context.Context, staffID, sessionID, content string) (MessageResult, error) {
	if strings.TrimSpace(staffID) == "" {
		return MessageResult{}, newError(ErrorCodeUnauthorized, "invalid staff identity", nil)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	message, err := s.store.Append(ctx, sessionID, model.SenderStaff, content)
	if err != nil {
		return MessageResult{}, err
	}

	session, err := s.Session(ctx, sessionID)
	if err != nil {
		return MessageResult{}, err
	}

	if s.dispatcher != nil {
		s.dispatcher.MessageAppended(session, message)
	}

	return MessageResult{Session: session, Message: message}, nil
}

func (s *Service) Session(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	session, err := s.store.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}
	return session, nil
}

// ListSessions returns recent sessions, newest first, for the staff console.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]model.ChatSessionItem, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	sessions, err := s.store.repo.ListSessions(ctx, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list sessions", err)
	}
	return sessions, nil
}

// Append stores a message without resolving an identity or notifying anyone.
// The assistant trigger uses it for bot replies; closed-session and
// validation rules still apply.
func (s *Service) Append(ctx context.Context, sessionID string, senderType model.SenderType, content string) (model.ChatMessageItem, error) {
	return s.store.Append(ctx, sessionID, senderType, content)
}

// SetAssistant wires the trigger in after construction; the trigger itself
// appends through this service, so the two reference each other.
func (s *Service) SetAssistant(assistant AssistantNotifier) {
	s.assistant = assistant
}

// ListMessages pages backward through a session. The poll path for anonymous
// clients is this call with an empty cursor.
func (s *Service) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error) {
	return s.store.List(ctx, sessionID, limit, before)
}

func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	return s.resolver.Close(ctx, sessionID)
}

// NotifyTyping forwards an ephemeral composition signal; nothing is
// persisted.
func (s *Service) NotifyTyping(sessionID string, senderType model.SenderType) {
	if s.dispatcher != nil {
		s.dispatcher.Typing(sessionID, senderType)
	}
}
