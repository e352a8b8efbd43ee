package chat

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"restaurant-chat-backend/internal/model"

	"github.com/oklog/ulid/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store is the append-only message log. It is the only component that writes
// message records; delivery fanout is the caller's job after a successful
// append.
type Store struct {
	repo Repository
	now  func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastTS  uint64
}

func NewStore(repo Repository, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:    repo,
		now:     now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newMessageID hands out ULIDs that stay strictly increasing within this
// process even inside one millisecond. The timestamp is clamped to the last
// issued one so a clock stepping backwards cannot mint an id that sorts
// before messages already stored; ids carry the ordering, createdAt does not.
func (s *Store) newMessageID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := ulid.Timestamp(t)
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts
	return ulid.MustNew(ts, s.entropy).String()
}

func (s *Store) Append(ctx context.Context, sessionID string, senderType model.SenderType, content string) (model.ChatMessageItem, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.ChatMessageItem{}, newError(ErrorCodeValidation, "message content is required", nil)
	}
	if !senderType.Valid() {
		return model.ChatMessageItem{}, newError(ErrorCodeValidation, "unknown sender type", nil)
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatMessageItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatMessageItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	if session.Closed() {
		return model.ChatMessageItem{}, newError(ErrorCodeConflict, "session is closed", nil)
	}

	now := s.now().UTC()
	messageID := s.newMessageID(now)
	message := model.ChatMessageItem{
		PK:         model.MessagePK(sessionID, messageID),
		SessionID:  sessionID,
		MessageID:  messageID,
		SenderType: senderType,
		Content:    content,
		CreatedAt:  now.Format(time.RFC3339),
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return model.ChatMessageItem{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	return message, nil
}

// List returns up to limit messages strictly older than the before cursor,
// ascending for display. Repeating the call with before set to the oldest
// returned id pages backward until an empty result.
func (s *Store) List(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, newError(ErrorCodeValidation, "sessionId is required", nil)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrorCodeNotFound, "session not found", err)
		}
		return nil, newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	messages, err := s.repo.ListMessages(ctx, sessionID, limit, before)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	return messages, nil
}
