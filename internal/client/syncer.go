package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"restaurant-chat-backend/internal/dto"
)

// optimisticMatchWindow bounds how old a pending send may be and still be
// matched to an incoming confirmed message with the same sender and content.
const optimisticMatchWindow = 2 * time.Minute

const defaultPollLimit = 50

// Message is one entry of the visible transcript. Pending entries carry a
// TempID and no server ID until confirmation arrives.
type Message struct {
	ID         string
	TempID     string
	SessionID  string
	SenderType string
	Content    string
	CreatedAt  string
	Pending    bool
}

type serverAPI interface {
	ResolveSession(ctx context.Context) (dto.SessionResponse, error)
	PostMessage(ctx context.Context, content string) (dto.PostMessageResponse, error)
	ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]dto.MessageResponse, error)
}

// Syncer merges list fetches, push events or poll diffs, and optimistic
// sends into one ordered deduplicated view per session, writing the view
// through to the local cache after every mutation.
type Syncer struct {
	mu        sync.Mutex
	api       serverAPI
	cache     *LocalCache
	sessionID string
	messages  []Message
	known     map[string]struct{}
	now       func() time.Time
}

func NewSyncer(api *API, cache *LocalCache) *Syncer {
	return newSyncer(api, cache, time.Now)
}

func newSyncer(api serverAPI, cache *LocalCache, now func() time.Time) *Syncer {
	return &Syncer{
		api:   api,
		cache: cache,
		known: make(map[string]struct{}),
		now:   now,
	}
}

// Open resolves the canonical session and primes the view from the local
// cache when it belongs to the same session. Resolution failure leaves the
// cached view usable offline.
func (s *Syncer) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SweepIfDue(); err != nil {
			log.Warn().Err(err).Msg("cache sweep failed")
		}
	}

	session, err := s.api.ResolveSession(ctx)
	if err != nil {
		s.restoreCachedLocked()
		return fmt.Errorf("resolve session: %w", err)
	}

	s.adoptSessionLocked(session.SessionID)
	s.restoreCachedLocked()
	return nil
}

func (s *Syncer) adoptSessionLocked(sessionID string) {
	if sessionID == s.sessionID {
		return
	}
	s.sessionID = sessionID
	if s.cache != nil {
		if err := s.cache.SetMeta(metaSessionID, sessionID); err != nil {
			log.Warn().Err(err).Msg("failed to persist session id")
		}
	}
}

func (s *Syncer) restoreCachedLocked() {
	if s.cache == nil || len(s.messages) > 0 {
		return
	}
	sessionID := s.sessionID
	if sessionID == "" {
		cached, err := s.cache.GetMeta(metaSessionID)
		if err != nil || cached == "" {
			return
		}
		sessionID = cached
		s.sessionID = cached
	}

	cached, err := s.cache.LoadMessages(sessionID)
	if err != nil {
		// Corrupt cache: start fresh rather than fail.
		log.Warn().Err(err).Msg("cache unreadable, starting with empty view")
		return
	}
	for _, m := range cached {
		if m.MessageID == "" {
			continue // pending sends do not survive a restart
		}
		s.applyLocked(Message{
			ID:         m.MessageID,
			SessionID:  m.SessionID,
			SenderType: m.SenderType,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
}

// SessionID returns the current canonical session id, which can change
// underneath a long-lived client when the server reconciles duplicates.
func (s *Syncer) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Messages returns a snapshot of the ordered view.
func (s *Syncer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send appends optimistically, then posts to the server. On confirmation the
// temp entry is replaced by the server record; on failure it is removed.
func (s *Syncer) Send(ctx context.Context, content string) (Message, error) {
	tempID := "tmp-" + uuid.NewString()

	s.mu.Lock()
	pending := Message{
		TempID:     tempID,
		SessionID:  s.sessionID,
		SenderType: "user",
		Content:    content,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
		Pending:    true,
	}
	s.messages = append(s.messages, pending)
	s.persistLocked()
	s.mu.Unlock()

	out, err := s.api.PostMessage(ctx, content)
	if err != nil {
		s.mu.Lock()
		s.removeTempLocked(tempID)
		s.persistLocked()
		s.mu.Unlock()
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptSessionLocked(out.Session.SessionID)
	s.removeTempLocked(tempID)
	confirmed := fromDTO(out.Message)
	s.applyLocked(confirmed)
	s.persistLocked()
	return confirmed, nil
}

// Apply folds a server message into the view: deduplicated by id, and
// matched against a pending optimistic entry before insertion so a confirmed
// send never shows up twice.
func (s *Syncer) Apply(message dto.MessageResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := s.applyLocked(fromDTO(message))
	if added {
		s.persistLocked()
	}
	return added
}

func (s *Syncer) applyLocked(message Message) bool {
	if message.ID == "" {
		return false
	}
	if _, seen := s.known[message.ID]; seen {
		return false
	}

	if idx := s.matchPendingLocked(message); idx >= 0 {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	}

	s.known[message.ID] = struct{}{}
	s.messages = append(s.messages, message)
	s.sortLocked()
	return true
}

// matchPendingLocked finds the newest pending entry with the same sender and
// content, recent enough to plausibly be this confirmation.
func (s *Syncer) matchPendingLocked(confirmed Message) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if !m.Pending || m.SenderType != confirmed.SenderType || m.Content != confirmed.Content {
			continue
		}
		if sent, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
			if s.now().UTC().Sub(sent) > optimisticMatchWindow {
				continue
			}
		}
		return i
	}
	return -1
}

func (s *Syncer) removeTempLocked(tempID string) {
	for i, m := range s.messages {
		if m.TempID == tempID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// sortLocked keeps confirmed messages in id order with pending sends after
// them. Message ids sort lexicographically in creation order.
func (s *Syncer) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		a, b := s.messages[i], s.messages[j]
		if a.Pending != b.Pending {
			return !a.Pending
		}
		if a.Pending {
			return false // pending entries keep insertion order
		}
		return a.ID < b.ID
	})
}

// LoadMore fetches up to limit messages older than the oldest known one and
// folds them in at the head of the view.
func (s *Syncer) LoadMore(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	sessionID := s.sessionID
	before := ""
	for _, m := range s.messages {
		if !m.Pending {
			before = m.ID
			break
		}
	}
	s.mu.Unlock()

	if sessionID == "" {
		return 0, fmt.Errorf("no session resolved")
	}

	older, err := s.api.ListMessages(ctx, sessionID, limit, before)
	if err != nil {
		return 0, fmt.Errorf("load more: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, m := range older {
		if s.applyLocked(fromDTO(m)) {
			added++
		}
	}
	if added > 0 {
		s.persistLocked()
	}
	return added, nil
}

// Poll fetches the newest page and diffs it against the known id set,
// returning how many genuinely new messages appeared. Used by the anonymous
// pull path.
func (s *Syncer) Poll(ctx context.Context) (int, error) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" {
		return 0, fmt.Errorf("no session resolved")
	}

	latest, err := s.api.ListMessages(ctx, sessionID, defaultPollLimit, "")
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, m := range latest {
		if s.applyLocked(fromDTO(m)) {
			added++
		}
	}
	if added > 0 {
		s.persistLocked()
	}
	return added, nil
}

// Authenticated marks the anonymous to authenticated transition: the local
// cache is purged outright and the in-memory view reset. No anonymous
// history crosses over.
func (s *Syncer) Authenticated() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.known = make(map[string]struct{})
	s.sessionID = ""

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Purge(); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// persistLocked writes the view through to the cache. A failed write gets
// one eviction sweep and one retry, then is dropped: losing cache is better
// than losing the widget.
func (s *Syncer) persistLocked() {
	if s.cache == nil || s.sessionID == "" {
		return
	}

	cached := make([]CachedMessage, 0, len(s.messages))
	for _, m := range s.messages {
		cached = append(cached, CachedMessage{
			SessionID:  s.sessionID,
			MessageID:  m.ID,
			TempID:     m.TempID,
			SenderType: m.SenderType,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}

	if err := s.cache.SaveMessages(s.sessionID, cached); err != nil {
		log.Warn().Err(err).Msg("cache write failed, evicting and retrying")
		if evictErr := s.cache.Evict(); evictErr != nil {
			log.Warn().Err(evictErr).Msg("cache eviction failed, dropping write")
			return
		}
		if err := s.cache.SaveMessages(s.sessionID, cached); err != nil {
			log.Warn().Err(err).Msg("cache write still failing, dropping write")
		}
	}
}

func fromDTO(m dto.MessageResponse) Message {
	return Message{
		ID:         m.MessageID,
		SessionID:  m.SessionID,
		SenderType: m.SenderType,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
