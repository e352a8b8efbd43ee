package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"restaurant-chat-backend/internal/dto"
)

type fakeServer struct {
	mu         sync.Mutex
	session    dto.SessionResponse
	messages   []dto.MessageResponse
	nextID     int
	resolveErr error
	postErr    error
	listErr    error
	listCalls  int
}

func newFakeServer(sessionID string) *fakeServer {
	return &fakeServer{
		session: dto.SessionResponse{
			SessionID:    sessionID,
			IdentityKind: "anonymous",
			StartTime:    "2026-09-01T09:00:00Z",
		},
	}
}

func (f *fakeServer) ResolveSession(ctx context.Context) (dto.SessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return dto.SessionResponse{}, f.resolveErr
	}
	return f.session, nil
}

func (f *fakeServer) PostMessage(ctx context.Context, content string) (dto.PostMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return dto.PostMessageResponse{}, f.postErr
	}
	msg := f.appendLocked("user", content)
	return dto.PostMessageResponse{Session: f.session, Message: msg}, nil
}

func (f *fakeServer) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]dto.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var eligible []dto.MessageResponse
	for _, m := range f.messages {
		if m.SessionID != sessionID {
			continue
		}
		if before != "" && m.MessageID >= before {
			continue
		}
		eligible = append(eligible, m)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].MessageID < eligible[j].MessageID })
	if len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	return eligible, nil
}

func (f *fakeServer) seed(senderType, content string) dto.MessageResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(senderType, content)
}

func (f *fakeServer) appendLocked(senderType, content string) dto.MessageResponse {
	f.nextID++
	msg := dto.MessageResponse{
		MessageID:  fmt.Sprintf("m-%06d", f.nextID),
		SessionID:  f.session.SessionID,
		SenderType: senderType,
		Content:    content,
		CreatedAt:  "2026-09-01T10:00:00Z",
	}
	f.messages = append(f.messages, msg)
	return msg
}

func testSyncer(t *testing.T, server *fakeServer) *Syncer {
	t.Helper()
	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return newSyncer(server, nil, func() time.Time { return fixed })
}

func TestOptimisticSendYieldsSingleEntry(t *testing.T) {
	server := newFakeServer("sess-1")
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	sent, err := syncer.Send(context.Background(), "giá phở bao nhiêu")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	view := syncer.Messages()
	if len(view) != 1 {
		t.Fatalf("view has %d entries, want exactly 1", len(view))
	}
	if view[0].Pending {
		t.Fatal("confirmed message still marked pending")
	}
	if view[0].ID != sent.ID {
		t.Fatalf("view id = %s, want %s", view[0].ID, sent.ID)
	}

	// The same message arriving again as a push echo must not duplicate.
	if added := syncer.Apply(dto.MessageResponse{MessageID: sent.ID, SessionID: "sess-1", SenderType: "user", Content: "giá phở bao nhiêu", CreatedAt: sent.CreatedAt}); added {
		t.Fatal("push echo was treated as new")
	}
	if got := len(syncer.Messages()); got != 1 {
		t.Fatalf("view has %d entries after echo, want 1", got)
	}
}

func TestSendFailureRemovesOptimisticEntry(t *testing.T) {
	server := newFakeServer("sess-1")
	server.postErr = errors.New("network down")
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := syncer.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected send error")
	}
	if got := len(syncer.Messages()); got != 0 {
		t.Fatalf("view has %d entries after failed send, want 0", got)
	}
}

func TestPushConfirmationReplacesPending(t *testing.T) {
	server := newFakeServer("sess-1")
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	// A pending optimistic entry, as if the POST response were still in
	// flight when the push event for it lands.
	syncer.mu.Lock()
	syncer.messages = append(syncer.messages, Message{
		TempID:     "tmp-race",
		SessionID:  "sess-1",
		SenderType: "user",
		Content:    "đặt bàn cho 2 người",
		CreatedAt:  syncer.now().UTC().Format(time.RFC3339),
		Pending:    true,
	})
	syncer.mu.Unlock()

	confirmed := server.seed("user", "đặt bàn cho 2 người")
	if added := syncer.Apply(confirmed); !added {
		t.Fatal("confirmation not applied")
	}

	view := syncer.Messages()
	if len(view) != 1 {
		t.Fatalf("view has %d entries, want 1", len(view))
	}
	if view[0].Pending || view[0].ID != confirmed.MessageID {
		t.Fatalf("pending entry not replaced: %+v", view[0])
	}
}

func TestStalePendingNotMatched(t *testing.T) {
	server := newFakeServer("sess-1")
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Pending entry created well outside the match window: an identical
	// incoming message is someone else's, not this send's confirmation.
	stale := syncer.now().Add(-10 * time.Minute).UTC().Format(time.RFC3339)
	syncer.mu.Lock()
	syncer.messages = append(syncer.messages, Message{
		TempID: "tmp-old", SessionID: "sess-1", SenderType: "user",
		Content: "hello", CreatedAt: stale, Pending: true,
	})
	syncer.mu.Unlock()

	syncer.Apply(server.seed("user", "hello"))

	view := syncer.Messages()
	if len(view) != 2 {
		t.Fatalf("view has %d entries, want pending + confirmed", len(view))
	}
}

func TestLoadMorePrependsOlderWithoutOverlap(t *testing.T) {
	server := newFakeServer("sess-1")
	for i := 0; i < 120; i++ {
		server.seed("user", fmt.Sprintf("message %d", i))
	}
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := syncer.Poll(context.Background()); err != nil {
		t.Fatalf("initial poll: %v", err)
	}
	if got := len(syncer.Messages()); got != 50 {
		t.Fatalf("initial view = %d messages, want newest 50", got)
	}

	added, err := syncer.LoadMore(context.Background(), 50)
	if err != nil {
		t.Fatalf("load more: %v", err)
	}
	if added != 50 {
		t.Fatalf("load more added %d, want 50", added)
	}

	view := syncer.Messages()
	if len(view) != 100 {
		t.Fatalf("view = %d messages, want 100", len(view))
	}
	for i := 1; i < len(view); i++ {
		if view[i-1].ID >= view[i].ID {
			t.Fatalf("order violated at %d: %s >= %s", i, view[i-1].ID, view[i].ID)
		}
	}
	if view[0].ID != "m-000021" {
		t.Fatalf("oldest loaded id = %s, want m-000021", view[0].ID)
	}
}

func TestPollDiffsAgainstKnownIDs(t *testing.T) {
	server := newFakeServer("sess-1")
	server.seed("staff", "chào bạn")
	syncer := testSyncer(t, server)
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	added, err := syncer.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if added != 1 {
		t.Fatalf("first poll added %d, want 1", added)
	}

	added, err = syncer.Poll(context.Background())
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if added != 0 {
		t.Fatalf("second poll added %d, want 0", added)
	}

	server.seed("bot", "menu đây ạ")
	added, err = syncer.Poll(context.Background())
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if added != 1 {
		t.Fatalf("third poll added %d, want 1", added)
	}
}

func TestOpenFallsBackToCachedViewOffline(t *testing.T) {
	cache := openTestCache(t)
	if err := cache.SetMeta(metaSessionID, "sess-1"); err != nil {
		t.Fatalf("seed meta: %v", err)
	}
	if err := cache.SaveMessages("sess-1", []CachedMessage{
		{SessionID: "sess-1", MessageID: "m-000001", SenderType: "user", Content: "hello", CreatedAt: "2026-08-31T10:00:00Z"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	server := newFakeServer("sess-1")
	server.resolveErr = errors.New("offline")
	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	syncer := newSyncer(server, cache, func() time.Time { return fixed })

	if err := syncer.Open(context.Background()); err == nil {
		t.Fatal("expected resolve error")
	}
	view := syncer.Messages()
	if len(view) != 1 || view[0].Content != "hello" {
		t.Fatalf("cached view not restored: %+v", view)
	}
}

func TestAuthenticatedTransitionPurges(t *testing.T) {
	cache := openTestCache(t)
	server := newFakeServer("sess-1")
	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	syncer := newSyncer(server, cache, func() time.Time { return fixed })
	if err := syncer.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := syncer.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := syncer.Authenticated(); err != nil {
		t.Fatalf("authenticated: %v", err)
	}

	if got := len(syncer.Messages()); got != 0 {
		t.Fatalf("view has %d entries after transition, want 0", got)
	}
	cached, err := cache.LoadMessages("sess-1")
	if err != nil {
		t.Fatalf("load cache: %v", err)
	}
	if len(cached) != 0 {
		t.Fatal("anonymous history survived the transition")
	}
}
