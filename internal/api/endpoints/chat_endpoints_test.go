package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"restaurant-chat-backend/internal/dto"
	"restaurant-chat-backend/internal/env"
	internal_jwt "restaurant-chat-backend/internal/jwt"
	"restaurant-chat-backend/internal/model"
	chatservice "restaurant-chat-backend/internal/service/chat"
)

type memoryRepository struct {
	mu       sync.Mutex
	sessions map[string]model.ChatSessionItem
	messages map[string][]model.ChatMessageItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		sessions: make(map[string]model.ChatSessionItem),
		messages: make(map[string][]model.ChatMessageItem),
	}
}

func (m *memoryRepository) CreateSession(ctx context.Context, session model.ChatSessionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.PK] = session
	return nil
}

func (m *memoryRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.SessionID == sessionID {
			return session, nil
		}
	}
	return model.ChatSessionItem{}, chatservice.ErrNotFound
}

func (m *memoryRepository) ListOpenSessions(ctx context.Context, identity model.Identity) ([]model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ChatSessionItem, 0)
	for _, session := range m.sessions {
		if session.IdentityKind == identity.Kind && session.IdentityID == identity.ID && !session.Closed() {
			items = append(items, session)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SessionID < items[j].SessionID })
	return items, nil
}

func (m *memoryRepository) ListSessions(ctx context.Context, limit int) ([]model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ChatSessionItem, 0, len(m.sessions))
	for _, session := range m.sessions {
		items = append(items, session)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime > items[j].StartTime })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memoryRepository) CloseSession(ctx context.Context, pk, endTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[pk]
	if !ok {
		return chatservice.ErrNotFound
	}
	if session.EndTime != "" {
		return chatservice.ErrAlreadyClosed
	}
	session.EndTime = endTime
	m.sessions[pk] = session
	return nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, message model.ChatMessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.SessionID] = append(m.messages[message.SessionID], message)
	return nil
}

func (m *memoryRepository) LatestMessage(ctx context.Context, sessionID string) (model.ChatMessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[sessionID]
	if len(msgs) == 0 {
		return model.ChatMessageItem{}, chatservice.ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (m *memoryRepository) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]model.ChatMessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ChatMessageItem, 0)
	for _, msg := range m.messages[sessionID] {
		if before != "" && msg.MessageID >= before {
			continue
		}
		items = append(items, msg)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].MessageID < items[j].MessageID })
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func testEndpoints(t *testing.T) (*chatEndpoints, *memoryRepository) {
	t.Helper()
	repo := newMemoryRepository()
	clock := func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	service := chatservice.NewWithRepository(repo, clock, nil, nil)

	e := NewChatEndpoints(service, nil, ChatPaths{
		PublicResolvePath:   "/api/chat/sessions/resolve",
		PublicMessagesPath:  "/api/chat/messages",
		PublicSessionPrefix: "/api/chat/sessions/",
		StaffSessionsPath:   "/api/staff/sessions",
		StaffSessionPrefix:  "/api/staff/sessions/",
	})
	return e.(*chatEndpoints), repo
}

func postJSON(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		t.Fatal("expected an HTTP error")
	}
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("error is %T, want *HTTPError", err)
	}
	return httpErr.StatusCode
}

func TestResolveSessionAnonymousIsStable(t *testing.T) {
	e, _ := testEndpoints(t)

	resolve := func() string {
		rec := httptest.NewRecorder()
		req := postJSON(t, "/api/chat/sessions/resolve", dto.ResolveSessionRequest{AnonymousToken: "anon-abc"})
		if err := e.ResolveSession(rec, req); err != nil {
			t.Fatalf("resolve: %v", err)
		}
		var resp dto.ResolveSessionResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.Session.SessionID
	}

	first := resolve()
	if first == "" {
		t.Fatal("resolve returned no session id")
	}
	if second := resolve(); second != first {
		t.Fatalf("second resolve returned %s, want %s", second, first)
	}
}

func TestPostUserMessageThenList(t *testing.T) {
	e, _ := testEndpoints(t)

	rec := httptest.NewRecorder()
	req := postJSON(t, "/api/chat/messages", dto.PostMessageRequest{Content: "giá phở bao nhiêu", AnonymousToken: "anon-abc"})
	if err := e.PublicMessages(rec, req); err != nil {
		t.Fatalf("post message: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var posted dto.PostMessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&posted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	listRec := httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/"+posted.Session.SessionID+"/messages?limit=10", nil)
	if err := e.PublicSession(listRec, listReq); err != nil {
		t.Fatalf("list: %v", err)
	}

	var listed dto.ListMessagesResponse
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Messages) != 1 {
		t.Fatalf("listed %d messages, want 1", len(listed.Messages))
	}
	if listed.Messages[0].MessageID != posted.Message.MessageID {
		t.Fatalf("listed id %s, want %s", listed.Messages[0].MessageID, posted.Message.MessageID)
	}
}

func TestPostMessageWithoutIdentityRejected(t *testing.T) {
	e, _ := testEndpoints(t)

	rec := httptest.NewRecorder()
	req := postJSON(t, "/api/chat/messages", dto.PostMessageRequest{Content: "hello"})
	err := e.PublicMessages(rec, req)
	if got := httpStatus(t, err); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
}

func TestListMessagesRejectsBadLimit(t *testing.T) {
	e, _ := testEndpoints(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/some-session/messages?limit=banana", nil)
	err := e.PublicSession(rec, req)
	if got := httpStatus(t, err); got != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", got)
	}
}

func TestStaffMessageToUnknownSessionIs404(t *testing.T) {
	t.Setenv(env.StaffSecretKey, "staff-secret")
	e, _ := testEndpoints(t)

	token, err := internal_jwt.CreateToken(internal_jwt.TokenSubject{ID: "staff-1", Kind: "staff"}, internal_jwt.RoleStaff, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rec := httptest.NewRecorder()
	req := postJSON(t, "/api/staff/sessions/missing-session/messages", dto.PostMessageRequest{Content: "hello"})
	req.Header.Set("Authorization", "Bearer "+token)

	handlerErr := e.StaffSession(rec, req)
	if got := httpStatus(t, handlerErr); got != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestCloseSessionIsIdempotentOverHTTP(t *testing.T) {
	e, _ := testEndpoints(t)

	rec := httptest.NewRecorder()
	req := postJSON(t, "/api/chat/messages", dto.PostMessageRequest{Content: "xin chào", AnonymousToken: "anon-xyz"})
	if err := e.PublicMessages(rec, req); err != nil {
		t.Fatalf("post message: %v", err)
	}
	var posted dto.PostMessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&posted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	closePath := "/api/chat/sessions/" + posted.Session.SessionID + "/close"
	for i := 0; i < 2; i++ {
		closeRec := httptest.NewRecorder()
		closeReq := postJSON(t, closePath, struct{}{})
		if err := e.PublicSession(closeRec, closeReq); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
		if closeRec.Code != http.StatusOK {
			t.Fatalf("close #%d status = %d, want 200", i+1, closeRec.Code)
		}
	}
}
