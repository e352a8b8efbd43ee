package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurant-chat-backend/internal/dto"
)

// API is the widget's HTTP client for the public chat endpoints. Appends,
// lists and resolves all go through here; push delivery has its own
// Subscription.
type API struct {
	baseURL        string
	anonymousToken string
	client         *http.Client
}

func NewAPI(baseURL, anonymousToken string) *API {
	return &API{
		baseURL:        strings.TrimRight(baseURL, "/"),
		anonymousToken: anonymousToken,
		client:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *API) ResolveSession(ctx context.Context) (dto.SessionResponse, error) {
	var out dto.ResolveSessionResponse
	err := a.doJSON(ctx, http.MethodPost, "/api/chat/sessions/resolve",
		dto.ResolveSessionRequest{AnonymousToken: a.anonymousToken}, &out)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return out.Session, nil
}

func (a *API) PostMessage(ctx context.Context, content string) (dto.PostMessageResponse, error) {
	var out dto.PostMessageResponse
	err := a.doJSON(ctx, http.MethodPost, "/api/chat/messages",
		dto.PostMessageRequest{Content: content, AnonymousToken: a.anonymousToken}, &out)
	return out, err
}

func (a *API) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]dto.MessageResponse, error) {
	path := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages?limit=" + strconv.Itoa(limit)
	if before != "" {
		path += "&before=" + url.QueryEscape(before)
	}
	var out dto.ListMessagesResponse
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (a *API) Typing(ctx context.Context, sessionID string) error {
	return a.doJSON(ctx, http.MethodPost,
		"/api/chat/sessions/"+url.PathEscape(sessionID)+"/typing",
		dto.TypingRequest{SenderType: "user", AnonymousToken: a.anonymousToken}, nil)
}

func (a *API) CloseSession(ctx context.Context, sessionID string) error {
	return a.doJSON(ctx, http.MethodPost,
		"/api/chat/sessions/"+url.PathEscape(sessionID)+"/close",
		dto.ResolveSessionRequest{AnonymousToken: a.anonymousToken}, nil)
}

func (a *API) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
