package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Responder is the external completion service: opaque, potentially slow,
// and allowed to fail. Only its timeout handling belongs to this core.
type Responder interface {
	Reply(ctx context.Context, message, sessionID string) (string, error)
}

type HTTPResponder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPResponder(baseURL, apiKey string) *HTTPResponder {
	return &HTTPResponder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type replyRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (r *HTTPResponder) Reply(ctx context.Context, message, sessionID string) (string, error) {
	body, err := json.Marshal(replyRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("marshal responder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/reply", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build responder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("responder call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("responder status %d: %s", res.StatusCode, string(snippet))
	}

	var out replyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode responder reply: %w", err)
	}
	if strings.TrimSpace(out.Reply) == "" {
		return "", fmt.Errorf("responder returned empty reply")
	}

	return out.Reply, nil
}
