package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"restaurant-chat-backend/internal/dto"
	internal_jwt "restaurant-chat-backend/internal/jwt"
	"restaurant-chat-backend/internal/model"
	chatservice "restaurant-chat-backend/internal/service/chat"
	"restaurant-chat-backend/internal/websocket"
)

const defaultListLimit = 50

type ChatEndpoints interface {
	ResolveSession(http.ResponseWriter, *http.Request) error
	PublicMessages(http.ResponseWriter, *http.Request) error
	PublicSession(http.ResponseWriter, *http.Request) error
	StaffSessions(http.ResponseWriter, *http.Request) error
	StaffSession(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	PublicResolvePath   string
	PublicMessagesPath  string
	PublicSessionPrefix string
	StaffSessionsPath   string
	StaffSessionPrefix  string
	WebsocketPrefix     string
}

type chatEndpoints struct {
	service *chatservice.Service
	handler *websocket.Handler
	paths   ChatPaths
}

func NewChatEndpoints(service *chatservice.Service, handler *websocket.Handler, paths ChatPaths) ChatEndpoints {
	return &chatEndpoints{
		service: service,
		handler: handler,
		paths:   paths,
	}
}

func (h *chatEndpoints) ResolveSession(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleResolveSession,
	})
}

func (h *chatEndpoints) PublicMessages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handlePostUserMessage,
	})
}

func (h *chatEndpoints) PublicSession(w http.ResponseWriter, r *http.Request) error {
	sessionID, action, err := h.extractSessionAction(r.URL.Path, h.paths.PublicSessionPrefix)
	if err != nil {
		return err
	}

	switch action {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.listMessagesHandler(sessionID),
		})
	case "typing":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.typingHandler(sessionID, model.SenderUser),
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.closeHandler(sessionID),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown session action: %s", action),
		}
	}
}

func (h *chatEndpoints) StaffSessions(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListSessions,
	})
}

func (h *chatEndpoints) StaffSession(w http.ResponseWriter, r *http.Request) error {
	sessionID, action, err := h.extractSessionAction(r.URL.Path, h.paths.StaffSessionPrefix)
	if err != nil {
		return err
	}

	switch action {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.listMessagesHandler(sessionID),
			http.MethodPost: h.postStaffMessageHandler(sessionID),
		})
	case "typing":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.typingHandler(sessionID, model.SenderStaff),
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.closeHandler(sessionID),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown session action: %s", action),
		}
	}
}

// Websocket joins the caller to a session's push channel. The session id is
// an unguessable capability; unknown ids are rejected before a room exists.
func (h *chatEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("websocket handler missing"),
		}
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, h.paths.WebsocketPrefix), "/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Session not found",
			ErrorLog:   fmt.Errorf("websocket session id missing in path: %s", r.URL.Path),
		}
	}

	if _, err := h.service.Session(r.Context(), sessionID); err != nil {
		return h.serviceError(err)
	}

	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	if clientID == "" {
		clientID = uuid.NewString()
	}

	h.handler.JoinSession(w, r, sessionID, clientID)
	return nil
}

func (h *chatEndpoints) handleResolveSession(w http.ResponseWriter, r *http.Request) error {
	var req dto.ResolveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode resolve request: %w", err),
		}
	}

	identity, err := h.identityFromRequest(r, req.AnonymousToken)
	if err != nil {
		return err
	}

	session, err := h.service.ResolveSession(r.Context(), identity)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ResolveSessionResponse{Session: toSessionResponse(session)})
}

func (h *chatEndpoints) handlePostUserMessage(w http.ResponseWriter, r *http.Request) error {
	var req dto.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode message request: %w", err),
		}
	}

	identity, err := h.identityFromRequest(r, req.AnonymousToken)
	if err != nil {
		return err
	}

	result, err := h.service.PostUserMessage(r.Context(), identity, req.Content)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{
		Session: toSessionResponse(result.Session),
		Message: toMessageResponse(result.Message),
	})
}

func (h *chatEndpoints) listMessagesHandler(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				return &HTTPError{
					StatusCode: http.StatusBadRequest,
					Message:    "Invalid limit parameter",
					ErrorLog:   fmt.Errorf("parse limit %q: %v", raw, err),
				}
			}
			limit = parsed
		}
		before := r.URL.Query().Get("before")

		messages, err := h.service.ListMessages(r.Context(), sessionID, limit, before)
		if err != nil {
			return h.serviceError(err)
		}

		resp := dto.ListMessagesResponse{Messages: make([]dto.MessageResponse, len(messages))}
		for i, msg := range messages {
			resp.Messages[i] = toMessageResponse(msg)
		}
		return WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *chatEndpoints) postStaffMessageHandler(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		staffID, err := h.staffFromRequest(r)
		if err != nil {
			return err
		}

		var req dto.PostMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request payload",
				ErrorLog:   fmt.Errorf("decode staff message request: %w", err),
			}
		}

		result, err := h.service.PostStaffMessage(r.Context(), staffID, sessionID, req.Content)
		if err != nil {
			return h.serviceError(err)
		}

		return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{
			Session: toSessionResponse(result.Session),
			Message: toMessageResponse(result.Message),
		})
	}
}

func (h *chatEndpoints) typingHandler(sessionID string, senderType model.SenderType) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if _, err := h.service.Session(r.Context(), sessionID); err != nil {
			return h.serviceError(err)
		}
		h.service.NotifyTyping(sessionID, senderType)
		return WriteJSON(w, http.StatusAccepted, struct{}{})
	}
}

func (h *chatEndpoints) closeHandler(sessionID string) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := h.service.CloseSession(r.Context(), sessionID); err != nil {
			return h.serviceError(err)
		}
		return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Session closed"})
	}
}

func (h *chatEndpoints) handleListSessions(w http.ResponseWriter, r *http.Request) error {
	sessions, err := h.service.ListSessions(r.Context(), defaultListLimit)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListSessionsResponse{Sessions: make([]dto.SessionResponse, len(sessions))}
	for i, session := range sessions {
		resp.Sessions[i] = toSessionResponse(session)
	}
	return WriteJSON(w, http.StatusOK, resp)
}

// identityFromRequest builds the caller's identity: an Authorization bearer
// token yields a customer or guest, otherwise the client-minted anonymous
// token is accepted as an opaque id.
func (h *chatEndpoints) identityFromRequest(r *http.Request, anonymousToken string) (model.Identity, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth != "" {
		tokenString := strings.TrimPrefix(auth, "Bearer ")

		claims, err := internal_jwt.ParseToken(tokenString, internal_jwt.RoleCustomer)
		if err != nil {
			claims, err = internal_jwt.ParseToken(tokenString, internal_jwt.RoleGuest)
		}
		if err != nil {
			return model.Identity{}, &HTTPError{
				StatusCode: http.StatusUnauthorized,
				Message:    "Unauthorized",
				ErrorLog:   fmt.Errorf("parse user token: %w", err),
			}
		}

		subject, err := internal_jwt.SubjectFromClaims(claims)
		if err != nil {
			return model.Identity{}, &HTTPError{
				StatusCode: http.StatusUnauthorized,
				Message:    "Unauthorized",
				ErrorLog:   err,
			}
		}
		if subject.Kind == string(model.IdentityGuest) {
			return model.GuestIdentity(subject.ID), nil
		}
		return model.CustomerIdentity(subject.ID), nil
	}

	anonymousToken = strings.TrimSpace(anonymousToken)
	if anonymousToken != "" {
		return model.AnonymousIdentity(anonymousToken), nil
	}

	return model.Identity{}, &HTTPError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Missing identity",
		ErrorLog:   fmt.Errorf("no authorization header and no anonymous token"),
	}
}

func (h *chatEndpoints) staffFromRequest(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing staff authorization"),
		}
	}

	claims, err := internal_jwt.ParseToken(strings.TrimPrefix(auth, "Bearer "), internal_jwt.RoleStaff)
	if err != nil {
		return "", &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse staff token: %w", err),
		}
	}
	subject, err := internal_jwt.SubjectFromClaims(claims)
	if err != nil {
		return "", &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   err,
		}
	}
	return subject.ID, nil
}

func (h *chatEndpoints) extractSessionAction(path, prefix string) (string, string, error) {
	if prefix == "" {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("session route not configured")}
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("session path mismatch: %s", path)}
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("invalid session path: %s", path)}
	}
	return parts[0], parts[1], nil
}

func (h *chatEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *chatservice.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case chatservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func toSessionResponse(session model.ChatSessionItem) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID:    session.SessionID,
		IdentityKind: string(session.IdentityKind),
		StartTime:    session.StartTime,
		EndTime:      session.EndTime,
	}
}

func toMessageResponse(message model.ChatMessageItem) dto.MessageResponse {
	return dto.MessageResponse{
		MessageID:  message.MessageID,
		SessionID:  message.SessionID,
		SenderType: string(message.SenderType),
		Content:    message.Content,
		CreatedAt:  message.CreatedAt,
	}
}
