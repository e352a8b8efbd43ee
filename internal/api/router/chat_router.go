package router

import (
	"net/http"
	"strings"

	"restaurant-chat-backend/internal/api"
	"restaurant-chat-backend/internal/api/endpoints"
	"restaurant-chat-backend/internal/api/middleware"
)

// ChatPublicRoutes serves the widget: resolve, append, list, typing, close.
// Identity comes from a user token or the anonymous token in the payload, so
// there is no JWT gate here.
func ChatPublicRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := endpoints.NewChatEndpoints(s.Chat(), s.Handler(), endpoints.ChatPaths{
			PublicResolvePath:   base + "/sessions/resolve",
			PublicMessagesPath:  base + "/messages",
			PublicSessionPrefix: base + "/sessions/",
		})

		mux.HandleFunc(base+"/sessions/resolve", s.MakeHTTPHandleFunc(chatEndpoints.ResolveSession))
		mux.HandleFunc(base+"/messages", s.MakeHTTPHandleFunc(chatEndpoints.PublicMessages))
		mux.HandleFunc(base+"/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.PublicSession))
	}
}

// ChatStaffRoutes serves the staff console behind the staff JWT gate.
func ChatStaffRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := endpoints.NewChatEndpoints(s.Chat(), s.Handler(), endpoints.ChatPaths{
			StaffSessionsPath:  base + "/sessions",
			StaffSessionPrefix: base + "/sessions/",
		})

		mux.HandleFunc(base+"/sessions", s.MakeHTTPHandleFunc(chatEndpoints.StaffSessions, middleware.ValidateStaffJWT))
		mux.HandleFunc(base+"/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.StaffSession, middleware.ValidateStaffJWT))
	}
}

// ChatWebsocketRoutes serves push delivery joins.
func ChatWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := endpoints.NewChatEndpoints(s.Chat(), s.Handler(), endpoints.ChatPaths{
			WebsocketPrefix: base + "/",
		})

		mux.HandleFunc(base+"/", s.MakeHTTPHandleFunc(chatEndpoints.Websocket))
	}
}
