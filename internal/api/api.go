package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"restaurant-chat-backend/internal/database"
	"restaurant-chat-backend/internal/queue"
	chatservice "restaurant-chat-backend/internal/service/chat"
	"restaurant-chat-backend/internal/websocket"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	chat                *chatservice.Service
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, db *database.Database, chat *chatservice.Service, handler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		db:                  db,
		chat:                chat,
		handler:             handler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	log.Info().Str("addr", s.listenAddr).Msg("server listening")

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Chat() *chatservice.Service {
	return s.chat
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}
