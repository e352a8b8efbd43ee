package main

import (
	"github.com/rs/zerolog/log"

	"restaurant-chat-backend/internal/api"
	"restaurant-chat-backend/internal/api/router"
	"restaurant-chat-backend/internal/assistant"
	"restaurant-chat-backend/internal/database"
	"restaurant-chat-backend/internal/env"
	"restaurant-chat-backend/internal/queue"
	chatservice "restaurant-chat-backend/internal/service/chat"
	"restaurant-chat-backend/internal/websocket"
)

func main() {
	env.CheckRequired()

	requestQueue := queue.NewRequestQueueManager(64, 16)
	// Assistant calls can hold a worker for the full responder window, so
	// they get their own pool instead of starving request workers.
	assistantQueue := queue.NewRequestQueueManager(32, 4)

	db, err := database.NewDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}

	publisher := websocket.NewPublisher()
	service := chatservice.New(db, publisher, nil)

	responder := assistant.NewHTTPResponder(env.Get(env.AssistantURL), env.Get(env.AssistantKey))
	trigger := assistant.NewTrigger(responder, service, publisher, assistantQueue)
	service.SetAssistant(trigger)

	server := api.NewAPIServer(
		":8081",
		requestQueue,
		db,
		service,
		nil,
		router.UtilsRoutes("/api/chat"),
		router.ChatPublicRoutes("/api/chat"),
	)

	server.Run()
}
