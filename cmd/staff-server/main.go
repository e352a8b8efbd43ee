package main

import (
	"github.com/rs/zerolog/log"

	"restaurant-chat-backend/internal/api"
	"restaurant-chat-backend/internal/api/router"
	"restaurant-chat-backend/internal/database"
	"restaurant-chat-backend/internal/env"
	"restaurant-chat-backend/internal/queue"
	chatservice "restaurant-chat-backend/internal/service/chat"
	"restaurant-chat-backend/internal/websocket"
)

func main() {
	env.CheckRequired()

	requestQueue := queue.NewRequestQueueManager(64, 16)

	db, err := database.NewDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}

	// Staff messages fan out through the same push channels; the assistant
	// never runs here.
	publisher := websocket.NewPublisher()
	service := chatservice.New(db, publisher, nil)

	server := api.NewAPIServer(
		":8082",
		requestQueue,
		db,
		service,
		nil,
		router.UtilsRoutes("/api/staff"),
		router.ChatStaffRoutes("/api/staff"),
	)

	server.Run()
}
