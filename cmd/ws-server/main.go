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

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub)

	// No dispatcher here: this server only delivers, it never appends.
	service := chatservice.New(db, nil, nil)

	server := api.NewAPIServer(
		":8083",
		requestQueue,
		db,
		service,
		handler,
		router.UtilsRoutes("/ws"),
		router.ChatWebsocketRoutes("/ws/chat"),
	)

	server.Run()
}
