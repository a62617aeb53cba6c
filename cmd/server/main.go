// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/auth"
	"github.com/mkarras/pileup/internal/cache"
	"github.com/mkarras/pileup/internal/channel"
	"github.com/mkarras/pileup/internal/database"
	"github.com/mkarras/pileup/internal/game"
	"github.com/mkarras/pileup/internal/handlers"
	"github.com/mkarras/pileup/internal/middleware"
	"github.com/mkarras/pileup/internal/rooms"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis connect error: %v", err)
	}

	rules := game.RulesFromEnv()
	roomSvc := rooms.NewService(logger)
	bus := channel.NewRedisChannel(cache.Rdb, logger)
	srv := handlers.NewServer(roomSvc, bus, rules, logger)

	mux := http.NewServeMux()

	// room endpoints
	mux.Handle("/room/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(srv),
	)))
	mux.Handle("/room/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(srv),
	)))
	mux.Handle("/room/join", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.JoinRoomHandler(srv),
	)))
	mux.Handle("/room/leave", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LeaveRoomHandler(srv),
	)))

	// room websocket; unwrapped so the upgrade can hijack the connection
	mux.Handle("/room/ws/", http.HandlerFunc(
		handlers.RoomWSHandler(logger, srv),
	))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
