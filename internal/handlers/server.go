// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/channel"
	"github.com/mkarras/pileup/internal/game"
	"github.com/mkarras/pileup/internal/rooms"
)

// Server bundles the dependencies the HTTP and WebSocket handlers share:
// the room service, the broadcast channel, and the rule set every session
// in this process plays under.
type Server struct {
	Rooms   *rooms.Service
	Channel channel.RoomChannel
	Rules   game.Rules
	Log     *logrus.Logger
}

// NewServer wires a handler server.
func NewServer(roomSvc *rooms.Service, ch channel.RoomChannel, rules game.Rules, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		Rooms:   roomSvc,
		Channel: ch,
		Rules:   rules,
		Log:     log,
	}
}
