package models

import (
	"time"

	"github.com/google/uuid"
)

// Room statuses. A session is created on the waiting->playing transition and
// torn down on ->finished (or when the host leaves).
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
)

// Room is a row in the rooms table. The game core never touches it directly;
// it only governs when sessions start and stop.
type Room struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	HostID       uuid.UUID `json:"host_id"`
	MaxPlayers   int       `json:"max_players"`
	IsPrivate    bool      `json:"is_private"`
	PasswordHash string    `json:"-"`
	PlayerCount  int       `json:"player_count"`
	Status       string    `json:"status"`
	BetAmount    int       `json:"bet_amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoomMember is a row in the room_players membership table.
type RoomMember struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}
