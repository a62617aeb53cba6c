// internal/rooms/service.go
//
// Service owns the room lifecycle around the game: creation, membership,
// and the waiting -> playing -> finished transitions. The game core never
// sees rooms; Start hands it an ordered seat list and steps aside.
package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/auth"
	"github.com/mkarras/pileup/internal/database"
	"github.com/mkarras/pileup/internal/game"
	"github.com/mkarras/pileup/internal/models"
)

// Service coordinates room rows and membership.
type Service struct {
	log *logrus.Logger
}

// NewService returns a room service writing through the shared DB pool.
func NewService(log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{log: log}
}

// CreateParams carries the host's room settings.
type CreateParams struct {
	Name       string
	HostID     uuid.UUID
	HostName   string
	MaxPlayers int
	Password   string
	BetAmount  int
}

// Create inserts a waiting room and seats the host.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Room, error) {
	if p.MaxPlayers < game.MinPlayers || p.MaxPlayers > game.MaxPlayers {
		return nil, game.ErrBadPlayerCount
	}

	room := &models.Room{
		ID:         uuid.New(),
		Name:       p.Name,
		HostID:     p.HostID,
		MaxPlayers: p.MaxPlayers,
		Status:     models.RoomStatusWaiting,
		BetAmount:  p.BetAmount,
		CreatedAt:  time.Now().UTC(),
	}
	if p.Password != "" {
		hash, err := auth.HashRoomPassword(p.Password)
		if err != nil {
			return nil, err
		}
		room.IsPrivate = true
		room.PasswordHash = hash
	}

	if err := database.InsertRoom(ctx, room); err != nil {
		return nil, err
	}
	if err := database.AddRoomMember(ctx, room.ID, p.HostID, p.HostName); err != nil {
		return nil, err
	}
	room.PlayerCount = 1

	s.log.Infof("Room %s created by %s (max %d, private=%v)", room.ID, p.HostID, room.MaxPlayers, room.IsPrivate)
	return room, nil
}

// Get fetches one room.
func (s *Service) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := database.GetRoom(ctx, roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// List returns all rooms that have not finished.
func (s *Service) List(ctx context.Context) ([]models.Room, error) {
	return database.ListRooms(ctx)
}

// Join seats a user in a waiting room. Joining a room you already sit in is
// a no-op. Private rooms require the password.
func (s *Service) Join(ctx context.Context, roomID, userID uuid.UUID, username, password string) (*models.Room, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, ErrRoomNotJoinable
	}

	already, err := database.IsRoomMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if already {
		return room, nil
	}

	if room.PlayerCount >= room.MaxPlayers {
		return nil, ErrRoomFull
	}
	if room.IsPrivate {
		ok, err := auth.VerifyRoomPassword(password, room.PasswordHash)
		if err != nil || !ok {
			return nil, ErrPasswordMismatch
		}
	}

	if err := database.AddRoomMember(ctx, roomID, userID, username); err != nil {
		return nil, err
	}
	room.PlayerCount++
	return room, nil
}

// Leave removes a user from a room. When the host leaves the whole room is
// torn down; a game in progress continues on the remaining clients until
// their own teardown.
func (s *Service) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID == userID {
		s.log.Infof("Host left; deleting room %s", roomID)
		return database.DeleteRoom(ctx, roomID)
	}
	return database.RemoveRoomMember(ctx, roomID, userID)
}

// Start flips a waiting room to playing and returns the dealt seat order,
// which is the join order. Host only.
func (s *Service) Start(ctx context.Context, roomID, userID uuid.UUID) ([]game.Seat, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != userID {
		return nil, ErrNotHost
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, ErrRoomNotJoinable
	}

	members, err := database.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) < game.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	if err := database.UpdateRoomStatus(ctx, roomID, models.RoomStatusPlaying); err != nil {
		return nil, err
	}

	seats := make([]game.Seat, 0, len(members))
	for _, m := range members {
		seats = append(seats, game.Seat{ID: m.UserID, DisplayName: m.Username})
	}
	s.log.Infof("Room %s started with %d players", roomID, len(seats))
	return seats, nil
}

// Finish marks a room's game as over.
func (s *Service) Finish(ctx context.Context, roomID uuid.UUID) error {
	return database.UpdateRoomStatus(ctx, roomID, models.RoomStatusFinished)
}
