package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkarras/pileup/internal/models"
)

// InsertRoom creates a new room row in the DB.
func InsertRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT INTO rooms (
		id, name, host_id, max_players,
		is_private, password_hash,
		status, bet_amount, created_at
	)
	VALUES ($1, $2, $3, $4,
	        $5, $6,
	        $7, $8, $9)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			room.ID,
			room.Name,
			room.HostID,
			room.MaxPlayers,
			room.IsPrivate,
			room.PasswordHash,
			room.Status,
			room.BetAmount,
			room.CreatedAt,
		)
		return err
	})
}

// GetRoom fetches a room by ID, with the live member count joined in.
func GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var r models.Room
	q := `
	SELECT
		r.id, r.name, r.host_id, r.max_players,
		r.is_private, r.password_hash,
		r.status, r.bet_amount, r.created_at,
		(SELECT COUNT(*) FROM room_players p WHERE p.room_id = r.id)
	FROM rooms r
	WHERE r.id = $1
	`
	err := DB.QueryRow(ctx, q, roomID).Scan(
		&r.ID,
		&r.Name,
		&r.HostID,
		&r.MaxPlayers,
		&r.IsPrivate,
		&r.PasswordHash,
		&r.Status,
		&r.BetAmount,
		&r.CreatedAt,
		&r.PlayerCount,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRooms returns all rooms that have not finished, newest first.
func ListRooms(ctx context.Context) ([]models.Room, error) {
	q := `
	SELECT
		r.id, r.name, r.host_id, r.max_players,
		r.is_private, r.password_hash,
		r.status, r.bet_amount, r.created_at,
		(SELECT COUNT(*) FROM room_players p WHERE p.room_id = r.id)
	FROM rooms r
	WHERE r.status != 'finished'
	ORDER BY r.created_at DESC
	`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var r models.Room
		err := rows.Scan(
			&r.ID,
			&r.Name,
			&r.HostID,
			&r.MaxPlayers,
			&r.IsPrivate,
			&r.PasswordHash,
			&r.Status,
			&r.BetAmount,
			&r.CreatedAt,
			&r.PlayerCount,
		)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// UpdateRoomStatus moves a room through waiting -> playing -> finished.
func UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error {
	q := `UPDATE rooms SET status=$1 WHERE id=$2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, status, roomID)
		return err
	})
}

// AddRoomMember inserts a user into room_players.
func AddRoomMember(ctx context.Context, roomID, userID uuid.UUID, username string) error {
	q := `
	INSERT INTO room_players (room_id, user_id, username)
	VALUES ($1, $2, $3)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, userID, username)
		return err
	})
}

// IsRoomMember checks if the user already sits in the room.
func IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	q := `
	SELECT 1
	  FROM room_players
	  WHERE room_id = $1 AND user_id = $2
	  LIMIT 1
	`
	var tmp int
	err := DB.QueryRow(ctx, q, roomID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveRoomMember removes a user from room_players.
func RemoveRoomMember(ctx context.Context, roomID, userID uuid.UUID) error {
	q := `DELETE FROM room_players WHERE room_id=$1 AND user_id=$2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, userID)
		return err
	})
}

// ListRoomMembers returns the room's seating in join order.
func ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	q := `
	SELECT room_id, user_id, username
	FROM room_players
	WHERE room_id = $1
	ORDER BY joined_at ASC
	`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.RoomMember
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Username); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeleteRoom removes a room row by ID along with its membership.
func DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM room_players WHERE room_id=$1`, roomID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
		return err
	})
}
