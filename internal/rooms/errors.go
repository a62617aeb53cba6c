package rooms

import "errors"

var (
	// ErrRoomNotFound indicates no room exists with the given ID.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull indicates the room already seats its maximum.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomNotJoinable indicates the room has started or finished.
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	// ErrPasswordMismatch indicates a wrong password for a private room.
	ErrPasswordMismatch = errors.New("incorrect room password")
	// ErrNotHost indicates a host-only operation from a non-host.
	ErrNotHost = errors.New("only the host may do that")
	// ErrNotEnoughPlayers indicates a start attempt below the player minimum.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)
