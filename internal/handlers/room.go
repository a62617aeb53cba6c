// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mkarras/pileup/internal/rooms"
)

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	Password   string `json:"password,omitempty"`
	BetAmount  int    `json:"bet_amount,omitempty"`
}

// CreateRoomHandler creates a waiting room with the caller as host.
func CreateRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		user, err := EnsureEphemeralUser(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		room, err := s.Rooms.Create(r.Context(), rooms.CreateParams{
			Name:       req.Name,
			HostID:     user.ID,
			HostName:   user.Username,
			MaxPlayers: req.MaxPlayers,
			Password:   req.Password,
			BetAmount:  req.BetAmount,
		})
		if err != nil {
			s.Log.Warnf("Room create failed for %s: %v", user.ID, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, room)
	}
}

// ListRoomsHandler returns all joinable and in-progress rooms.
func ListRoomsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Rooms.List(r.Context())
		if err != nil {
			s.Log.Errorf("Room list failed: %v", err)
			http.Error(w, "failed to list rooms", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type joinRoomRequest struct {
	RoomID   uuid.UUID `json:"room_id"`
	Password string    `json:"password,omitempty"`
}

// JoinRoomHandler seats the caller in a waiting room.
func JoinRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		user, err := EnsureEphemeralUser(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		room, err := s.Rooms.Join(r.Context(), req.RoomID, user.ID, user.Username, req.Password)
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

type leaveRoomRequest struct {
	RoomID uuid.UUID `json:"room_id"`
}

// LeaveRoomHandler removes the caller from a room.
func LeaveRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		user, err := EnsureEphemeralUser(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req leaveRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		if err := s.Rooms.Leave(r.Context(), req.RoomID, user.ID); err != nil {
			writeRoomError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeRoomError maps room service errors onto HTTP statuses.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, rooms.ErrRoomFull), errors.Is(err, rooms.ErrRoomNotJoinable), errors.Is(err, rooms.ErrNotEnoughPlayers):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, rooms.ErrPasswordMismatch), errors.Is(err, rooms.ErrNotHost):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
