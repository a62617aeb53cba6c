// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/cache"
	"github.com/mkarras/pileup/internal/database"
	"github.com/mkarras/pileup/internal/game"
	"github.com/mkarras/pileup/internal/models"
	"github.com/mkarras/pileup/internal/session"
)

// RoomMessage is the structure for incoming WebSocket messages on a room
// connection.
type RoomMessage struct {
	Type string `json:"type"`

	// Approve carries the ballot for "vote" messages.
	Approve bool `json:"approve,omitempty"`
}

// RoomWSHandler upgrades the HTTP connection to WebSocket for a room. It
// authenticates the user, verifies membership, spins up the player's session
// client, and runs the read loop until the connection drops.
func RoomWSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract room ID from URL path: /room/ws/{room_id}
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing room_id in path (/room/ws/{room_id})", http.StatusBadRequest)
			return
		}
		roomID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid room_id format", http.StatusBadRequest)
			return
		}

		room, err := s.Rooms.Get(r.Context(), roomID)
		if err != nil {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		if room.Status == models.RoomStatusFinished {
			http.Error(w, "Room has already finished", http.StatusGone)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"pileup"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "pileup" {
			logger.Warnf("Client for room %s connected with invalid subprotocol: %s", roomID, c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'pileup' subprotocol.")
			return
		}
		logger.Infof("WebSocket connection established for room %s from %s", roomID, r.RemoteAddr)

		user, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for room %s: %v", roomID, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}

		member, err := database.IsRoomMember(r.Context(), roomID, user.ID)
		if err != nil || !member {
			logger.Warnf("User %s is not seated in room %s. Closing connection.", user.ID, roomID)
			c.Close(websocket.StatusPolicyViolation, "Join the room before connecting.")
			return
		}
		logger.Infof("User %s authenticated for room %s", user.ID, roomID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := session.NewClient(session.Options{
			RoomID:   roomID,
			PlayerID: user.ID,
			Channel:  s.Channel,
			Rules:    s.Rules,
			Logger:   logger,
			OnState: func(snap *game.Session) {
				sendWsMessage(ctx, c, map[string]interface{}{
					"type":    "game_state",
					"session": snap,
				})
			},
			OnTick: func(remaining time.Duration) {
				sendWsMessage(ctx, c, map[string]interface{}{
					"type":         "turn_tick",
					"remaining_ms": remaining.Milliseconds(),
				})
			},
			OnVotePrompt: func(requesterID uuid.UUID, closesAt time.Time) {
				sendWsMessage(ctx, c, map[string]interface{}{
					"type":         "card_vote_prompt",
					"requester_id": requesterID.String(),
					"closes_at":    closesAt.UTC(),
				})
			},
			OnVoteResult: func(requesterID uuid.UUID, approved bool) {
				sendWsMessage(ctx, c, map[string]interface{}{
					"type":         "card_vote_result",
					"requester_id": requesterID.String(),
					"approved":     approved,
				})
			},
			// Only the host's client writes the room row, so the
			// waiting -> playing -> finished transition has a single author.
			OnGameOver: func(snap *game.Session) {
				if user.ID != room.HostID {
					return
				}
				finishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := s.Rooms.Finish(finishCtx, roomID); err != nil {
					logger.Warnf("Failed to mark room %s finished: %v", roomID, err)
					return
				}
				logger.Infof("Room %s finished; winner %s", roomID, snap.WinnerID)
			},
			Recorder: recordToHistorian(logger),
		})

		if err := client.Join(ctx); err != nil {
			logger.Errorf("Failed to join room channel %s for user %s: %v", roomID, user.ID, err)
			c.Close(websocket.StatusInternalError, "Failed to join room channel.")
			return
		}

		readRoomMessages(ctx, c, s, client, roomID, user.ID, logger)

		logger.Infof("Player %s WebSocket read loop exited for room %s.", user.ID, roomID)
		client.Leave()
	}
}

// recordToHistorian feeds authored transitions into the Redis action queue
// when a client is connected. No-op otherwise so tests and offline play work.
func recordToHistorian(logger *logrus.Logger) session.ActionRecorder {
	return func(action string, sess *game.Session, actorID uuid.UUID) {
		if cache.Rdb == nil {
			return
		}
		rec := cache.ActionRecord{
			RoomID:      sess.RoomID,
			Seq:         sess.Seq,
			ActorUserID: actorID,
			ActionType:  action,
			PileSize:    len(sess.CentralPile),
			Timestamp:   time.Now().UnixMilli(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishAction(ctx, rec); err != nil {
			logger.Warnf("Failed to enqueue action record for room %s: %v", sess.RoomID, err)
		}
	}
}

// readRoomMessages continuously reads client messages, validates them, and
// routes them to the session client. It exits on error or cancellation.
func readRoomMessages(ctx context.Context, c *websocket.Conn, s *Server, client *session.Client, roomID, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %s in room %s.", userID, roomID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for user %s in room %s.", userID, roomID)
			} else {
				logger.Warnf("Error reading from WebSocket for user %s in room %s: %v (Status: %d)", userID, roomID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %s in room %s. Ignoring.", msgType, userID, roomID)
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from user %s in room %s: %v. Data: %s", userID, roomID, err, string(data))
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from user %s in room %s.", msg.Type, userID, roomID)

		switch msg.Type {
		case "start_game":
			seats, err := s.Rooms.Start(ctx, roomID, userID)
			if err != nil {
				sendWsError(ctx, c, err.Error())
				continue
			}
			if err := client.StartSession(ctx, seats); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "play":
			if err := client.Play(ctx); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "collect":
			if err := client.Collect(ctx); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "shuffle":
			if err := client.Shuffle(ctx); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "request_cards":
			if err := client.RequestReplenishment(ctx); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "vote":
			if err := client.CastVote(ctx, msg.Approve); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case "ping":
			logger.Tracef("Received ping from user %s, sending pong.", userID)
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})

		default:
			logger.Warnf("Unknown action type '%s' from user %s in room %s.", msg.Type, userID, roomID)
			sendWsError(ctx, c, fmt.Sprintf("Unknown action type: %s", msg.Type))
		}

		select {
		case <-ctx.Done():
			logger.Infof("Context canceled after processing message for user %s in room %s.", userID, roomID)
			return
		default:
		}
	}
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
// Includes logging for errors and uses a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.Write(writeCtx, websocket.MessageText, msgBytes)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		} else if strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Timeout writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
