package models

import "github.com/google/uuid"

// User identifies a connected participant. Most users are ephemeral guests
// minted at the WebSocket boundary; account management lives elsewhere.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	IsEphemeral bool      `json:"is_ephemeral"`
}
