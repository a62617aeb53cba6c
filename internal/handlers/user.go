package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mkarras/pileup/internal/auth"
	"github.com/mkarras/pileup/internal/database"
	"github.com/mkarras/pileup/internal/models"
)

// EnsureEphemeralUser resolves the caller's identity from the auth_token
// cookie, minting an ephemeral guest user (and setting the cookie) when
// none is present or the token fails verification.
func EnsureEphemeralUser(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	if cookie, err := r.Cookie("auth_token"); err == nil {
		ident, err := auth.VerifyToken(cookie.Value)
		if err == nil {
			userID, parseErr := uuid.Parse(ident.UserID)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid user ID in token: %w", parseErr)
			}
			return &models.User{ID: userID, Username: ident.Username, IsEphemeral: true}, nil
		}
		// Fall through and mint a fresh guest.
	}

	guest := models.User{
		Username:    "Guest",
		IsEphemeral: true,
	}
	if err := database.CreateUser(context.Background(), &guest); err != nil {
		return nil, fmt.Errorf("failed to create ephemeral user: %w", err)
	}
	newToken, err := auth.CreateToken(guest.ID.String(), guest.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeral token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    newToken,
		HttpOnly: true,
		Path:     "/",
	})
	return &guest, nil
}
