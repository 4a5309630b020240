package handlers

import (
	"context"
	"net/http"

	"boxdsync/services/jellyfin"
)

// jellyfinUsers is the slice of the Jellyfin client this handler needs.
type jellyfinUsers interface {
	Users(ctx context.Context) ([]jellyfin.User, error)
}

// JellyfinHandler lists the server's accounts so the UI can map them to
// Letterboxd credentials.
type JellyfinHandler struct {
	client jellyfinUsers
}

func NewJellyfinHandler(client jellyfinUsers) *JellyfinHandler {
	return &JellyfinHandler{client: client}
}

// Users returns the Jellyfin server's user list.
// GET /api/jellyfin/users
func (h *JellyfinHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
