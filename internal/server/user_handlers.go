package server

import (
	"net/http"

	jsonwriter "github.com/tiffinstash/ops-front/internal/json"
	"github.com/tiffinstash/ops-front/internal/log"
	"github.com/tiffinstash/ops-front/internal/storage"
)

// UsersHandler lists everyone who has signed in via SSO, for the access
// audit page.
type UsersHandler struct {
	storage storage.Storage
}

// NewUsersHandler creates the users handler
func NewUsersHandler(store storage.Storage) *UsersHandler {
	return &UsersHandler{storage: store}
}

// ListHandler returns all tracked users
func (h *UsersHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.GetAllUsers(r.Context())
	if err != nil {
		log.LogError("Failed to list users: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list users")
		return
	}
	if users == nil {
		users = []storage.UserRecord{}
	}
	_ = jsonwriter.Write(w, users)
}
