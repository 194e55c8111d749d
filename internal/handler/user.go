package handler

import (
	"log/slog"
	"net/http"

	"github.com/imitation/backend/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	Username    string  `json:"username"`
	Bio         *string `json:"bio"`
	SupabaseUID *string `json:"supabase_uid"`
}

// HandleCreate registers a profile.
//
// HTTP: POST /api/user
// BODY: {"username": "ada", "bio": "optional", "supabase_uid": "optional"}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		Username:    req.Username,
		Bio:         req.Bio,
		ExternalUID: req.SupabaseUID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

// HandleGet returns one profile.
//
// HTTP: GET /api/user/{userId}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId", "User")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}
