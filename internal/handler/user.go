package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/x-oauth/internal/model"
)

// UserFinder is implemented by *service.UserService.
type UserFinder interface {
	Get(ctx context.Context, subjectID string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// UserHandler serves the read-only user API.
type UserHandler struct {
	users  UserFinder
	logger *slog.Logger
}

func NewUserHandler(users UserFinder, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleGet returns one stored record.
//
// HTTP: GET /api/user/{id}
//
// chi.URLParam reads the {id} segment of the route pattern. Subject ids contain
// colons ("did:privy:..."), which is fine inside a single path segment.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleList returns every stored record as a JSON array, [] when empty.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("listing users", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
